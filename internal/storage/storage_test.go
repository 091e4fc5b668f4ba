package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStore(t *testing.T) {
	s := New[int]()

	_, ok := s.Get("a")
	assert.False(t, ok)

	s.Set("b", 2)
	s.Set("a", 1)
	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"a", "b"}, s.Keys())
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, s.GetAll())

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Equal(t, 1, s.Len())
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := New[string]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			s.Set(id, id)
			s.Keys()
			s.Get(id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
