package capture

import (
	"context"
	"testing"

	"github.com/homeserver/chordscan/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestMachineCreatesNormalizedRect(t *testing.T) {
	var m Machine
	m.Down(models.Point{X: 250, Y: 150})
	assert.Equal(t, Dragging, m.State())

	preview, ok := m.Move(models.Point{X: 100, Y: 100})
	assert.True(t, ok)
	assert.Equal(t, models.Rect{X: 100, Y: 100, Width: 150, Height: 50}, preview)

	r, ok := m.Up(models.Point{X: 50, Y: 50})
	assert.True(t, ok)
	assert.Equal(t, models.Rect{X: 50, Y: 50, Width: 200, Height: 100}, r)
	assert.Equal(t, Idle, m.State())
}

func TestMachineDiscardsSmallGestures(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy float64
		ok     bool
	}{
		{"both tiny", 5, 5, false},
		{"width at threshold", 10, 50, false},
		{"height at threshold", 50, 10, false},
		{"negative width at threshold", -10, 50, false},
		{"just above threshold", 10.5, 10.5, true},
		{"large", 200, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Machine
			m.Down(models.Point{X: 100, Y: 100})
			_, ok := m.Up(models.Point{X: 100 + tt.dx, Y: 100 + tt.dy})
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, Idle, m.State())
		})
	}
}

func TestMachineIgnoresEventsWhileIdle(t *testing.T) {
	var m Machine
	_, ok := m.Move(models.Point{X: 1, Y: 1})
	assert.False(t, ok)
	_, ok = m.Up(models.Point{X: 100, Y: 100})
	assert.False(t, ok)
	_, ok = m.Preview()
	assert.False(t, ok)
}

func TestMachinePreviewTracksLastMove(t *testing.T) {
	var m Machine
	m.Down(models.Point{X: 10, Y: 10})
	m.Move(models.Point{X: 40, Y: 30})

	r, ok := m.Preview()
	assert.True(t, ok)
	assert.Equal(t, models.Rect{X: 10, Y: 10, Width: 30, Height: 20}, r)

	m.Cancel()
	assert.Equal(t, Idle, m.State())
}

func TestStaticName(t *testing.T) {
	name, ok := StaticName("  Verse 1 ").PromptSectionName(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Verse 1", name)

	_, ok = StaticName("   ").PromptSectionName(context.Background())
	assert.False(t, ok)
}
