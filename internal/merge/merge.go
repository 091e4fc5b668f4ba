// Package merge collapses same-named sections into export records.
package merge

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/homeserver/chordscan/internal/models"
)

// ErrNotReady is matched by NotReadyError
var ErrNotReady = errors.New("sections not ready")

// NotReadyError reports how many sections block an export
type NotReadyError struct {
	Count int
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%d section(s) not ready", e.Count)
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}

// GroupKey normalises a section name for grouping.
func GroupKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Records builds the export records for sections. Every section must be
// ready. Sections sharing a GroupKey are merged in reading order: ascending
// page index, then ascending y within a page. pages supplies PDF page
// numbers and may be nil.
func Records(sections []*models.Section, pages []models.Page) ([]models.ExportRecord, error) {
	notReady := 0
	for _, s := range sections {
		if !s.Ready() {
			notReady++
		}
	}
	if notReady > 0 {
		return nil, &NotReadyError{Count: notReady}
	}

	ordered := slices.Clone(sections)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PageIndex < ordered[j].PageIndex
	})

	var keys []string
	groups := make(map[string][]*models.Section)
	for _, s := range ordered {
		k := GroupKey(s.Name)
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], s)
	}

	records := make([]models.ExportRecord, 0, len(keys))
	for _, k := range keys {
		members := groups[k]
		if len(members) == 1 {
			records = append(records, single(members[0], pages))
			continue
		}
		records = append(records, merged(members))
	}
	return records, nil
}

func single(s *models.Section, pages []models.Page) models.ExportRecord {
	page := s.PageIndex
	rec := models.ExportRecord{
		SectionName:    s.Name,
		StructuredData: s.OCRResult.StructuredData.Clone(),
		PageIndex:      &page,
	}
	if page >= 0 && page < len(pages) && pages[page].PageNumber != nil {
		n := *pages[page].PageNumber
		rec.PageNumber = &n
	}
	return rec
}

func merged(members []*models.Section) models.ExportRecord {
	sorted := slices.Clone(members)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PageIndex != sorted[j].PageIndex {
			return sorted[i].PageIndex < sorted[j].PageIndex
		}
		return sorted[i].Rect.Y < sorted[j].Rect.Y
	})

	first := sorted[0]
	data := models.StructuredData{
		SectionName: first.Name,
		Key:         first.OCRResult.StructuredData.Key,
	}
	var pageIndices []int
	for _, s := range sorted {
		data.Lines = append(data.Lines, s.OCRResult.StructuredData.Clone().Lines...)
		if !slices.Contains(pageIndices, s.PageIndex) {
			pageIndices = append(pageIndices, s.PageIndex)
		}
	}

	return models.ExportRecord{
		SectionName:    first.Name,
		StructuredData: data,
		PageIndices:    pageIndices,
		Merged:         true,
		MergeCount:     len(sorted),
	}
}
