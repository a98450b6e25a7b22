// Package aggregate folds per-frame detections into task-level rollups:
// for each detector, every distinct detection name with the sorted list of
// timestamps it appeared at.
package aggregate

import (
	"sort"

	"github.com/mediaops/extraction-service/internal/task"
)

// Detections builds the full rollup set from a task's frames. Frames must
// not be mutated; the result is freshly allocated.
func Detections(frames []task.Frame) *task.AggResult {
	return &task.AggResult{
		DetectLabelAgg:         fold(frames, func(f task.Frame) []entry { return named(f, f.DetectLabel) }),
		DetectLabelCategoryAgg: fold(frames, labelCategories),
		DetectTextAgg:          fold(frames, func(f task.Frame) []entry { return named(f, f.DetectText) }),
		DetectModerationAgg:    fold(frames, func(f task.Frame) []entry { return named(f, f.DetectModeration) }),
		DetectCelebrityAgg:     fold(frames, func(f task.Frame) []entry { return named(f, f.DetectCelebrity) }),
	}
}

// entry is one (name, timestamp) occurrence taken from a frame.
type entry struct {
	name string
	ts   float64
}

func named(f task.Frame, detections []task.Detection) []entry {
	var out []entry
	for _, d := range detections {
		out = append(out, entry{name: d.Name, ts: f.Timestamp})
	}
	return out
}

// labelCategories projects a frame's label detections onto their categories.
func labelCategories(f task.Frame) []entry {
	var out []entry
	for _, d := range f.DetectLabel {
		for _, cat := range d.Categories {
			out = append(out, entry{name: cat, ts: f.Timestamp})
		}
	}
	return out
}

// fold groups occurrences by name with unique sorted timestamps, the names
// themselves ordered by how often they appear (ties by name, for stable
// output across runs).
func fold(frames []task.Frame, project func(task.Frame) []entry) []task.AggregatedItem {
	byName := make(map[string]map[float64]bool)
	for _, frame := range frames {
		for _, e := range project(frame) {
			if byName[e.name] == nil {
				byName[e.name] = make(map[float64]bool)
			}
			byName[e.name][e.ts] = true
		}
	}
	if len(byName) == 0 {
		return nil
	}

	items := make([]task.AggregatedItem, 0, len(byName))
	for name, tsSet := range byName {
		timestamps := make([]float64, 0, len(tsSet))
		for ts := range tsSet {
			timestamps = append(timestamps, ts)
		}
		sort.Float64s(timestamps)
		items = append(items, task.AggregatedItem{Name: name, Timestamps: timestamps})
	}
	sort.Slice(items, func(i, j int) bool {
		if len(items[i].Timestamps) != len(items[j].Timestamps) {
			return len(items[i].Timestamps) > len(items[j].Timestamps)
		}
		return items[i].Name < items[j].Name
	})
	return items
}
