package aggregate

import (
	"reflect"
	"testing"

	"github.com/mediaops/extraction-service/internal/task"
)

func TestDetections(t *testing.T) {
	frames := []task.Frame{
		{
			Timestamp: 4,
			DetectLabel: []task.Detection{
				{Name: "Dog", Confidence: 95, Categories: []string{"Animals"}},
			},
			DetectText: []task.Detection{{Name: "STOP", Confidence: 99}},
		},
		{
			Timestamp: 2,
			DetectLabel: []task.Detection{
				{Name: "Dog", Confidence: 90, Categories: []string{"Animals"}},
				{Name: "Car", Confidence: 80, Categories: []string{"Vehicles"}},
			},
		},
		{
			Timestamp: 6,
			DetectLabel: []task.Detection{
				{Name: "Dog", Confidence: 85, Categories: []string{"Animals"}},
			},
		},
	}

	agg := Detections(frames)

	if len(agg.DetectLabelAgg) != 2 {
		t.Fatalf("DetectLabelAgg has %d items, want 2", len(agg.DetectLabelAgg))
	}
	// Most frequent name first.
	if agg.DetectLabelAgg[0].Name != "Dog" {
		t.Errorf("first label = %q, want Dog", agg.DetectLabelAgg[0].Name)
	}
	if !reflect.DeepEqual(agg.DetectLabelAgg[0].Timestamps, []float64{2, 4, 6}) {
		t.Errorf("Dog timestamps = %v, want sorted [2 4 6]", agg.DetectLabelAgg[0].Timestamps)
	}
	if !reflect.DeepEqual(agg.DetectLabelAgg[1].Timestamps, []float64{2}) {
		t.Errorf("Car timestamps = %v, want [2]", agg.DetectLabelAgg[1].Timestamps)
	}

	if len(agg.DetectLabelCategoryAgg) != 2 {
		t.Fatalf("DetectLabelCategoryAgg has %d items, want 2", len(agg.DetectLabelCategoryAgg))
	}
	if agg.DetectLabelCategoryAgg[0].Name != "Animals" {
		t.Errorf("first category = %q, want Animals", agg.DetectLabelCategoryAgg[0].Name)
	}

	if len(agg.DetectTextAgg) != 1 || agg.DetectTextAgg[0].Name != "STOP" {
		t.Errorf("DetectTextAgg = %+v, want one STOP item", agg.DetectTextAgg)
	}
	if agg.DetectCelebrityAgg != nil {
		t.Errorf("DetectCelebrityAgg = %+v, want nil with no detections", agg.DetectCelebrityAgg)
	}
}

func TestDetectionsDuplicateTimestamps(t *testing.T) {
	// The same name twice on one frame collapses to one timestamp.
	frames := []task.Frame{
		{
			Timestamp: 2,
			DetectText: []task.Detection{
				{Name: "SALE", Confidence: 90},
				{Name: "SALE", Confidence: 85},
			},
		},
	}
	agg := Detections(frames)
	if !reflect.DeepEqual(agg.DetectTextAgg[0].Timestamps, []float64{2}) {
		t.Errorf("timestamps = %v, want [2]", agg.DetectTextAgg[0].Timestamps)
	}
}

func TestDetectionsEmpty(t *testing.T) {
	agg := Detections(nil)
	if agg.DetectLabelAgg != nil || agg.DetectTextAgg != nil {
		t.Errorf("empty frame set produced aggregates: %+v", agg)
	}
}

func TestDetectionsTieBreakByName(t *testing.T) {
	frames := []task.Frame{
		{
			Timestamp:   2,
			DetectLabel: []task.Detection{{Name: "Zebra"}, {Name: "Apple"}},
		},
	}
	agg := Detections(frames)
	if agg.DetectLabelAgg[0].Name != "Apple" || agg.DetectLabelAgg[1].Name != "Zebra" {
		t.Errorf("tie order = [%s, %s], want alphabetical", agg.DetectLabelAgg[0].Name, agg.DetectLabelAgg[1].Name)
	}
}
