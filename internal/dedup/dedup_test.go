package dedup

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled copy", []float32{1, 0}, []float32{5, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 2}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTooSimilar(t *testing.T) {
	if !TooSimilar(0.9, 0.9) {
		t.Error("score at threshold must count as duplicate")
	}
	if !TooSimilar(0.95, 0.9) {
		t.Error("score above threshold must count as duplicate")
	}
	if TooSimilar(0.89, 0.9) {
		t.Error("score below threshold must not count as duplicate")
	}
}

func TestEvaluateFirstFrameAlwaysRetained(t *testing.T) {
	d := Evaluate(Anchor{}, []float32{1, 2, 3}, true, 0.9)
	if !d.Retain {
		t.Fatal("frame with no anchor must be retained")
	}
	if d.Score != 0 {
		t.Errorf("score without anchor = %v, want 0", d.Score)
	}
}

func TestEvaluateSmartSampleDisabled(t *testing.T) {
	anchor := Anchor{Embedding: []float32{1, 2, 3}, Timestamp: 2}
	d := Evaluate(anchor, []float32{1, 2, 3}, false, 0.9)
	if !d.Retain {
		t.Fatal("smart sampling disabled must retain everything")
	}
}

func TestEvaluateIdenticalContentDropped(t *testing.T) {
	emb := []float32{0.5, 0.25, 0.8, 0.1}
	anchor := Anchor{Embedding: emb, Timestamp: 2}

	d := Evaluate(anchor, emb, true, 0.9)
	if d.Retain {
		t.Fatal("identical embedding must be dropped")
	}
	if math.Abs(d.Score-1) > 1e-9 {
		t.Errorf("identical embedding score = %v, want 1", d.Score)
	}
}

func TestEvaluateAnchorSemantics(t *testing.T) {
	// Frame 2 is a duplicate of frame 1 and gets dropped; frame 1 stays
	// the anchor, so a distinct frame 3 is retained.
	frame1 := []float32{1, 0, 0}
	frame2 := []float32{1, 0, 0}
	frame3 := []float32{0, 1, 0}

	anchor := Anchor{Embedding: frame1, Timestamp: 2}

	if d := Evaluate(anchor, frame2, true, 0.9); d.Retain {
		t.Fatal("duplicate frame retained")
	}
	// Anchor unchanged after a drop.
	if d := Evaluate(anchor, frame3, true, 0.9); !d.Retain {
		t.Fatal("distinct frame dropped against stale anchor")
	}
}

func TestEvaluateChunkBoundaryResetsAnchor(t *testing.T) {
	// A static scene spanning a chunk boundary: the last frame retained in
	// chunk N and the first frame of chunk N+1 are identical. The next chunk
	// starts with a zero anchor, so its first frame is retained anyway.
	static := []float32{0.5, 0.25, 0.8, 0.1}

	anchor := Anchor{Embedding: static, Timestamp: 600}
	if d := Evaluate(anchor, static, true, 0.9); d.Retain {
		t.Fatal("duplicate within a chunk must be dropped")
	}

	if d := Evaluate(Anchor{}, static, true, 0.9); !d.Retain {
		t.Fatal("first frame of a new chunk must be retained")
	}
}

func TestEvaluateDefaultThreshold(t *testing.T) {
	anchor := Anchor{Embedding: []float32{1, 0}, Timestamp: 2}
	// Score 1.0 against a zero threshold argument falls back to the
	// default and drops.
	if d := Evaluate(anchor, []float32{1, 0}, true, 0); d.Retain {
		t.Error("zero threshold must fall back to the default, not retain everything")
	}
}
