// Package dedup drops visually redundant sampled frames. Each newly sampled
// frame is compared against the rolling anchor, the last frame that was
// retained, and discarded when the two are too alike. The component is lossy
// on purpose: it bounds storage and model spend on static footage, so its
// failure mode is silent over-deduplication, never a crash.
package dedup

import "math"

// DefaultSimilarityThreshold is the cosine-similarity score at or above
// which a frame counts as a near duplicate. Per-task settings can override it.
const DefaultSimilarityThreshold = 0.9

// Anchor is the last retained frame's embedding and timestamp. A zero-value
// anchor (nil embedding) means no frame has been retained yet in this chunk.
type Anchor struct {
	Embedding []float32
	Timestamp float64
}

// Set reports whether the anchor holds a retained frame.
func (a Anchor) Set() bool {
	return len(a.Embedding) > 0
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Identical direction scores 1.0. Mismatched lengths or zero vectors score
// 0, which always retains the frame rather than erroring mid-pipeline.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TooSimilar is the single place the retention comparator lives. Cosine
// similarity grows with likeness, so a frame is a duplicate when its score
// reaches the threshold.
func TooSimilar(score, threshold float64) bool {
	return score >= threshold
}

// Decision is the outcome of comparing one frame against the anchor.
type Decision struct {
	Retain bool
	// Score is the similarity against the anchor, 0 when no anchor existed.
	Score float64
}

// Evaluate decides whether to keep a frame. The first frame after a chunk
// start has no anchor and is always retained; smart sampling disabled
// retains everything without computing a score.
func Evaluate(anchor Anchor, embedding []float32, smartSample bool, threshold float64) Decision {
	if !smartSample {
		return Decision{Retain: true}
	}
	if !anchor.Set() {
		return Decision{Retain: true}
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	score := CosineSimilarity(anchor.Embedding, embedding)
	return Decision{
		Retain: !TooSimilar(score, threshold),
		Score:  score,
	}
}
