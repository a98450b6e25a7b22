// Package sampling implements chunked frame sampling. A video is walked in
// fixed-duration windows so a single invocation stays inside the platform
// execution limit regardless of video length; the resume cursor on the task
// record carries progress between invocations.
package sampling

import (
	"math"

	"github.com/mediaops/extraction-service/internal/task"
)

// DefaultChunkDurationS is the sampling window size in seconds.
const DefaultChunkDurationS = 600.0

// NextChunk returns the sampling window beginning at the cursor. The end is
// not clamped to the video duration; Timestamps filters against it.
func NextChunk(taskID string, cursorS, chunkDurationS float64) task.Chunk {
	return task.Chunk{
		TaskID:  taskID,
		StartTS: cursorS,
		EndTS:   cursorS + chunkDurationS,
	}
}

// PlanChunks lays out every sampling window for a video up front, for the
// workflow map state. Windows step from zero while the start is inside the
// video, so the last window always reaches past the end.
func PlanChunks(taskID string, durationS, chunkDurationS float64) []task.Chunk {
	if durationS <= 0 || chunkDurationS <= 0 {
		return nil
	}
	var chunks []task.Chunk
	for start := 0.0; start < durationS; start += chunkDurationS {
		chunks = append(chunks, NextChunk(taskID, start, chunkDurationS))
	}
	return chunks
}

// Completed reports whether the cursor has consumed the whole video.
func Completed(cursorS, durationS float64) bool {
	return cursorS >= durationS
}

// Timestamps lists the candidate frame timestamps for one chunk: multiples
// of the sample interval in (start, end] that also lie within the video.
// The half-open lower bound keeps chunk boundaries from sampling the same
// timestamp twice across consecutive invocations.
func Timestamps(chunk task.Chunk, intervalS, durationS float64) []float64 {
	if intervalS <= 0 {
		return nil
	}

	var out []float64
	// First interval multiple strictly after the chunk start.
	n := math.Floor(chunk.StartTS/intervalS) + 1
	for {
		ts := n * intervalS
		if ts <= chunk.StartTS {
			n++
			continue
		}
		if ts > chunk.EndTS || ts > durationS {
			break
		}
		out = append(out, ts)
		n++
	}
	return out
}

// Invocations returns how many chunk invocations a video needs.
func Invocations(durationS, chunkDurationS float64) int {
	if durationS <= 0 || chunkDurationS <= 0 {
		return 0
	}
	return int(math.Ceil(durationS / chunkDurationS))
}
