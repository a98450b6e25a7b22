// Package segmenter turns a task's retained frames into shots and shots into
// scenes. Shot boundaries come from the dedup similarity scores already on
// the frames; scene boundaries and all summaries come from LLM calls.
package segmenter

import (
	"fmt"

	"github.com/mediaops/extraction-service/internal/task"
)

// DefaultShotSimilarityThreshold is the shot-break score. A frame whose
// similarity against its predecessor exceeds it opens a new shot. Task
// analysis settings can override it.
const DefaultShotSimilarityThreshold = 0.5

// ShotID names a shot record.
func ShotID(taskID string, index int) string {
	return fmt.Sprintf("%s_shot_%d", taskID, index)
}

// SceneID names a scene record.
func SceneID(taskID string, index int) string {
	return fmt.Sprintf("%s_scene_%d", taskID, index)
}

// DetectShots partitions temporally ordered frames into shots. A shot opens
// at the first frame and closes when a frame's similarity score crosses the
// threshold; the breaking frame starts the next shot. The trailing frames
// always form a final shot, so every frame belongs to exactly one shot.
// Deterministic for a given frame set and threshold.
func DetectShots(taskID string, frames []task.Frame, threshold float64) []task.Shot {
	if threshold <= 0 {
		threshold = DefaultShotSimilarityThreshold
	}
	if len(frames) == 0 {
		return nil
	}

	var shots []task.Shot
	startTS := frames[0].Timestamp
	var shotFrames []task.Frame

	closeShot := func(endTS float64) {
		index := len(shots) + 1
		shots = append(shots, task.Shot{
			ID:           ShotID(taskID, index),
			TaskID:       taskID,
			AnalysisType: task.AnalysisTypeShot,
			Index:        index,
			StartTS:      startTS,
			EndTS:        endTS,
			DurationS:    endTS - startTS,
			Frames:       shotFrames,
		})
	}

	for _, frame := range frames {
		if frame.SimilarityScore > threshold && len(shotFrames) > 0 {
			closeShot(frame.Timestamp)
			startTS = frame.Timestamp
			shotFrames = nil
		}
		shotFrames = append(shotFrames, frame)
	}
	closeShot(frames[len(frames)-1].Timestamp)

	return shots
}

// shotCaptions collects the timestamped captions of a shot's frames.
func shotCaptions(shot task.Shot) []timedCaption {
	var caps []timedCaption
	for _, f := range shot.Frames {
		if f.ImageCaption != "" {
			caps = append(caps, timedCaption{Timestamp: f.Timestamp, Caption: f.ImageCaption})
		}
	}
	return caps
}

// shotSubtitles collects the subtitle rows of a shot's frames, deduplicated
// since adjacent frames often align to the same row.
func shotSubtitles(shot task.Shot) []task.Subtitle {
	var subs []task.Subtitle
	seen := make(map[string]bool)
	for _, f := range shot.Frames {
		for _, sub := range f.Subtitles {
			key := fmt.Sprintf("%v_%v_%s", sub.StartTS, sub.EndTS, sub.Transcription)
			if seen[key] {
				continue
			}
			seen[key] = true
			subs = append(subs, sub)
		}
	}
	return subs
}

// Overlaps reports whether a shot's half-open interval intersects a scene's.
// A zero-length shot (single frame) counts as inside a scene that contains
// its timestamp.
func Overlaps(shotStart, shotEnd, sceneStart, sceneEnd float64) bool {
	if shotStart >= shotEnd {
		return shotStart >= sceneStart && shotStart < sceneEnd
	}
	return shotStart < sceneEnd && shotEnd > sceneStart
}
