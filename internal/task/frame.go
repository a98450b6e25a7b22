package task

import (
	"fmt"
	"strconv"
	"strings"
)

// Detection is one detector hit on a frame. All detectors share this shape:
// label, text line, celebrity, and moderation results are all {name, confidence}.
type Detection struct {
	Name       string   `json:"name" dynamodbav:"name"`
	Confidence float64  `json:"confidence" dynamodbav:"confidence"`
	Categories []string `json:"categories,omitempty" dynamodbav:"categories,omitempty"`
}

// Subtitle is one transcript row aligned to a time range.
type Subtitle struct {
	StartTS       float64 `json:"start_ts" dynamodbav:"start_ts"`
	EndTS         float64 `json:"end_ts" dynamodbav:"end_ts"`
	Transcription string  `json:"transcription" dynamodbav:"transcription"`
}

// Frame is one sampled still image and its derived detections and embeddings.
// Created during sampling, enriched during per-frame extraction, read-only
// thereafter except for deletion.
type Frame struct {
	ID     string `json:"id" dynamodbav:"id"`
	TaskID string `json:"task_id" dynamodbav:"task_id"`

	Timestamp float64 `json:"timestamp" dynamodbav:"timestamp"`
	// PrevTimestamp points at the anchor frame this one was compared against.
	PrevTimestamp float64 `json:"prev_timestamp" dynamodbav:"prev_timestamp"`

	S3Bucket string `json:"s3_bucket" dynamodbav:"s3_bucket"`
	S3Key    string `json:"s3_key" dynamodbav:"s3_key"`

	DetectLabel      []Detection `json:"detect_label,omitempty" dynamodbav:"detect_label,omitempty"`
	DetectText       []Detection `json:"detect_text,omitempty" dynamodbav:"detect_text,omitempty"`
	DetectCelebrity  []Detection `json:"detect_celebrity,omitempty" dynamodbav:"detect_celebrity,omitempty"`
	DetectModeration []Detection `json:"detect_moderation,omitempty" dynamodbav:"detect_moderation,omitempty"`

	Subtitles    []Subtitle `json:"subtitles,omitempty" dynamodbav:"subtitles,omitempty"`
	ImageCaption string     `json:"image_caption,omitempty" dynamodbav:"image_caption,omitempty"`

	// SimilarityScore is the cosine similarity to the previous retained frame.
	// Zero means no comparison happened (first frame of a chunk, or smart
	// sampling disabled).
	SimilarityScore float64 `json:"similarity_score,omitempty" dynamodbav:"similarity_score,omitempty"`

	EmbeddingText string `json:"embedding_text,omitempty" dynamodbav:"embedding_text,omitempty"`
}

// BuildEmbeddingText flattens a frame's caption, subtitles, and detections
// into the text that gets embedded alongside the image. Empty sections are
// omitted so sparse frames produce short documents.
func (f *Frame) BuildEmbeddingText(fileName string) string {
	parts := []string{"Video file name: " + fileName}
	if f.ImageCaption != "" {
		parts = append(parts, "Summary: "+f.ImageCaption)
	}
	if len(f.Subtitles) > 0 {
		lines := make([]string, 0, len(f.Subtitles))
		for _, s := range f.Subtitles {
			if s.Transcription != "" {
				lines = append(lines, s.Transcription)
			}
		}
		if len(lines) > 0 {
			parts = append(parts, "Transcription: "+strings.Join(lines, " "))
		}
	}
	sections := []struct {
		label      string
		detections []Detection
	}{
		{"Label", f.DetectLabel},
		{"Text", f.DetectText},
		{"Celebrity", f.DetectCelebrity},
		{"Moderation", f.DetectModeration},
	}
	for _, sec := range sections {
		if len(sec.detections) == 0 {
			continue
		}
		names := make([]string, 0, len(sec.detections))
		for _, d := range sec.detections {
			names = append(names, d.Name)
		}
		parts = append(parts, sec.label+": "+strings.Join(names, ", "))
	}
	return strings.Join(parts, "; ")
}

// FrameID builds the composite frame key. Timestamps are formatted with
// strconv to keep the key stable across marshal round-trips.
func FrameID(taskID string, ts float64) string {
	return taskID + "_" + strconv.FormatFloat(ts, 'f', -1, 64)
}

// TimestampFromKey parses the frame timestamp out of an S3 object key of the
// form .../frame_{ts}.jpg.
func TimestampFromKey(key string) (float64, error) {
	base := key
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".jpg")
	i := strings.LastIndex(base, "_")
	if i < 0 {
		return 0, fmt.Errorf("frame key %q has no timestamp segment", key)
	}
	ts, err := strconv.ParseFloat(base[i+1:], 64)
	if err != nil {
		return 0, fmt.Errorf("frame key %q: %w", key, err)
	}
	return ts, nil
}

// Shot is a contiguous run of frames between two similarity breaks.
type Shot struct {
	ID           string  `json:"id" dynamodbav:"id"`
	TaskID       string  `json:"task_id" dynamodbav:"task_id"`
	AnalysisType string  `json:"analysis_type" dynamodbav:"analysis_type"`
	Index        int     `json:"index" dynamodbav:"index"`
	StartTS      float64 `json:"start_ts" dynamodbav:"start_ts"`
	EndTS        float64 `json:"end_ts" dynamodbav:"end_ts"`
	DurationS    float64 `json:"duration" dynamodbav:"duration"`
	Frames       []Frame `json:"frames" dynamodbav:"frames"`
	Summary      string  `json:"summary,omitempty" dynamodbav:"summary,omitempty"`
}

// Scene is a contiguous run of shots sharing location/time context.
type Scene struct {
	ID           string  `json:"id" dynamodbav:"id"`
	TaskID       string  `json:"task_id" dynamodbav:"task_id"`
	AnalysisType string  `json:"analysis_type" dynamodbav:"analysis_type"`
	Index        int     `json:"index" dynamodbav:"index"`
	StartTS      float64 `json:"start_ts" dynamodbav:"start_ts"`
	EndTS        float64 `json:"end_ts" dynamodbav:"end_ts"`
	Shots        []Shot  `json:"shots" dynamodbav:"shots"`
	Summary      string  `json:"summary,omitempty" dynamodbav:"summary,omitempty"`
}

// Transcription is the task-level ASR output with timestamped subtitles.
type Transcription struct {
	TaskID       string     `json:"task_id" dynamodbav:"task_id"`
	LanguageCode string     `json:"language_code" dynamodbav:"language_code"`
	Subtitles    []Subtitle `json:"subtitles" dynamodbav:"subtitles"`
}

// Analysis type discriminators for the shared shot/scene table.
const (
	AnalysisTypeShot  = "shot"
	AnalysisTypeScene = "scene"
)
