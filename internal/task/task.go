// Package task defines the domain model for video extraction tasks: the task
// record itself, sampled frames, derived shots and scenes, and the forward-only
// status state machine every pipeline stage must respect.
package task

import "fmt"

// S3Object references a video or artifact in object storage.
type S3Object struct {
	Bucket string `json:"Bucket" dynamodbav:"Bucket"`
	Key    string `json:"Key" dynamodbav:"Key"`
}

// VideoSource is the uploaded video reference on a task request.
type VideoSource struct {
	S3Object S3Object `json:"S3Object" dynamodbav:"S3Object"`
}

// PreProcessSetting controls frame sampling for a task.
type PreProcessSetting struct {
	// SampleMode selects the sampling strategy. Only "even" is supported.
	SampleMode string `json:"SampleMode" dynamodbav:"SampleMode"`
	// SampleIntervalS is the fixed spacing between candidate frames, in seconds.
	SampleIntervalS float64 `json:"SampleIntervalS" dynamodbav:"SampleIntervalS"`
	// SmartSample enables embedding-based near-duplicate dropping.
	SmartSample bool `json:"SmartSample" dynamodbav:"SmartSample"`
	// SimilarityThreshold overrides the default dedup threshold when > 0.
	SimilarityThreshold float64 `json:"SimilarityThreshold,omitempty" dynamodbav:"SimilarityThreshold,omitempty"`
}

// ExtractionSetting controls which per-frame detectors and transcription run.
type ExtractionSetting struct {
	DetectLabel      bool `json:"DetectLabel" dynamodbav:"DetectLabel"`
	DetectText       bool `json:"DetectText" dynamodbav:"DetectText"`
	DetectCelebrity  bool `json:"DetectCelebrity" dynamodbav:"DetectCelebrity"`
	DetectModeration bool `json:"DetectModeration" dynamodbav:"DetectModeration"`
	ImageCaption     bool `json:"ImageCaption" dynamodbav:"ImageCaption"`
	Transcription    bool `json:"Transcription" dynamodbav:"Transcription"`

	// Per-detector confidence floors. Zero means the service default applies.
	DetectLabelConfidenceThreshold      float64 `json:"DetectLabelConfidenceThreshold,omitempty" dynamodbav:"DetectLabelConfidenceThreshold,omitempty"`
	DetectTextConfidenceThreshold       float64 `json:"DetectTextConfidenceThreshold,omitempty" dynamodbav:"DetectTextConfidenceThreshold,omitempty"`
	DetectCelebrityConfidenceThreshold  float64 `json:"DetectCelebrityConfidenceThreshold,omitempty" dynamodbav:"DetectCelebrityConfidenceThreshold,omitempty"`
	DetectModerationConfidenceThreshold float64 `json:"DetectModerationConfidenceThreshold,omitempty" dynamodbav:"DetectModerationConfidenceThreshold,omitempty"`

	// ImageCaptionPromptTemplate overrides the default captioning prompt.
	ImageCaptionPromptTemplate string `json:"ImageCaptionPromptTemplate,omitempty" dynamodbav:"ImageCaptionPromptTemplate,omitempty"`

	// AggregateResult folds per-frame detections into task-level aggregates
	// at the end of extraction. Defaults to true on submission.
	AggregateResult *bool `json:"AggregateResult,omitempty" dynamodbav:"AggregateResult,omitempty"`
}

// EmbeddingSetting controls which embedding vectors are generated per frame.
type EmbeddingSetting struct {
	MultiModal bool `json:"MultiModal" dynamodbav:"MultiModal"`
	Text       bool `json:"Text" dynamodbav:"Text"`
}

// AnalysisSetting controls shot and scene segmentation.
type AnalysisSetting struct {
	ShotDetection bool `json:"ShotDetection" dynamodbav:"ShotDetection"`
	SceneDetection bool `json:"SceneDetection" dynamodbav:"SceneDetection"`
	// ShotSimilarityThreshold overrides the default shot-break threshold when > 0.
	ShotSimilarityThreshold float64 `json:"ShotSimilarityThreshold,omitempty" dynamodbav:"ShotSimilarityThreshold,omitempty"`
}

// EvaluationSetting controls the optional LLM policy evaluation stage.
type EvaluationSetting struct {
	PromptTemplate string `json:"PromptTemplate" dynamodbav:"PromptTemplate"`
	ModelID        string `json:"ModelId,omitempty" dynamodbav:"ModelId,omitempty"`
}

// Request is the client-submitted extraction request stored on the task.
type Request struct {
	TaskID            string             `json:"TaskId,omitempty" dynamodbav:"TaskId,omitempty"`
	Video             VideoSource        `json:"Video" dynamodbav:"Video"`
	FileName          string             `json:"FileName,omitempty" dynamodbav:"FileName,omitempty"`
	RequestBy         string             `json:"RequestBy,omitempty" dynamodbav:"RequestBy,omitempty"`
	PreProcessSetting *PreProcessSetting `json:"PreProcessSetting" dynamodbav:"PreProcessSetting"`
	ExtractionSetting *ExtractionSetting `json:"ExtractionSetting" dynamodbav:"ExtractionSetting"`
	EmbeddingSetting  *EmbeddingSetting  `json:"EmbeddingSetting,omitempty" dynamodbav:"EmbeddingSetting,omitempty"`
	AnalysisSetting   *AnalysisSetting   `json:"AnalysisSetting,omitempty" dynamodbav:"AnalysisSetting,omitempty"`
	EvaluationSetting *EvaluationSetting `json:"EvaluationSetting,omitempty" dynamodbav:"EvaluationSetting,omitempty"`
}

// Validate rejects requests missing required fields. Invalid requests never
// enter the pipeline; they fail synchronously at submission.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("request is required")
	}
	if r.Video.S3Object.Bucket == "" || r.Video.S3Object.Key == "" {
		return fmt.Errorf("Video.S3Object.Bucket and Key are required")
	}
	if r.PreProcessSetting == nil {
		return fmt.Errorf("PreProcessSetting is required")
	}
	if r.PreProcessSetting.SampleMode != "even" {
		return fmt.Errorf("unsupported SampleMode %q (only \"even\")", r.PreProcessSetting.SampleMode)
	}
	if r.PreProcessSetting.SampleIntervalS <= 0 {
		return fmt.Errorf("SampleIntervalS must be > 0")
	}
	if r.ExtractionSetting == nil {
		return fmt.Errorf("ExtractionSetting is required")
	}
	return nil
}

// VideoMetadata is probed once from the video on the first pipeline stage.
type VideoMetadata struct {
	Size       int64   `json:"Size" dynamodbav:"Size"`
	DurationS  float64 `json:"Duration" dynamodbav:"Duration"`
	Width      int     `json:"Width" dynamodbav:"Width"`
	Height     int     `json:"Height" dynamodbav:"Height"`
	FPS        float64 `json:"Fps" dynamodbav:"Fps"`
	NameFormat string  `json:"NameFormat" dynamodbav:"NameFormat"`

	ThumbnailS3Bucket string `json:"ThumbnailS3Bucket,omitempty" dynamodbav:"ThumbnailS3Bucket,omitempty"`
	ThumbnailS3Key    string `json:"ThumbnailS3Key,omitempty" dynamodbav:"ThumbnailS3Key,omitempty"`
}

// FrameStats tracks sampling progress and counters on the task. SampleStartS is
// the resume cursor: each chunk invocation advances it by the chunk duration,
// so a single invocation stays bounded regardless of video length.
type FrameStats struct {
	S3Bucket           string  `json:"S3Bucket" dynamodbav:"S3Bucket"`
	S3Prefix           string  `json:"S3Prefix" dynamodbav:"S3Prefix"`
	TotalFramesPlaned  int     `json:"TotalFramesPlaned" dynamodbav:"TotalFramesPlaned"`
	TotalFramesSampled int     `json:"TotalFramesSampled" dynamodbav:"TotalFramesSampled"`
	SampleStartS       float64 `json:"SampleStartS" dynamodbav:"SampleStartS"`
	SampleCompleted    bool    `json:"SampleCompleted" dynamodbav:"SampleCompleted"`
}

// MetaData groups derived task metadata.
type MetaData struct {
	VideoMetaData       *VideoMetadata `json:"VideoMetaData,omitempty" dynamodbav:"VideoMetaData,omitempty"`
	VideoFrameS3        *FrameStats    `json:"VideoFrameS3,omitempty" dynamodbav:"VideoFrameS3,omitempty"`
	TranscriptionOutput string         `json:"TranscriptionOutput,omitempty" dynamodbav:"TranscriptionOutput,omitempty"`
}

// AggregatedItem is one detection name with every timestamp it appeared at.
type AggregatedItem struct {
	Name       string    `json:"name" dynamodbav:"name"`
	Timestamps []float64 `json:"timestamps" dynamodbav:"timestamps"`
}

// AggResult holds the task-level detection rollups computed after extraction.
type AggResult struct {
	DetectLabelAgg         []AggregatedItem `json:"DetectLabelAgg" dynamodbav:"DetectLabelAgg"`
	DetectLabelCategoryAgg []AggregatedItem `json:"DetectLabelCategoryAgg" dynamodbav:"DetectLabelCategoryAgg"`
	DetectTextAgg          []AggregatedItem `json:"DetectTextAgg" dynamodbav:"DetectTextAgg"`
	DetectModerationAgg    []AggregatedItem `json:"DetectModerationAgg" dynamodbav:"DetectModerationAgg"`
	DetectCelebrityAgg     []AggregatedItem `json:"DetectCelebrityAgg" dynamodbav:"DetectCelebrityAgg"`
}

// EvalResult is the structured verdict from the policy evaluation stage.
type EvalResult struct {
	ModelID   string `json:"ModelId" dynamodbav:"ModelId"`
	Verdict   string `json:"Verdict" dynamodbav:"Verdict"`
	Rationale string `json:"Rationale,omitempty" dynamodbav:"Rationale,omitempty"`
}

// VectorLocations records where a task's frame vectors live so the delete
// cascade can find them.
type VectorLocations struct {
	Table string `json:"Table,omitempty" dynamodbav:"Table,omitempty"`
}

// Task is one end-to-end video analysis job. Created on submission, mutated by
// every pipeline stage, deleted only by the explicit delete flow.
type Task struct {
	ID        string   `json:"Id" dynamodbav:"Id"`
	Request   *Request `json:"Request" dynamodbav:"Request"`
	RequestTs string   `json:"RequestTs" dynamodbav:"RequestTs"`
	RequestBy string   `json:"RequestBy,omitempty" dynamodbav:"RequestBy,omitempty"`
	Status    Status   `json:"Status" dynamodbav:"Status"`

	MetaData *MetaData `json:"MetaData,omitempty" dynamodbav:"MetaData,omitempty"`

	AggResult  *AggResult  `json:"AggResult,omitempty" dynamodbav:"AggResult,omitempty"`
	EvalResult *EvalResult `json:"EvalResult,omitempty" dynamodbav:"EvalResult,omitempty"`

	VectorMetaData *VectorLocations `json:"VectorMetaData,omitempty" dynamodbav:"VectorMetaData,omitempty"`

	ExtractionCompleteTs string `json:"ExtractionCompleteTs,omitempty" dynamodbav:"ExtractionCompleteTs,omitempty"`
	FailureDetail        string `json:"FailureDetail,omitempty" dynamodbav:"FailureDetail,omitempty"`
}

// Chunk is one bounded sampling window of a video. Chunks exist only as
// orchestration input/output; they are never persisted.
type Chunk struct {
	TaskID  string  `json:"task_id"`
	StartTS float64 `json:"start_ts"`
	EndTS   float64 `json:"end_ts"`
}
