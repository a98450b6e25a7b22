package segmenter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/bedrock"
	"github.com/mediaops/extraction-service/internal/jsonutil"
	"github.com/mediaops/extraction-service/internal/task"
)

const (
	shotSummarySystem = "You are a media operations assistant responsible for writing a video shot summary " +
		"based on both visual frame descriptions and audio transcription. Keep the summary within 200 tokens."

	sceneSummarySystem = "You are a media operations assistant responsible for writing a video scene summary " +
		"based on both visual frame descriptions and audio transcription. Keep the summary within 200 tokens."

	scenePartitionSystem = "You are a media expert tasked with analyzing a video to identify its scenes. " +
		"Scenes are continuous sequences of action occurring in a specific location and time, consisting of a series of frames. " +
		"Base your analysis on the visual frame summaries and the audio transcription. " +
		"Credits, including the list of cast and crew at the beginning and end of the video, must be treated as independent scenes."

	scenePartitionMaxTokens = 40960
)

// timedCaption pairs a frame caption with its timestamp for the LLM context.
type timedCaption struct {
	Timestamp float64 `json:"timestamp"`
	Caption   string  `json:"caption"`
}

// ShotMetadata is the per-shot tuple handed to the scene partition call.
type ShotMetadata struct {
	Summary     string          `json:"summary"`
	StartTS     float64         `json:"start_ts"`
	EndTS       float64         `json:"end_ts"`
	Transcripts []task.Subtitle `json:"transcripts"`
}

// SceneBoundary is one scene interval returned by the partition call.
type SceneBoundary struct {
	StartTS float64 `json:"start_ts"`
	EndTS   float64 `json:"end_ts"`
	Summary string  `json:"summary"`
}

type summaryPayload struct {
	Summary string `json:"summary"`
}

type scenesPayload struct {
	Scenes []SceneBoundary `json:"scenes"`
}

// summaryModel resolves the shot/scene summary model override.
func summaryModel() string {
	if m := os.Getenv("BEDROCK_SUMMARY_MODEL"); m != "" {
		return m
	}
	return bedrock.DefaultSummaryModel
}

// sceneModel resolves the scene partition model override.
func sceneModel() string {
	if m := os.Getenv("BEDROCK_SCENE_MODEL"); m != "" {
		return m
	}
	return bedrock.DefaultSceneModel
}

// summarize asks Claude for a {"summary": ...} object over captions and
// subtitles. Malformed output retries once; after that the summary degrades
// to "" and the caller continues.
func summarize(ctx context.Context, llm *bedrock.Client, system string, captions []timedCaption, subtitles []task.Subtitle) string {
	capsJSON, _ := json.Marshal(captions)
	subsJSON, _ := json.Marshal(subtitles)
	example, _ := json.Marshal(summaryPayload{Summary: "This video shot shows"})

	messages := []bedrock.Message{
		{Role: "user", Content: fmt.Sprintf(
			"Here are the video frame summaries in the <caption> tag:\n<caption>%s\n</caption>\nand the timestamp-level audio transcription in the <subtitle> tag:\n<subtitle>%s\n</subtitle>\n",
			capsJSON, subsJSON)},
		{Role: "assistant", Content: "Got the captions and subtitles. What output format?"},
		{Role: "user", Content: fmt.Sprintf("JSON format. An example of the output:\n%s\n", example)},
	}

	for attempt := 1; attempt <= 2; attempt++ {
		raw, err := llm.CompleteJSON(ctx, summaryModel(), system, messages, 0)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Summary call failed")
			continue
		}
		payload, err := jsonutil.ParseJSON[summaryPayload](raw)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Summary response malformed")
			continue
		}
		return payload.Summary
	}
	log.Warn().Msg("Summary generation failed twice, leaving summary empty")
	return ""
}

// SummarizeShot generates the natural-language summary for one shot.
func SummarizeShot(ctx context.Context, llm *bedrock.Client, shot task.Shot) string {
	return summarize(ctx, llm, shotSummarySystem, shotCaptions(shot), shotSubtitles(shot))
}

// SummarizeScene regenerates a scene summary from its member shots' frame
// captions and subtitles. Shot summaries compress context away, so the scene
// summary always goes back to the frame-level material.
func SummarizeScene(ctx context.Context, llm *bedrock.Client, scene task.Scene) string {
	var captions []timedCaption
	var subtitles []task.Subtitle
	for _, shot := range scene.Shots {
		captions = append(captions, shotCaptions(shot)...)
		subtitles = append(subtitles, shotSubtitles(shot)...)
	}
	return summarize(ctx, llm, sceneSummarySystem, captions, subtitles)
}

// PartitionScenes asks the larger model to split the timeline into scenes
// from the shot tuples. Malformed output retries once, then the stage fails:
// unlike summaries there is nothing to degrade to.
func PartitionScenes(ctx context.Context, llm *bedrock.Client, metadata []ShotMetadata) ([]SceneBoundary, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal shot metadata: %w", err)
	}
	example, _ := json.Marshal(scenesPayload{Scenes: []SceneBoundary{{StartTS: 10.5, EndTS: 20}}})

	messages := []bedrock.Message{
		{Role: "user", Content: fmt.Sprintf(
			"Here is the shot-level information for the video, which includes the start and end times, a summary for each shot, and audio transcriptions aligned with the shots, in the <metadata> tag:<metadata>%s</metadata>",
			metaJSON)},
		{Role: "assistant", Content: "Got the metadata. What is the output format?"},
		{Role: "user", Content: fmt.Sprintf("JSON format. An example of the output:\n%s\n", example)},
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		raw, err := llm.CompleteJSON(ctx, sceneModel(), scenePartitionSystem, messages, scenePartitionMaxTokens)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("Scene partition call failed")
			continue
		}
		payload, err := jsonutil.ParseJSON[scenesPayload](raw)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Msg("Scene partition response malformed")
			continue
		}
		return payload.Scenes, nil
	}
	return nil, fmt.Errorf("scene partition failed after retry: %w", lastErr)
}

// ShotsMetadata builds the scene partition input from persisted shots.
func ShotsMetadata(shots []task.Shot) []ShotMetadata {
	metadata := make([]ShotMetadata, 0, len(shots))
	for _, shot := range shots {
		metadata = append(metadata, ShotMetadata{
			Summary:     shot.Summary,
			StartTS:     shot.StartTS,
			EndTS:       shot.EndTS,
			Transcripts: shotSubtitles(shot),
		})
	}
	return metadata
}

// AssembleScenes attaches each shot to every scene its interval overlaps and
// numbers the scene records. Scene summaries are filled in afterwards.
func AssembleScenes(taskID string, boundaries []SceneBoundary, shots []task.Shot) []task.Scene {
	var scenes []task.Scene
	for _, b := range boundaries {
		index := len(scenes) + 1
		scene := task.Scene{
			ID:           SceneID(taskID, index),
			TaskID:       taskID,
			AnalysisType: task.AnalysisTypeScene,
			Index:        index,
			StartTS:      b.StartTS,
			EndTS:        b.EndTS,
		}
		for _, shot := range shots {
			if Overlaps(shot.StartTS, shot.EndTS, b.StartTS, b.EndTS) {
				scene.Shots = append(scene.Shots, shot)
			}
		}
		scenes = append(scenes, scene)
	}
	return scenes
}
