// Package transcript runs Amazon Transcribe over task videos and turns the
// resulting transcript and VTT subtitle files into timestamped rows the
// per-frame extraction stage can align against.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/rs/zerolog/log"
)

// JobNamePrefix namespaces our Transcribe jobs. The task ID prefix keeps the
// job name under the service's length limit while staying traceable.
const JobNamePrefix = "video-extract-"

// JobName derives the Transcribe job name for a task.
func JobName(taskID string) string {
	id := taskID
	if len(id) > 5 {
		id = id[:5]
	}
	return JobNamePrefix + id
}

// OutputKey is where Transcribe writes the JSON transcript for a task. The
// matching VTT lands next to it with the extension swapped.
func OutputKey(taskID string) string {
	return fmt.Sprintf("tasks/%s/transcribe/%s_transcribe.json", taskID, taskID)
}

// StartJob kicks off a transcription job with language identification and
// VTT subtitle output.
func StartJob(ctx context.Context, client *transcribe.Client, taskID, videoBucket, videoKey, outputBucket string) error {
	mediaURI := fmt.Sprintf("s3://%s/%s", videoBucket, videoKey)
	_, err := client.StartTranscriptionJob(ctx, &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(JobName(taskID)),
		Media:                &types.Media{MediaFileUri: &mediaURI},
		OutputBucketName:     &outputBucket,
		OutputKey:            aws.String(OutputKey(taskID)),
		IdentifyLanguage:     aws.Bool(true),
		Subtitles: &types.Subtitles{
			Formats:          []types.SubtitleFormat{types.SubtitleFormatVtt},
			OutputStartIndex: aws.Int32(1),
		},
	})
	if err != nil {
		return fmt.Errorf("StartTranscriptionJob for task %s: %w", taskID, err)
	}
	log.Info().Str("taskId", taskID).Str("media", mediaURI).Msg("Transcription job started")
	return nil
}

// DeleteJob removes a task's transcription job. A missing job is fine; the
// delete cascade calls this for tasks that never had transcription enabled.
func DeleteJob(ctx context.Context, client *transcribe.Client, taskID string) error {
	_, err := client.DeleteTranscriptionJob(ctx, &transcribe.DeleteTranscriptionJobInput{
		TranscriptionJobName: aws.String(JobName(taskID)),
	})
	if err != nil {
		var nf *types.NotFoundException
		var br *types.BadRequestException
		if errors.As(err, &nf) || errors.As(err, &br) {
			log.Debug().Str("taskId", taskID).Msg("No transcription job to delete")
			return nil
		}
		return fmt.Errorf("DeleteTranscriptionJob for task %s: %w", taskID, err)
	}
	return nil
}

// transcriptDocument is the subset of the Transcribe JSON output we keep.
type transcriptDocument struct {
	Results struct {
		LanguageCode string `json:"language_code"`
		Transcripts  []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

// ParseTranscriptJSON extracts the language code and full transcript text
// from a Transcribe output document.
func ParseTranscriptJSON(data []byte) (languageCode, fullText string, err error) {
	var doc transcriptDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", "", fmt.Errorf("parse transcript JSON: %w", err)
	}
	for _, t := range doc.Results.Transcripts {
		if fullText != "" {
			fullText += " "
		}
		fullText += t.Transcript
	}
	return doc.Results.LanguageCode, fullText, nil
}
