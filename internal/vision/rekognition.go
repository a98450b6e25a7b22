// Package vision runs Rekognition detectors over sampled frames and
// normalizes every detector's output into one Detection shape.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/mediaops/extraction-service/internal/task"
)

// Default per-detector confidence floors, matching the service defaults.
// Task settings override them when > 0.
const (
	DefaultLabelConfidence      = 70.0
	DefaultTextConfidence       = 80.0
	DefaultCelebrityConfidence  = 90.0
	DefaultModerationConfidence = 60.0

	maxLabels = 10
)

// Client wraps Rekognition image detectors. Frames are referenced by S3
// location rather than inlined bytes; Rekognition reads them directly.
type Client struct {
	rek *rekognition.Client
}

// New wraps a Rekognition client.
func New(rek *rekognition.Client) *Client {
	return &Client{rek: rek}
}

func s3Image(bucket, key string) *types.Image {
	return &types.Image{
		S3Object: &types.S3Object{
			Bucket: &bucket,
			Name:   &key,
		},
	}
}

// normalizeName replaces spaces with underscores so detection names survive
// as single tokens in embedding text and aggregation keys.
func normalizeName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// DetectLabels returns object labels with their category names, plus the raw
// provider response serialized for the debug archive.
func (c *Client) DetectLabels(ctx context.Context, bucket, key string, minConfidence float64) ([]task.Detection, []byte, error) {
	if minConfidence <= 0 {
		minConfidence = DefaultLabelConfidence
	}
	resp, err := c.rek.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         s3Image(bucket, key),
		MinConfidence: aws.Float32(float32(minConfidence)),
		MaxLabels:     aws.Int32(maxLabels),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("DetectLabels %s/%s: %w", bucket, key, err)
	}

	var detections []task.Detection
	for _, label := range resp.Labels {
		d := task.Detection{
			Name:       normalizeName(aws.ToString(label.Name)),
			Confidence: float64(aws.ToFloat32(label.Confidence)),
		}
		for _, cat := range label.Categories {
			d.Categories = append(d.Categories, normalizeName(aws.ToString(cat.Name)))
		}
		detections = append(detections, d)
	}
	raw, _ := json.Marshal(resp.Labels)
	return detections, raw, nil
}

// DetectText returns detected text lines. Word-level detections are dropped;
// lines carry the readable content.
func (c *Client) DetectText(ctx context.Context, bucket, key string, minConfidence float64) ([]task.Detection, []byte, error) {
	if minConfidence <= 0 {
		minConfidence = DefaultTextConfidence
	}
	resp, err := c.rek.DetectText(ctx, &rekognition.DetectTextInput{
		Image: s3Image(bucket, key),
		Filters: &types.DetectTextFilters{
			WordFilter: &types.DetectionFilter{
				MinConfidence: aws.Float32(float32(minConfidence)),
			},
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("DetectText %s/%s: %w", bucket, key, err)
	}

	var detections []task.Detection
	for _, text := range resp.TextDetections {
		if text.Type != types.TextTypesLine {
			continue
		}
		detections = append(detections, task.Detection{
			Name:       normalizeName(aws.ToString(text.DetectedText)),
			Confidence: float64(aws.ToFloat32(text.Confidence)),
		})
	}
	raw, _ := json.Marshal(resp.TextDetections)
	return detections, raw, nil
}

// DetectCelebrities returns recognized faces above the match-confidence floor.
func (c *Client) DetectCelebrities(ctx context.Context, bucket, key string, minConfidence float64) ([]task.Detection, []byte, error) {
	if minConfidence <= 0 {
		minConfidence = DefaultCelebrityConfidence
	}
	resp, err := c.rek.RecognizeCelebrities(ctx, &rekognition.RecognizeCelebritiesInput{
		Image: s3Image(bucket, key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("RecognizeCelebrities %s/%s: %w", bucket, key, err)
	}

	var detections []task.Detection
	for _, celeb := range resp.CelebrityFaces {
		conf := float64(aws.ToFloat32(celeb.MatchConfidence))
		if conf < minConfidence {
			continue
		}
		detections = append(detections, task.Detection{
			Name:       normalizeName(aws.ToString(celeb.Name)),
			Confidence: conf,
		})
	}
	raw, _ := json.Marshal(resp.CelebrityFaces)
	return detections, raw, nil
}

// DetectModeration returns moderation labels named "Parent/Label". Top-level
// category labels (no parent) are skipped; the child label carries both.
func (c *Client) DetectModeration(ctx context.Context, bucket, key string, minConfidence float64) ([]task.Detection, []byte, error) {
	if minConfidence <= 0 {
		minConfidence = DefaultModerationConfidence
	}
	resp, err := c.rek.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         s3Image(bucket, key),
		MinConfidence: aws.Float32(float32(minConfidence)),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("DetectModerationLabels %s/%s: %w", bucket, key, err)
	}

	var detections []task.Detection
	for _, mod := range resp.ModerationLabels {
		parent := aws.ToString(mod.ParentName)
		if parent == "" {
			continue
		}
		detections = append(detections, task.Detection{
			Name:       normalizeName(parent + "/" + aws.ToString(mod.Name)),
			Confidence: float64(aws.ToFloat32(mod.Confidence)),
		})
	}
	raw, _ := json.Marshal(resp.ModerationLabels)
	return detections, raw, nil
}

// Names flattens detections to their names, preserving order.
func Names(detections []task.Detection) []string {
	if len(detections) == 0 {
		return nil
	}
	names := make([]string, 0, len(detections))
	for _, d := range detections {
		names = append(names, d.Name)
	}
	return names
}
