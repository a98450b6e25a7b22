// Package s3util provides shared S3 helpers used across the pipeline Lambdas:
// frame and artifact uploads, video downloads, and prefix-wide deletes for the
// task cleanup cascade.
package s3util

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// maxDeleteBatch is the S3 DeleteObjects limit per call.
const maxDeleteBatch = 1000

// TaskPrefix is the object-storage root for one task's artifacts. The
// trailing slash matters: prefix listing and the delete cascade must never
// match another task whose id merely starts with this one.
func TaskPrefix(taskID string) string {
	return "tasks/" + taskID + "/"
}

// DownloadToTempFile downloads an S3 object to a new temporary file and
// returns the file path plus a cleanup function that removes it.
func DownloadToTempFile(ctx context.Context, client *s3.Client, bucket, key string) (string, func(), error) {
	tmpFile, err := os.CreateTemp("", "s3dl-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", nil, fmt.Errorf("S3 GetObject %s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	if _, err := io.Copy(tmpFile, result.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", nil, fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}

	path := tmpFile.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove temp file")
		}
	}
	return path, cleanup, nil
}

// GetObjectBytes reads an entire S3 object into memory. Frames are a few
// hundred KB at most after resizing, so this stays well within Lambda memory.
func GetObjectBytes(ctx context.Context, client *s3.Client, bucket, key string) ([]byte, error) {
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject %s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// UploadBytes writes raw bytes to S3 with the given content type.
func UploadBytes(ctx context.Context, client *s3.Client, bucket, key string, data []byte, contentType string) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", bucket, key, err)
	}
	return nil
}

// UploadJPEG uploads an image with image/jpeg content type.
func UploadJPEG(ctx context.Context, client *s3.Client, bucket, key string, data []byte) error {
	return UploadBytes(ctx, client, bucket, key, data, "image/jpeg")
}

// UploadJSON uploads a serialized JSON document. Used for raw detector
// responses and per-stage debug artifacts.
func UploadJSON(ctx context.Context, client *s3.Client, bucket, key string, data []byte) error {
	return UploadBytes(ctx, client, bucket, key, data, "application/json")
}

// DeleteObject removes a single object. Deleting a missing key succeeds.
func DeleteObject(ctx context.Context, client *s3.Client, bucket, key string) error {
	_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("S3 DeleteObject %s/%s: %w", bucket, key, err)
	}
	return nil
}

// ListKeys returns every object key under a prefix.
func ListKeys(ctx context.Context, client *s3.Client, bucket, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: &bucket,
		Prefix: &prefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("S3 ListObjectsV2 %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// DeletePrefix removes every object under a prefix, batched to the S3
// DeleteObjects limit. An empty or missing prefix deletes nothing and is
// not an error; the task delete cascade depends on that.
func DeletePrefix(ctx context.Context, client *s3.Client, bucket, prefix string) (int, error) {
	keys, err := ListKeys(ctx, client, bucket, prefix)
	if err != nil {
		return 0, err
	}

	for i := 0; i < len(keys); i += maxDeleteBatch {
		end := i + maxDeleteBatch
		if end > len(keys) {
			end = len(keys)
		}

		objects := make([]types.ObjectIdentifier, 0, end-i)
		for _, key := range keys[i:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}

		_, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: &bucket,
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return 0, fmt.Errorf("S3 DeleteObjects %s/%s (%d keys): %w", bucket, prefix, len(objects), err)
		}
	}

	if len(keys) > 0 {
		log.Debug().Str("bucket", bucket).Str("prefix", prefix).Int("count", len(keys)).Msg("S3 prefix deleted")
	}
	return len(keys), nil
}
