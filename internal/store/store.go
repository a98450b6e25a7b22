// Package store persists tasks, frames, transcriptions, and shot/scene
// analysis records in DynamoDB.
//
// Table layout (one table per record kind, matching the access paths the
// pipeline needs):
//
//	video_task          PK: Id
//	video_frame         PK: id, SK: task_id   GSI task_id-timestamp-index (task_id, timestamp)
//	video_analysis      PK: id, SK: task_id   GSI task_id-analysis_type-index (task_id, analysis_type)
//	video_transcription PK: task_id
//
// All writes marshal whole records with attributevalue; partial-field updates
// are limited to the status guard and the similarity-score backfill.
package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxBatchWrite is the DynamoDB BatchWriteItem limit per call.
const maxBatchWrite = 25

// Tables names the four DynamoDB tables the pipeline uses.
type Tables struct {
	Task          string
	Frame         string
	Analysis      string
	Transcription string
}

// Store wraps a DynamoDB client with the pipeline's table layout.
type Store struct {
	client *dynamodb.Client
	tables Tables
}

// New creates a Store for the given tables. The client should be initialized
// from the shared AWS config.
func New(client *dynamodb.Client, tables Tables) *Store {
	return &Store{client: client, tables: tables}
}

// putRecord marshals a record and writes it to the given table.
func (s *Store) putRecord(ctx context.Context, table string, record interface{}) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &table,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem table=%s: %w", table, err)
	}
	return nil
}

// getRecord reads a single item by key and unmarshals it into out.
// Returns false if the item does not exist (out is not modified).
func (s *Store) getRecord(ctx context.Context, table string, key map[string]types.AttributeValue, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &table,
		Key:       key,
	})
	if err != nil {
		return false, fmt.Errorf("GetItem table=%s: %w", table, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal table=%s: %w", table, err)
	}
	return true, nil
}

// deleteRecord removes a single item by key. Deleting a missing item is not
// an error; the delete cascade relies on that.
func (s *Store) deleteRecord(ctx context.Context, table string, key map[string]types.AttributeValue) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &table,
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("DeleteItem table=%s: %w", table, err)
	}
	return nil
}

// queryAll drains every page of a Query. DynamoDB returns at most 1MB per call.
func (s *Store) queryAll(ctx context.Context, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query table=%s: %w", *input.TableName, err)
		}
		items = append(items, result.Items...)
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return items, nil
}

// batchDeleteKeys deletes multiple items by key, chunked to DynamoDB's
// 25-item batch limit.
func (s *Store) batchDeleteKeys(ctx context.Context, table string, keys []map[string]types.AttributeValue) error {
	for i := 0; i < len(keys); i += maxBatchWrite {
		end := i + maxBatchWrite
		if end > len(keys) {
			end = len(keys)
		}

		var requests []types.WriteRequest
		for _, key := range keys[i:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key},
			})
		}

		_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				table: requests,
			},
		})
		if err != nil {
			return fmt.Errorf("BatchWriteItem delete table=%s (%d items): %w", table, len(requests), err)
		}
	}
	return nil
}

func stringKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func compositeKey(pkName, pk, skName, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pk},
		skName: &types.AttributeValueMemberS{Value: sk},
	}
}
