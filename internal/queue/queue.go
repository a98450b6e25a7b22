// Package queue wraps the SQS admission queue that feeds task submissions
// into the workflow. Messages that cannot be admitted yet are left on the
// queue and resurface after the visibility timeout, which is the retry and
// backpressure mechanism for concurrency control.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
)

// Submission is the admission-queue message body. It carries the task ID
// whose workflow execution should be started.
type Submission struct {
	TaskID string `json:"task_id"`
}

// Client sends admission-queue messages. Consumers acknowledge through the
// Lambda event source's batch item failure response, not through this client.
type Client struct {
	sqs      *sqs.Client
	queueURL string
}

// New returns a queue client bound to one SQS queue URL.
func New(sqsClient *sqs.Client, queueURL string) *Client {
	return &Client{sqs: sqsClient, queueURL: queueURL}
}

// Enqueue publishes a task submission onto the admission queue.
func (c *Client) Enqueue(ctx context.Context, taskID string) error {
	body, err := json.Marshal(Submission{TaskID: taskID})
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	_, err = c.sqs.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &c.queueURL,
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("SQS SendMessage: %w", err)
	}
	log.Info().Str("taskId", taskID).Msg("Task enqueued for admission")
	return nil
}

// ParseSubmission decodes a raw message body. The body must carry a
// non-empty task ID.
func ParseSubmission(body string) (Submission, error) {
	var sub Submission
	if err := json.Unmarshal([]byte(body), &sub); err != nil {
		return Submission{}, fmt.Errorf("unmarshal submission: %w", err)
	}
	if sub.TaskID == "" {
		return Submission{}, fmt.Errorf("submission missing task_id")
	}
	return sub, nil
}
