// Package events publishes task lifecycle notifications to an EventBridge
// bus so downstream consumers can react to status changes without polling
// the task table.
package events

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

const (
	source           = "video.extraction"
	statusDetailType = "TaskStatusChange"
)

// Publisher emits task events onto one EventBridge bus. A nil Publisher is
// valid and drops all events, so Lambdas without a configured bus skip
// publishing without branching at every call site.
type Publisher struct {
	eb      *eventbridge.Client
	busName string
}

// New returns a publisher for the named bus, or nil when busName is empty.
func New(ebClient *eventbridge.Client, busName string) *Publisher {
	if busName == "" {
		return nil
	}
	return &Publisher{eb: ebClient, busName: busName}
}

// StatusChange is the event detail payload for a task status transition.
type StatusChange struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Stage  string `json:"stage,omitempty"`
	Error  string `json:"error,omitempty"`
}

// PublishStatus emits a TaskStatusChange event. Publish failures are logged
// and swallowed; a missed notification must not fail the stage.
func (p *Publisher) PublishStatus(ctx context.Context, change StatusChange) {
	if p == nil {
		return
	}
	detail, err := json.Marshal(change)
	if err != nil {
		log.Warn().Err(err).Str("taskId", change.TaskID).Msg("Failed to marshal status event")
		return
	}
	_, err = p.eb.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: &p.busName,
			Source:       aws.String(source),
			DetailType:   aws.String(statusDetailType),
			Detail:       aws.String(string(detail)),
		}},
	})
	if err != nil {
		log.Warn().Err(err).Str("taskId", change.TaskID).Str("status", change.Status).Msg("Failed to publish status event")
		return
	}
	log.Debug().Str("taskId", change.TaskID).Str("status", change.Status).Msg("Status event published")
}
