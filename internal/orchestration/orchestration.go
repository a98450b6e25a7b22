// Package orchestration wraps the Step Functions state machine that runs the
// per-task extraction workflow.
package orchestration

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sfn/types"
	"github.com/rs/zerolog/log"
)

// Client starts and inspects workflow executions for one state machine.
type Client struct {
	sfn             *sfn.Client
	stateMachineARN string
}

// New returns an orchestration client bound to one state machine ARN.
func New(sfnClient *sfn.Client, stateMachineARN string) *Client {
	return &Client{sfn: sfnClient, stateMachineARN: stateMachineARN}
}

// WorkflowInput is the execution input document. Each stage of the workflow
// receives it unchanged and loads everything else from the task record.
type WorkflowInput struct {
	TaskID string `json:"task_id"`
}

// CountRunning returns the number of RUNNING executions on the state
// machine, paginating until the count alone answers the admission question.
func (c *Client) CountRunning(ctx context.Context) (int, error) {
	count := 0
	paginator := sfn.NewListExecutionsPaginator(c.sfn, &sfn.ListExecutionsInput{
		StateMachineArn: &c.stateMachineARN,
		StatusFilter:    types.ExecutionStatusRunning,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("ListExecutions: %w", err)
		}
		count += len(page.Executions)
	}
	return count, nil
}

// Start launches a workflow execution for the task. The execution is named
// after the task ID so a duplicate start of the same task fails fast on the
// Step Functions side instead of running twice.
func (c *Client) Start(ctx context.Context, taskID string) (string, error) {
	input, err := json.Marshal(WorkflowInput{TaskID: taskID})
	if err != nil {
		return "", fmt.Errorf("marshal workflow input: %w", err)
	}
	out, err := c.sfn.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: &c.stateMachineARN,
		Name:            aws.String("task-" + taskID),
		Input:           aws.String(string(input)),
	})
	if err != nil {
		return "", fmt.Errorf("StartExecution: %w", err)
	}
	arn := aws.ToString(out.ExecutionArn)
	log.Info().Str("taskId", taskID).Str("executionArn", arn).Msg("Workflow execution started")
	return arn, nil
}
