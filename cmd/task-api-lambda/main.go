// Package main provides the task query API Lambda.
//
// Invoked through API Gateway (Lambda proxy integration). Read endpoints
// serve the task record and its derived data; the delete endpoint marks the
// task deleting and hands it to the deletion queue.
//
//	GET    /tasks              list tasks (limit query param)
//	GET    /tasks/{id}         one task
//	GET    /tasks/{id}/frames  frames, optionally bounded by from/to
//	GET    /tasks/{id}/shots   shots ordered by start_ts
//	GET    /tasks/{id}/scenes  scenes ordered by start_ts
//	POST   /tasks/{id}/search  semantic frame search over the vector index
//	DELETE /tasks/{id}         request the delete cascade
//
// Memory: 256 MB
// Timeout: 30 seconds
package main

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/embedding"
	evt "github.com/mediaops/extraction-service/internal/events"
	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/queue"
	"github.com/mediaops/extraction-service/internal/store"
	"github.com/mediaops/extraction-service/internal/task"
	"github.com/mediaops/extraction-service/internal/vectorstore"
)

const defaultListLimit = 50

var (
	taskStore   *store.Store
	deleteQueue *queue.Client
	publisher   *evt.Publisher
	vectors     *vectorstore.Store
	embedder    *embedding.Client
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	taskStore = lambdaboot.InitStore(aws.Config)

	deleteQueueURL := lambdaboot.MustEnv("DELETE_QUEUE_URL")
	deleteQueue = queue.New(sqs.NewFromConfig(aws.Config), deleteQueueURL)
	publisher = evt.New(eventbridge.NewFromConfig(aws.Config), os.Getenv("EVENT_BUS_NAME"))

	if dsn := lambdaboot.LoadVectorDSN(aws.SSM); dsn != "" {
		var err error
		vectors, err = vectorstore.New(context.Background(), dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to vector store")
		}
	}
	if fn := os.Getenv("EMBEDDING_FUNCTION_NAME"); fn != "" {
		embedder = embedding.New(lambdasvc.NewFromConfig(aws.Config), fn)
	}

	logging.NewStartupLogger("task-api-lambda").
		InitDuration(time.Since(initStart)).
		Queue("delete", deleteQueueURL).
		Feature("vectorSearch", vectors != nil && embedder != nil).
		Log()
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	segments := splitPath(request.Path)
	if len(segments) == 0 || segments[0] != "tasks" {
		return respondError(404, "not found"), nil
	}

	switch {
	case len(segments) == 1 && request.HTTPMethod == "GET":
		return listTasks(ctx, request)
	case len(segments) == 2 && request.HTTPMethod == "GET":
		return getTask(ctx, segments[1])
	case len(segments) == 2 && request.HTTPMethod == "DELETE":
		return deleteTask(ctx, segments[1])
	case len(segments) == 3 && request.HTTPMethod == "GET" && segments[2] == "frames":
		return listFrames(ctx, segments[1], request)
	case len(segments) == 3 && request.HTTPMethod == "GET" && segments[2] == "shots":
		return listShots(ctx, segments[1])
	case len(segments) == 3 && request.HTTPMethod == "GET" && segments[2] == "scenes":
		return listScenes(ctx, segments[1])
	case len(segments) == 3 && request.HTTPMethod == "POST" && segments[2] == "search":
		return searchFrames(ctx, segments[1], request)
	}
	return respondError(404, "not found"), nil
}

func listTasks(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	limit := defaultListLimit
	if v := request.QueryStringParameters["limit"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return respondError(400, "limit must be a positive integer"), nil
		}
		limit = n
	}
	tasks, err := taskStore.ListTasks(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tasks")
		return respondError(500, "failed to list tasks"), nil
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].RequestTs > tasks[j].RequestTs })
	return respondJSON(200, map[string]interface{}{"tasks": tasks}), nil
}

func getTask(ctx context.Context, taskID string) (events.APIGatewayProxyResponse, error) {
	t, err := taskStore.GetTask(ctx, taskID)
	if err != nil {
		log.Error().Err(err).Str("taskId", taskID).Msg("Failed to load task")
		return respondError(500, "failed to load task"), nil
	}
	if t == nil {
		return respondError(404, "task not found"), nil
	}
	return respondJSON(200, t), nil
}

func deleteTask(ctx context.Context, taskID string) (events.APIGatewayProxyResponse, error) {
	t, err := taskStore.GetTask(ctx, taskID)
	if err != nil {
		return respondError(500, "failed to load task"), nil
	}
	if t == nil {
		return respondError(404, "task not found"), nil
	}
	if err := taskStore.UpdateTaskStatus(ctx, taskID, task.StatusDeleting); err != nil {
		log.Error().Err(err).Str("taskId", taskID).Msg("Failed to mark task deleting")
		return respondError(500, "failed to mark task deleting"), nil
	}
	if err := deleteQueue.Enqueue(ctx, taskID); err != nil {
		log.Error().Err(err).Str("taskId", taskID).Msg("Failed to enqueue deletion")
		return respondError(500, "failed to enqueue deletion"), nil
	}
	publisher.PublishStatus(ctx, evt.StatusChange{TaskID: taskID, Status: string(task.StatusDeleting), Stage: "api"})
	return respondJSON(202, map[string]string{"task_id": taskID, "status": string(task.StatusDeleting)}), nil
}

func listFrames(ctx context.Context, taskID string, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	frames, err := taskStore.FramesByTask(ctx, taskID)
	if err != nil {
		log.Error().Err(err).Str("taskId", taskID).Msg("Failed to load frames")
		return respondError(500, "failed to load frames"), nil
	}
	from, to, err := timeRange(request)
	if err != nil {
		return respondError(400, err.Error()), nil
	}
	filtered := frames[:0]
	for _, f := range frames {
		if f.Timestamp >= from && (to <= 0 || f.Timestamp <= to) {
			filtered = append(filtered, f)
		}
	}
	return respondJSON(200, map[string]interface{}{"frames": filtered}), nil
}

func listShots(ctx context.Context, taskID string) (events.APIGatewayProxyResponse, error) {
	shots, err := taskStore.ShotsByTask(ctx, taskID)
	if err != nil {
		log.Error().Err(err).Str("taskId", taskID).Msg("Failed to load shots")
		return respondError(500, "failed to load shots"), nil
	}
	return respondJSON(200, map[string]interface{}{"shots": shots}), nil
}

func listScenes(ctx context.Context, taskID string) (events.APIGatewayProxyResponse, error) {
	scenes, err := taskStore.ScenesByTask(ctx, taskID)
	if err != nil {
		log.Error().Err(err).Str("taskId", taskID).Msg("Failed to load scenes")
		return respondError(500, "failed to load scenes"), nil
	}
	return respondJSON(200, map[string]interface{}{"scenes": scenes}), nil
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func searchFrames(ctx context.Context, taskID string, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if vectors == nil || embedder == nil {
		return respondError(503, "vector search is not configured"), nil
	}
	var req searchRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return respondError(400, "invalid JSON body"), nil
	}
	if strings.TrimSpace(req.Query) == "" {
		return respondError(400, "query is required"), nil
	}

	// Queries embed through the multimodal model so they land in the same
	// vector space as the frame images.
	resp, err := embedder.Embed(ctx, embedding.Request{Text: req.Query, Multimodal: true})
	if err != nil {
		log.Error().Err(err).Str("taskId", taskID).Msg("Failed to embed search query")
		return respondError(500, "failed to embed query"), nil
	}
	results, err := vectors.SearchFrames(ctx, taskID, resp.MultimodalEmbedding, req.Limit)
	if err != nil {
		log.Error().Err(err).Str("taskId", taskID).Msg("Vector search failed")
		return respondError(500, "search failed"), nil
	}
	return respondJSON(200, map[string]interface{}{"results": results}), nil
}

func timeRange(request events.APIGatewayProxyRequest) (from, to float64, err error) {
	if v := request.QueryStringParameters["from"]; v != "" {
		if from, err = strconv.ParseFloat(v, 64); err != nil {
			return 0, 0, strconv.ErrSyntax
		}
	}
	if v := request.QueryStringParameters["to"]; v != "" {
		if to, err = strconv.ParseFloat(v, 64); err != nil {
			return 0, 0, strconv.ErrSyntax
		}
	}
	return from, to, nil
}

func splitPath(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func respondJSON(code int, body interface{}) events.APIGatewayProxyResponse {
	data, err := json.Marshal(body)
	if err != nil {
		return respondError(500, "failed to encode response")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}

func respondError(code int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func main() {
	lambda.Start(handler)
}
