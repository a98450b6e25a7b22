// Package main provides extractctl, the operator CLI for the extraction
// pipeline.
//
// The CLI talks to the same AWS resources as the Lambdas (task tables,
// artifact bucket, queues, vector index), configured through the same
// environment variables. It is an operator tool, not a client SDK: it exists
// for poking at tasks during development and for pulling artifact bundles
// off production.
package main

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mediaops/extraction-service/internal/embedding"
	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/queue"
	"github.com/mediaops/extraction-service/internal/s3util"
	"github.com/mediaops/extraction-service/internal/store"
	"github.com/mediaops/extraction-service/internal/task"
	"github.com/mediaops/extraction-service/internal/transcript"
	"github.com/mediaops/extraction-service/internal/vectorstore"
)

// CLI flags
var (
	requestFileFlag string
	outputFlag      string
	limitFlag       int
	jsonFlag        bool
)

type clients struct {
	store      *store.Store
	s3         *s3.Client
	bucket     string
	sqs        *sqs.Client
	transcribe *transcribe.Client
	ssm        *ssm.Client
	lambda     *lambdasvc.Client
}

var env clients

var rootCmd = &cobra.Command{
	Use:   "extractctl",
	Short: "Operate the video extraction pipeline",
	Long: `extractctl submits, inspects, exports, and deletes video extraction
tasks against the same AWS resources the pipeline Lambdas use.

Configuration comes from the environment: VIDEO_TASK_TABLE,
ARTIFACT_BUCKET_NAME, ADMISSION_QUEUE_URL, DELETE_QUEUE_URL, and optionally
VECTOR_DB_DSN and EMBEDDING_FUNCTION_NAME for search.

Examples:
  extractctl submit -f request.json
  extractctl status 1b9e4c52-7c31-4d2e-9a0f-3f6d1c2b4a5e
  extractctl frames 1b9e4c52-... --json
  extractctl search 1b9e4c52-... "dog running on a beach"
  extractctl export 1b9e4c52-... -o task-bundle.tar.zst
  extractctl delete 1b9e4c52-...`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()

		cfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load AWS config")
		}
		env = clients{
			store:      lambdaboot.InitStore(cfg),
			s3:         s3.NewFromConfig(cfg),
			bucket:     os.Getenv("ARTIFACT_BUCKET_NAME"),
			sqs:        sqs.NewFromConfig(cfg),
			transcribe: transcribe.NewFromConfig(cfg),
			ssm:        ssm.NewFromConfig(cfg),
			lambda:     lambdasvc.NewFromConfig(cfg),
		}
	},
	SilenceUsage: true,
}

func init() {
	submitCmd.Flags().StringVarP(&requestFileFlag, "file", "f", "", "Extraction request JSON file (- for stdin)")
	submitCmd.MarkFlagRequired("file")
	exportCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output bundle path (default <task-id>.tar.zst)")
	searchCmd.Flags().IntVar(&limitFlag, "limit", 10, "Maximum results")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print raw JSON instead of summaries")

	rootCmd.AddCommand(submitCmd, statusCmd, framesCmd, shotsCmd, scenesCmd, searchCmd, exportCmd, deleteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new extraction task",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var data []byte
		var err error
		if requestFileFlag == "-" {
			data, err = os.ReadFile("/dev/stdin")
		} else {
			data, err = os.ReadFile(requestFileFlag)
		}
		if err != nil {
			return err
		}

		var req task.Request
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("parse request: %w", err)
		}
		if err := req.Validate(); err != nil {
			return err
		}

		taskID := req.TaskID
		if taskID == "" {
			taskID = uuid.NewString()
		}
		t := &task.Task{
			ID:        taskID,
			Request:   &req,
			RequestTs: time.Now().UTC().Format(time.RFC3339),
			RequestBy: req.RequestBy,
			Status:    task.StatusEnqueuing,
			MetaData:  &task.MetaData{},
		}
		if err := env.store.PutTask(ctx, t); err != nil {
			return err
		}

		if req.ExtractionSetting.Transcription {
			if env.bucket == "" {
				return fmt.Errorf("ARTIFACT_BUCKET_NAME is required for transcription tasks")
			}
			video := req.Video.S3Object
			if err := transcript.StartJob(ctx, env.transcribe, taskID, video.Bucket, video.Key, env.bucket); err != nil {
				return err
			}
			if err := env.store.UpdateTaskStatus(ctx, taskID, task.StatusStartTranscription); err != nil {
				return err
			}
		} else {
			q := queue.New(env.sqs, lambdaboot.MustEnv("ADMISSION_QUEUE_URL"))
			if err := q.Enqueue(ctx, taskID); err != nil {
				return err
			}
		}

		fmt.Println(taskID)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task's status and progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := env.store.GetTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("task %s not found", args[0])
		}
		if jsonFlag {
			return printJSON(t)
		}

		fmt.Printf("Task:      %s\n", t.ID)
		fmt.Printf("Status:    %s\n", t.Status)
		fmt.Printf("Requested: %s\n", t.RequestTs)
		if md := t.MetaData; md != nil {
			if v := md.VideoMetaData; v != nil {
				fmt.Printf("Video:     %.1fs %dx%d @%.2ffps\n", v.DurationS, v.Width, v.Height, v.FPS)
			}
			if s := md.VideoFrameS3; s != nil {
				fmt.Printf("Sampling:  %d/%d frames, cursor %.0fs, completed=%t\n",
					s.TotalFramesSampled, s.TotalFramesPlaned, s.SampleStartS, s.SampleCompleted)
			}
		}
		if t.EvalResult != nil {
			fmt.Printf("Verdict:   %s\n", t.EvalResult.Verdict)
		}
		if t.FailureDetail != "" {
			fmt.Printf("Failure:   %s\n", t.FailureDetail)
		}
		return nil
	},
}

var framesCmd = &cobra.Command{
	Use:   "frames <task-id>",
	Short: "List a task's sampled frames",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		frames, err := env.store.FramesByTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(frames)
		}
		for _, f := range frames {
			caption := f.ImageCaption
			if caption == "" {
				caption = "-"
			}
			fmt.Printf("%8.1fs  score=%.3f  labels=%-2d  %s\n",
				f.Timestamp, f.SimilarityScore, len(f.DetectLabel), caption)
		}
		fmt.Printf("%d frames\n", len(frames))
		return nil
	},
}

var shotsCmd = &cobra.Command{
	Use:   "shots <task-id>",
	Short: "List a task's detected shots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shots, err := env.store.ShotsByTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(shots)
		}
		for _, s := range shots {
			fmt.Printf("[%7.1fs %7.1fs) %2d frames  %s\n", s.StartTS, s.EndTS, len(s.Frames), firstLine(s.Summary))
		}
		fmt.Printf("%d shots\n", len(shots))
		return nil
	},
}

var scenesCmd = &cobra.Command{
	Use:   "scenes <task-id>",
	Short: "List a task's detected scenes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scenes, err := env.store.ScenesByTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(scenes)
		}
		for _, s := range scenes {
			fmt.Printf("[%7.1fs %7.1fs) %2d shots  %s\n", s.StartTS, s.EndTS, len(s.Shots), firstLine(s.Summary))
		}
		fmt.Printf("%d scenes\n", len(scenes))
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <task-id> <query>",
	Short: "Semantic search over a task's frames",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		taskID, query := args[0], args[1]

		dsn := lambdaboot.LoadVectorDSN(env.ssm)
		if dsn == "" {
			return fmt.Errorf("no vector database configured (set VECTOR_DB_DSN)")
		}
		vectors, err := vectorstore.New(ctx, dsn)
		if err != nil {
			return err
		}
		defer vectors.Close()

		embedder := embedding.New(env.lambda, lambdaboot.MustEnv("EMBEDDING_FUNCTION_NAME"))
		resp, err := embedder.Embed(ctx, embedding.Request{Text: query, Multimodal: true})
		if err != nil {
			return err
		}
		results, err := vectors.SearchFrames(ctx, taskID, resp.MultimodalEmbedding, limitFlag)
		if err != nil {
			return err
		}
		if jsonFlag {
			return printJSON(results)
		}
		for _, r := range results {
			fmt.Printf("%.3f  %8.1fs  %s\n", r.Similarity, r.FrameTS, firstLine(r.EmbeddingText))
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <task-id>",
	Short: "Download a task's artifacts into a compressed bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		taskID := args[0]
		if env.bucket == "" {
			return fmt.Errorf("ARTIFACT_BUCKET_NAME is required")
		}

		output := outputFlag
		if output == "" {
			output = taskID + ".tar.zst"
		}
		keys, err := s3util.ListKeys(ctx, env.s3, env.bucket, s3util.TaskPrefix(taskID))
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return fmt.Errorf("no artifacts found for task %s", taskID)
		}

		if err := writeBundle(ctx, output, keys); err != nil {
			return err
		}
		fmt.Printf("Wrote %d objects to %s\n", len(keys), output)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Request deletion of a task and all its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		taskID := args[0]

		t, err := env.store.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("task %s not found", taskID)
		}
		if err := env.store.UpdateTaskStatus(ctx, taskID, task.StatusDeleting); err != nil {
			return err
		}
		q := queue.New(env.sqs, lambdaboot.MustEnv("DELETE_QUEUE_URL"))
		if err := q.Enqueue(ctx, taskID); err != nil {
			return err
		}
		fmt.Printf("Deletion queued for %s\n", taskID)
		return nil
	},
}

// writeBundle streams every object into a zstd-compressed tar archive.
func writeBundle(ctx context.Context, output string, keys []string) error {
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)

	for _, key := range keys {
		data, err := s3util.GetObjectBytes(ctx, env.s3, env.bucket, key)
		if err != nil {
			return fmt.Errorf("download %s: %w", key, err)
		}
		hdr := &tar.Header{
			Name:    key,
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: time.Now(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return zw.Close()
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 100 {
		s = s[:100] + "…"
	}
	return s
}
