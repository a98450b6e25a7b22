// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// Every Lambda in the pipeline needs some subset of: AWS config, S3, the
// DynamoDB task store, SSM parameter fetch, and startup logging. This package
// extracts the common init patterns so each Lambda's init() is a short
// composition of helpers.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/store"
)

// AWSClients holds the core AWS SDK clients used across Lambdas.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// S3Clients holds an S3 client and the artifact bucket name.
type S3Clients struct {
	Client *s3.Client
	Bucket string
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3 creates an S3 client and reads the bucket name from the given
// environment variable. Fatals if the env var is empty.
func InitS3(cfg aws.Config, bucketEnvVar string) S3Clients {
	bucket := os.Getenv(bucketEnvVar)
	if bucket == "" {
		log.Fatal().Str("envVar", bucketEnvVar).Msg("Bucket environment variable is required")
	}
	return S3Clients{
		Client: s3.NewFromConfig(cfg),
		Bucket: bucket,
	}
}

// InitStore creates the DynamoDB task store from the standard table-name
// environment variables. Fatals if the task table is not configured; the
// frame, analysis, and transcription tables default to conventional names
// when unset.
func InitStore(cfg aws.Config) *store.Store {
	tables := store.Tables{
		Task:          os.Getenv("VIDEO_TASK_TABLE"),
		Frame:         envOr("VIDEO_FRAME_TABLE", "video_frame"),
		Analysis:      envOr("VIDEO_ANALYSIS_TABLE", "video_analysis"),
		Transcription: envOr("VIDEO_TRANSCRIPTION_TABLE", "video_transcription"),
	}
	if tables.Task == "" {
		log.Fatal().Str("envVar", "VIDEO_TASK_TABLE").Msg("Task table environment variable is required")
	}
	return store.New(dynamodb.NewFromConfig(cfg), tables)
}

// MustEnv reads an environment variable and fatals when it is empty.
func MustEnv(name string) string {
	v := os.Getenv(name)
	if v == "" {
		log.Fatal().Str("envVar", name).Msg("Environment variable is required")
	}
	return v
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// LoadGeminiKey fetches the Gemini API key from SSM Parameter Store if not
// already set via GEMINI_API_KEY env var. Fatals on error.
func LoadGeminiKey(ssmClient *ssm.Client) {
	if os.Getenv("GEMINI_API_KEY") != "" {
		return
	}
	paramName := os.Getenv("SSM_API_KEY_PARAM")
	if paramName == "" {
		paramName = "/video-extraction/prod/gemini-api-key"
	}
	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Fatal().Err(err).Str("param", paramName).Msg("Failed to read API key from SSM")
	}
	os.Setenv("GEMINI_API_KEY", *result.Parameter.Value)
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
}

// LoadVectorDSN fetches the Postgres vector-store DSN from SSM Parameter
// Store if not already set via VECTOR_DB_DSN. Returns an empty string (with
// a warning) when neither is configured; callers treat that as the vector
// index being disabled.
func LoadVectorDSN(ssmClient *ssm.Client) string {
	if dsn := os.Getenv("VECTOR_DB_DSN"); dsn != "" {
		return dsn
	}
	paramName := os.Getenv("SSM_VECTOR_DSN_PARAM")
	if paramName == "" {
		paramName = "/video-extraction/prod/vector-db-dsn"
	}
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Warn().Err(err).Str("param", paramName).Msg("Vector DSN not found in SSM, vector index disabled")
		return ""
	}
	return *result.Parameter.Value
}
