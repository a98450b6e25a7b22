// Package evaluation runs the optional policy verdict over a finished
// extraction. The caller supplies a prompt template; this package assembles
// everything the pipeline learned about the video into a context document
// and asks Claude for a structured verdict.
package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/bedrock"
	"github.com/mediaops/extraction-service/internal/jsonutil"
	"github.com/mediaops/extraction-service/internal/task"
)

const systemPrompt = "You are a media compliance reviewer. You receive the extracted " +
	"contents of a video and an evaluation instruction. Answer only with a JSON " +
	"object of the shape {\"verdict\": string, \"rationale\": string}."

// ContextPlaceholder marks where the video context document is substituted
// into the prompt template. Templates without it get the document appended.
const ContextPlaceholder = "{context}"

const maxAttempts = 2

// Completer is the LLM call evaluation needs.
type Completer interface {
	CompleteJSON(ctx context.Context, modelID, system string, messages []bedrock.Message, maxTokens int) (string, error)
}

// Input is everything the pipeline extracted that the verdict may draw on.
type Input struct {
	FileName       string
	Aggregates     *task.AggResult
	Transcription  string
	SceneSummaries []string
}

// Evaluator produces policy verdicts.
type Evaluator struct {
	LLM Completer
}

type verdictResponse struct {
	Verdict   string `json:"verdict"`
	Rationale string `json:"rationale"`
}

// Evaluate runs the prompt in setting against the extracted contents and
// returns the verdict. A nil setting or an empty template means the stage
// was not requested; nothing is returned.
func (e *Evaluator) Evaluate(ctx context.Context, setting *task.EvaluationSetting, in Input) (*task.EvalResult, error) {
	if setting == nil || strings.TrimSpace(setting.PromptTemplate) == "" {
		return nil, nil
	}

	doc := contextDocument(in)
	prompt := setting.PromptTemplate
	if strings.Contains(prompt, ContextPlaceholder) {
		prompt = strings.ReplaceAll(prompt, ContextPlaceholder, doc)
	} else {
		prompt = prompt + "\n\n" + doc
	}
	messages := []bedrock.Message{{Role: "user", Content: prompt}}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := e.LLM.CompleteJSON(ctx, setting.ModelID, systemPrompt, messages, 0)
		if err != nil {
			lastErr = err
			continue
		}
		resp, err := jsonutil.ParseJSON[verdictResponse](raw)
		if err == nil && resp.Verdict == "" {
			err = fmt.Errorf("empty verdict")
		}
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Malformed evaluation response")
			lastErr = fmt.Errorf("malformed evaluation response: %w", err)
			continue
		}
		modelID := setting.ModelID
		if modelID == "" {
			modelID = bedrock.DefaultSummaryModel
		}
		return &task.EvalResult{ModelID: modelID, Verdict: resp.Verdict, Rationale: resp.Rationale}, nil
	}
	return nil, fmt.Errorf("evaluate: %w", lastErr)
}

// contextDocument flattens the extraction results into the plain-text block
// handed to the model.
func contextDocument(in Input) string {
	var b strings.Builder
	b.WriteString("Video file name: ")
	b.WriteString(in.FileName)
	b.WriteString("\n")

	if agg := in.Aggregates; agg != nil {
		writeAgg(&b, "Labels", agg.DetectLabelAgg)
		writeAgg(&b, "Label categories", agg.DetectLabelCategoryAgg)
		writeAgg(&b, "On-screen text", agg.DetectTextAgg)
		writeAgg(&b, "Celebrities", agg.DetectCelebrityAgg)
		writeAgg(&b, "Moderation flags", agg.DetectModerationAgg)
	}

	if in.Transcription != "" {
		b.WriteString("Transcription: ")
		b.WriteString(in.Transcription)
		b.WriteString("\n")
	}
	for i, summary := range in.SceneSummaries {
		if summary == "" {
			continue
		}
		fmt.Fprintf(&b, "Scene %d: %s\n", i+1, summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeAgg(b *strings.Builder, label string, items []task.AggregatedItem) {
	if len(items) == 0 {
		return
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n")
}
