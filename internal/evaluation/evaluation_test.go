package evaluation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mediaops/extraction-service/internal/bedrock"
	"github.com/mediaops/extraction-service/internal/task"
)

type fakeCompleter struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, _ string, messages []bedrock.Message, _ int) (string, error) {
	i := f.calls
	f.calls++
	if len(messages) > 0 {
		f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no response configured")
}

func TestEvaluateSkipsWithoutSetting(t *testing.T) {
	e := &Evaluator{LLM: &fakeCompleter{}}
	for _, setting := range []*task.EvaluationSetting{nil, {PromptTemplate: "   "}} {
		result, err := e.Evaluate(context.Background(), setting, Input{})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if result != nil {
			t.Errorf("expected nil result without a prompt, got %+v", result)
		}
	}
}

func TestEvaluateSubstitutesContext(t *testing.T) {
	llm := &fakeCompleter{responses: []string{`{"verdict": "pass", "rationale": "nothing flagged"}`}}
	e := &Evaluator{LLM: llm}
	setting := &task.EvaluationSetting{PromptTemplate: "Review this video:\n{context}\nAnswer pass or fail."}
	in := Input{
		FileName:      "clip.mp4",
		Aggregates:    &task.AggResult{DetectLabelAgg: []task.AggregatedItem{{Name: "Dog"}, {Name: "Park"}}},
		Transcription: "a dog runs through a park",
	}

	result, err := e.Evaluate(context.Background(), setting, in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Verdict != "pass" || result.Rationale != "nothing flagged" {
		t.Errorf("result = %+v", result)
	}
	if result.ModelID != bedrock.DefaultSummaryModel {
		t.Errorf("ModelID = %q, want the default model recorded", result.ModelID)
	}

	prompt := llm.prompts[0]
	if strings.Contains(prompt, ContextPlaceholder) {
		t.Error("placeholder left in prompt")
	}
	for _, want := range []string{"clip.mp4", "Dog, Park", "a dog runs through a park", "Answer pass or fail."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestEvaluateAppendsContextWithoutPlaceholder(t *testing.T) {
	llm := &fakeCompleter{responses: []string{`{"verdict": "fail"}`}}
	e := &Evaluator{LLM: llm}
	setting := &task.EvaluationSetting{PromptTemplate: "Is this ad brand safe?", ModelID: "custom-model"}

	result, err := e.Evaluate(context.Background(), setting, Input{FileName: "ad.mp4"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.ModelID != "custom-model" {
		t.Errorf("ModelID = %q", result.ModelID)
	}
	if !strings.Contains(llm.prompts[0], "Is this ad brand safe?") || !strings.Contains(llm.prompts[0], "ad.mp4") {
		t.Errorf("prompt = %q", llm.prompts[0])
	}
}

func TestEvaluateRetriesMalformedOnce(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"not json at all", `{"verdict": "pass"}`}}
	e := &Evaluator{LLM: llm}
	setting := &task.EvaluationSetting{PromptTemplate: "review {context}"}

	result, err := e.Evaluate(context.Background(), setting, Input{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Verdict != "pass" {
		t.Errorf("Verdict = %q", result.Verdict)
	}
	if llm.calls != 2 {
		t.Errorf("calls = %d, want 2", llm.calls)
	}
}

func TestEvaluateFailsAfterRetries(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"garbage", "more garbage"}}
	e := &Evaluator{LLM: llm}
	setting := &task.EvaluationSetting{PromptTemplate: "review {context}"}

	if _, err := e.Evaluate(context.Background(), setting, Input{}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if llm.calls != maxAttempts {
		t.Errorf("calls = %d, want %d", llm.calls, maxAttempts)
	}
}
