package task

import "testing"

func TestCanTransition_ForwardOnly(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"enqueuing to processing", StatusEnqueuing, StatusProcessing, true},
		{"start_transcription to transcription_completed", StatusStartTranscription, StatusTranscriptionCompleted, true},
		{"transcription_completed to processing", StatusTranscriptionCompleted, StatusProcessing, true},
		{"processing to extraction_completed", StatusProcessing, StatusExtractionCompleted, true},
		{"extraction_completed to evaluation_completed", StatusExtractionCompleted, StatusEvaluationCompleted, true},
		{"skip transcription entirely", StatusEnqueuing, StatusExtractionCompleted, true},
		{"backward to enqueuing", StatusProcessing, StatusEnqueuing, false},
		{"backward from completed", StatusExtractionCompleted, StatusProcessing, false},
		{"self transition", StatusProcessing, StatusProcessing, false},
		{"unknown from", Status("bogus"), StatusProcessing, false},
		{"unknown to", StatusProcessing, Status("bogus"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCanTransition_SideStates(t *testing.T) {
	for _, from := range []Status{StatusEnqueuing, StatusProcessing, StatusEvaluationCompleted} {
		if !CanTransition(from, StatusDeleting) {
			t.Errorf("expected %s -> deleting to be allowed", from)
		}
		if !CanTransition(from, StatusFailed) {
			t.Errorf("expected %s -> failed to be allowed", from)
		}
	}

	// Terminal side states are never left.
	for _, to := range []Status{StatusEnqueuing, StatusProcessing, StatusEvaluationCompleted} {
		if CanTransition(StatusDeleting, to) {
			t.Errorf("deleting -> %s should be rejected", to)
		}
		if CanTransition(StatusFailed, to) {
			t.Errorf("failed -> %s should be rejected", to)
		}
	}
}

func TestActiveOrDone(t *testing.T) {
	active := []Status{StatusProcessing, StatusExtractionCompleted, StatusEvaluationCompleted}
	for _, s := range active {
		if !s.ActiveOrDone() {
			t.Errorf("%s should report ActiveOrDone", s)
		}
	}
	idle := []Status{StatusEnqueuing, StatusStartTranscription, StatusTranscriptionCompleted, StatusDeleting, StatusFailed}
	for _, s := range idle {
		if s.ActiveOrDone() {
			t.Errorf("%s should not report ActiveOrDone", s)
		}
	}
}

func TestRequestValidate(t *testing.T) {
	valid := func() *Request {
		return &Request{
			Video: VideoSource{S3Object: S3Object{Bucket: "b", Key: "videos/a.mp4"}},
			PreProcessSetting: &PreProcessSetting{
				SampleMode:      "even",
				SampleIntervalS: 2,
			},
			ExtractionSetting: &ExtractionSetting{DetectLabel: true},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	r := valid()
	r.Video.S3Object.Key = ""
	if err := r.Validate(); err == nil {
		t.Error("missing video key accepted")
	}

	r = valid()
	r.PreProcessSetting = nil
	if err := r.Validate(); err == nil {
		t.Error("missing PreProcessSetting accepted")
	}

	r = valid()
	r.PreProcessSetting.SampleMode = "keyframe"
	if err := r.Validate(); err == nil {
		t.Error("unsupported SampleMode accepted")
	}

	r = valid()
	r.PreProcessSetting.SampleIntervalS = 0
	if err := r.Validate(); err == nil {
		t.Error("zero interval accepted")
	}

	r = valid()
	r.ExtractionSetting = nil
	if err := r.Validate(); err == nil {
		t.Error("missing ExtractionSetting accepted")
	}
}
