package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestFlushEmitsEMFDocument(t *testing.T) {
	var buf bytes.Buffer
	r := New(Namespace)
	r.out = &buf
	r.Dimension("Stage", "sample").
		Count("FramesSampled", 42).
		Metric("VideoDuration", 120.5, UnitSeconds).
		Property("taskId", "t1").
		Flush()

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not one JSON line: %v\n%s", err, buf.String())
	}

	if doc["Stage"] != "sample" {
		t.Errorf("Stage = %v", doc["Stage"])
	}
	if doc["FramesSampled"] != float64(42) {
		t.Errorf("FramesSampled = %v", doc["FramesSampled"])
	}
	if doc["VideoDuration"] != 120.5 {
		t.Errorf("VideoDuration = %v", doc["VideoDuration"])
	}
	if doc["taskId"] != "t1" {
		t.Errorf("taskId = %v", doc["taskId"])
	}

	aws, ok := doc["_aws"].(map[string]interface{})
	if !ok {
		t.Fatal("missing _aws directive")
	}
	cw, ok := aws["CloudWatchMetrics"].([]interface{})
	if !ok || len(cw) != 1 {
		t.Fatalf("CloudWatchMetrics = %v", aws["CloudWatchMetrics"])
	}
	ns := cw[0].(map[string]interface{})["Namespace"]
	if ns != Namespace {
		t.Errorf("Namespace = %v, want %s", ns, Namespace)
	}
}

func TestFlushWithoutMetricsEmitsNothing(t *testing.T) {
	var buf bytes.Buffer
	r := New(Namespace)
	r.out = &buf
	r.Property("taskId", "t1").Flush()

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %s", buf.String())
	}
}

func TestStageRecorderAlwaysEmitsDuration(t *testing.T) {
	var buf bytes.Buffer
	r := NewStage("dedup", "t1")
	r.out = &buf
	r.Flush()

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := doc["StageDuration"]; !ok {
		t.Error("stage recorder flushed without StageDuration")
	}
	if doc["Stage"] != "dedup" {
		t.Errorf("Stage = %v", doc["Stage"])
	}
}
