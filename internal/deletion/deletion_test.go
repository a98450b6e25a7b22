package deletion

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeObjects struct {
	err     error
	deleted int
	calls   int
}

func (f *fakeObjects) DeleteTaskObjects(_ context.Context, _ string) (int, error) {
	f.calls++
	return f.deleted, f.err
}

type fakeJobs struct {
	err   error
	calls int
}

func (f *fakeJobs) DeleteJob(_ context.Context, _ string) error {
	f.calls++
	return f.err
}

type fakeRecords struct {
	framesErr   error
	analysisErr error
	taskCalls   int
	taskErr     error
}

func (f *fakeRecords) DeleteFramesByTask(_ context.Context, _ string) (int, error) {
	return 3, f.framesErr
}

func (f *fakeRecords) DeleteAnalysisByType(_ context.Context, _, _ string) (int, error) {
	return 2, f.analysisErr
}

func (f *fakeRecords) DeleteTranscription(_ context.Context, _ string) error { return nil }

func (f *fakeRecords) DeleteTask(_ context.Context, _ string) error {
	f.taskCalls++
	return f.taskErr
}

type fakeVectors struct {
	calls int
}

func (f *fakeVectors) DeleteTask(_ context.Context, _ string) (int64, error) {
	f.calls++
	return 5, nil
}

func TestCascadeDeletesEverything(t *testing.T) {
	objects := &fakeObjects{deleted: 4}
	jobs := &fakeJobs{}
	records := &fakeRecords{}
	vectors := &fakeVectors{}
	c := &Cascade{Objects: objects, Jobs: jobs, Records: records, Vectors: vectors}

	if err := c.Run(context.Background(), "t1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if objects.calls != 1 || jobs.calls != 1 || vectors.calls != 1 {
		t.Errorf("calls = objects %d, jobs %d, vectors %d, want 1 each", objects.calls, jobs.calls, vectors.calls)
	}
	if records.taskCalls != 1 {
		t.Errorf("task record deleted %d times, want 1", records.taskCalls)
	}
}

func TestCascadeContinuesPastFailures(t *testing.T) {
	objects := &fakeObjects{err: errors.New("access denied")}
	jobs := &fakeJobs{err: errors.New("throttled")}
	records := &fakeRecords{}
	c := &Cascade{Objects: objects, Jobs: jobs, Records: records, Vectors: &fakeVectors{}}

	err := c.Run(context.Background(), "t1")
	if err == nil {
		t.Fatal("expected combined error")
	}
	if !strings.Contains(err.Error(), "access denied") || !strings.Contains(err.Error(), "throttled") {
		t.Errorf("error should report both failures, got: %v", err)
	}
	if jobs.calls != 1 {
		t.Error("object store failure skipped the transcription job step")
	}
	if records.taskCalls != 0 {
		t.Error("task record was deleted despite step failures")
	}
}

func TestCascadeWithoutVectorStore(t *testing.T) {
	c := &Cascade{Objects: &fakeObjects{}, Jobs: &fakeJobs{}, Records: &fakeRecords{}}
	if err := c.Run(context.Background(), "t1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestCascadeTaskRecordFailure(t *testing.T) {
	records := &fakeRecords{taskErr: errors.New("conditional check failed")}
	c := &Cascade{Objects: &fakeObjects{}, Jobs: &fakeJobs{}, Records: records}
	if err := c.Run(context.Background(), "t1"); err == nil {
		t.Fatal("expected error when the task record delete fails")
	}
}
