package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/mediaops/extraction-service/internal/task"
)

type fakeTaskStore struct {
	task          *task.Task
	getErr        error
	statusUpdates []task.Status
}

func (f *fakeTaskStore) GetTask(_ context.Context, _ string) (*task.Task, error) {
	return f.task, f.getErr
}

func (f *fakeTaskStore) UpdateTaskStatus(_ context.Context, _ string, to task.Status) error {
	f.statusUpdates = append(f.statusUpdates, to)
	return nil
}

type fakeWorkflow struct {
	running  int
	countErr error
	started  int
	startErr error
}

func (f *fakeWorkflow) CountRunning(_ context.Context) (int, error) {
	return f.running, f.countErr
}

func (f *fakeWorkflow) Start(_ context.Context, taskID string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started++
	return "arn:exec:" + taskID, nil
}

func pendingTask() *task.Task {
	return &task.Task{ID: "t1", Status: task.StatusEnqueuing}
}

func TestAdmitStartsBelowLimit(t *testing.T) {
	tasks := &fakeTaskStore{task: pendingTask()}
	flow := &fakeWorkflow{running: 0}
	ctrl := &AdmissionController{Tasks: tasks, Flow: flow, Limit: 1}

	decision, err := ctrl.Admit(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if decision != DecisionStarted {
		t.Fatalf("decision = %v, want started", decision)
	}
	if flow.started != 1 {
		t.Errorf("started %d executions, want 1", flow.started)
	}
	if len(tasks.statusUpdates) != 1 || tasks.statusUpdates[0] != task.StatusProcessing {
		t.Errorf("status updates = %v, want [processing]", tasks.statusUpdates)
	}
}

func TestAdmitThrottledAtLimit(t *testing.T) {
	tasks := &fakeTaskStore{task: pendingTask()}
	flow := &fakeWorkflow{running: 1}
	ctrl := &AdmissionController{Tasks: tasks, Flow: flow, Limit: 1}

	decision, err := ctrl.Admit(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if decision != DecisionThrottled {
		t.Fatalf("decision = %v, want throttled", decision)
	}
	if flow.started != 0 {
		t.Errorf("throttled admit started %d executions", flow.started)
	}
	if len(tasks.statusUpdates) != 0 {
		t.Errorf("throttled admit changed status: %v", tasks.statusUpdates)
	}
}

func TestAdmitAlreadyRunning(t *testing.T) {
	for _, status := range []task.Status{task.StatusProcessing, task.StatusExtractionCompleted, task.StatusEvaluationCompleted} {
		tasks := &fakeTaskStore{task: &task.Task{ID: "t1", Status: status}}
		flow := &fakeWorkflow{}
		ctrl := &AdmissionController{Tasks: tasks, Flow: flow}

		decision, err := ctrl.Admit(context.Background(), "t1")
		if err != nil {
			t.Fatalf("Admit(%s): %v", status, err)
		}
		if decision != DecisionAlreadyDone {
			t.Errorf("decision for %s = %v, want already_done", status, decision)
		}
		if flow.started != 0 {
			t.Errorf("redelivery for %s double-started the workflow", status)
		}
	}
}

func TestAdmitMissingTaskAcks(t *testing.T) {
	ctrl := &AdmissionController{Tasks: &fakeTaskStore{task: nil}, Flow: &fakeWorkflow{}}
	decision, err := ctrl.Admit(context.Background(), "gone")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if decision != DecisionAlreadyDone {
		t.Errorf("decision = %v, want already_done so the message is acked", decision)
	}
}

func TestAdmitErrorsReportThrottled(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		tasks *fakeTaskStore
		flow  *fakeWorkflow
	}{
		{"load failure", &fakeTaskStore{getErr: boom}, &fakeWorkflow{}},
		{"count failure", &fakeTaskStore{task: pendingTask()}, &fakeWorkflow{countErr: boom}},
		{"start failure", &fakeTaskStore{task: pendingTask()}, &fakeWorkflow{startErr: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &AdmissionController{Tasks: tt.tasks, Flow: tt.flow}
			decision, err := ctrl.Admit(context.Background(), "t1")
			if err == nil {
				t.Fatal("expected error")
			}
			if decision != DecisionThrottled {
				t.Errorf("decision on error = %v, want throttled so the message redelivers", decision)
			}
		})
	}
}

func TestAdmitDefaultLimit(t *testing.T) {
	// Zero limit falls back to the default of one concurrent workflow.
	tasks := &fakeTaskStore{task: pendingTask()}
	ctrl := &AdmissionController{Tasks: tasks, Flow: &fakeWorkflow{running: 1}}
	decision, err := ctrl.Admit(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if decision != DecisionThrottled {
		t.Errorf("decision = %v, want throttled at the default limit", decision)
	}
}
