package task

// Status is the task lifecycle state. Transitions are monotonic: no pipeline
// stage may move a task backward. The only exits from the main line are
// deleting and failed.
type Status string

const (
	StatusEnqueuing              Status = "enqueuing"
	StatusStartTranscription     Status = "start_transcription"
	StatusTranscriptionCompleted Status = "transcription_completed"
	StatusProcessing             Status = "processing"
	StatusExtractionCompleted    Status = "extraction_completed"
	StatusEvaluationCompleted    Status = "evaluation_completed"
	StatusDeleting               Status = "deleting"
	StatusFailed                 Status = "failed"
)

// statusRank orders the main-line states. Side states (deleting, failed) are
// reachable from anywhere and terminal.
var statusRank = map[Status]int{
	StatusEnqueuing:              0,
	StatusStartTranscription:     1,
	StatusTranscriptionCompleted: 2,
	StatusProcessing:             3,
	StatusExtractionCompleted:    4,
	StatusEvaluationCompleted:    5,
}

// CanTransition reports whether moving from one status to another is legal.
// Forward moves along the main line are allowed (skipping states is fine:
// a task without transcription goes enqueuing -> processing). deleting and
// failed are reachable from any non-terminal state and never left.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if from == StatusDeleting || from == StatusFailed {
		return false
	}
	if to == StatusDeleting || to == StatusFailed {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Terminal reports whether a task in this status has finished its lifecycle.
func (s Status) Terminal() bool {
	return s == StatusEvaluationCompleted || s == StatusDeleting || s == StatusFailed
}

// ActiveOrDone reports whether the extraction workflow is already running or
// finished for this status. The admission controller uses it as the
// idempotence guard against redundant queue triggers.
func (s Status) ActiveOrDone() bool {
	switch s {
	case StatusProcessing, StatusExtractionCompleted, StatusEvaluationCompleted:
		return true
	}
	return false
}
