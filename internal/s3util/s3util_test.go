package s3util

import (
	"strings"
	"testing"
)

func TestTaskPrefix(t *testing.T) {
	got := TaskPrefix("4bf6")
	if got != "tasks/4bf6/" {
		t.Fatalf("TaskPrefix = %q, want %q", got, "tasks/4bf6/")
	}
	if !strings.HasPrefix(TaskPrefix("4bf6")+"frames/frame_2.jpg", "tasks/4bf6/frames/") {
		t.Error("frame keys must nest under the task's frames directory")
	}
}

func TestTaskPrefixDoesNotMatchLongerIDs(t *testing.T) {
	// Prefix deletion of task "abc" must leave task "abcd" untouched.
	other := TaskPrefix("abcd") + "thumbnail.jpg"
	if strings.HasPrefix(other, TaskPrefix("abc")) {
		t.Fatalf("%q is covered by prefix %q", other, TaskPrefix("abc"))
	}
}
