package segmenter

import (
	"testing"

	"github.com/mediaops/extraction-service/internal/task"
)

func frame(ts, score float64) task.Frame {
	return task.Frame{
		ID:              task.FrameID("t1", ts),
		TaskID:          "t1",
		Timestamp:       ts,
		SimilarityScore: score,
	}
}

func TestDetectShotsBreaksOnThreshold(t *testing.T) {
	frames := []task.Frame{
		frame(2, 0),    // opens shot 1
		frame(4, 0.2),  // same shot
		frame(6, 0.8),  // break: opens shot 2
		frame(8, 0.3),  // same shot
		frame(10, 0.9), // break: opens shot 3
	}

	shots := DetectShots("t1", frames, 0.5)
	if len(shots) != 3 {
		t.Fatalf("DetectShots = %d shots, want 3", len(shots))
	}

	wantBounds := [][2]float64{{2, 6}, {6, 10}, {10, 10}}
	wantFrames := []int{2, 2, 1}
	for i, shot := range shots {
		if shot.StartTS != wantBounds[i][0] || shot.EndTS != wantBounds[i][1] {
			t.Errorf("shot %d = [%v, %v), want [%v, %v)", i+1, shot.StartTS, shot.EndTS, wantBounds[i][0], wantBounds[i][1])
		}
		if len(shot.Frames) != wantFrames[i] {
			t.Errorf("shot %d has %d frames, want %d", i+1, len(shot.Frames), wantFrames[i])
		}
		if shot.Index != i+1 {
			t.Errorf("shot %d index = %d", i+1, shot.Index)
		}
		if shot.AnalysisType != task.AnalysisTypeShot {
			t.Errorf("shot %d analysis type = %q", i+1, shot.AnalysisType)
		}
	}

	// Shots tile the frame range without overlap.
	for i := 1; i < len(shots); i++ {
		if shots[i].StartTS != shots[i-1].EndTS {
			t.Errorf("shot %d starts at %v, previous ends at %v", i+1, shots[i].StartTS, shots[i-1].EndTS)
		}
	}
}

func TestDetectShotsNoBreaks(t *testing.T) {
	frames := []task.Frame{frame(2, 0), frame(4, 0.1), frame(6, 0.2)}
	shots := DetectShots("t1", frames, 0.5)
	if len(shots) != 1 {
		t.Fatalf("DetectShots = %d shots, want 1", len(shots))
	}
	if len(shots[0].Frames) != 3 {
		t.Errorf("single shot has %d frames, want all 3", len(shots[0].Frames))
	}
	if shots[0].StartTS != 2 || shots[0].EndTS != 6 {
		t.Errorf("shot bounds = [%v, %v], want [2, 6]", shots[0].StartTS, shots[0].EndTS)
	}
}

func TestDetectShotsScoreAtThresholdDoesNotBreak(t *testing.T) {
	frames := []task.Frame{frame(2, 0), frame(4, 0.5)}
	shots := DetectShots("t1", frames, 0.5)
	if len(shots) != 1 {
		t.Fatalf("score equal to threshold must not open a new shot, got %d shots", len(shots))
	}
}

func TestDetectShotsDeterministic(t *testing.T) {
	frames := []task.Frame{
		frame(2, 0), frame(4, 0.7), frame(6, 0.1), frame(8, 0.6),
	}
	first := DetectShots("t1", frames, 0.5)
	second := DetectShots("t1", frames, 0.5)
	if len(first) != len(second) {
		t.Fatalf("shot counts differ across runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].StartTS != second[i].StartTS || first[i].EndTS != second[i].EndTS {
			t.Errorf("shot %d differs across runs", i+1)
		}
	}
}

func TestDetectShotsEmpty(t *testing.T) {
	if shots := DetectShots("t1", nil, 0.5); shots != nil {
		t.Errorf("DetectShots(nil) = %v, want nil", shots)
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                               string
		shotStart, shotEnd                 float64
		sceneStart, sceneEnd               float64
		want                               bool
	}{
		{"shot inside scene", 12, 18, 10, 20, true},
		{"shot straddles scene start", 8, 12, 10, 20, true},
		{"shot straddles scene end", 18, 25, 10, 20, true},
		{"shot covers scene", 5, 25, 10, 20, true},
		{"shot before scene", 2, 10, 10, 20, false},
		{"shot after scene", 20, 30, 10, 20, false},
		{"zero-length shot inside", 15, 15, 10, 20, true},
		{"zero-length shot at scene end", 20, 20, 10, 20, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(tt.shotStart, tt.shotEnd, tt.sceneStart, tt.sceneEnd)
			if got != tt.want {
				t.Errorf("Overlaps(%v,%v,%v,%v) = %v, want %v", tt.shotStart, tt.shotEnd, tt.sceneStart, tt.sceneEnd, got, tt.want)
			}
		})
	}
}

func TestAssembleScenes(t *testing.T) {
	shots := DetectShots("t1", []task.Frame{
		frame(2, 0), frame(4, 0.7), frame(6, 0.1), frame(8, 0.9), frame(10, 0.2),
	}, 0.5)
	// Shots: [2,4), [4,8), [8,10)

	boundaries := []SceneBoundary{
		{StartTS: 0, EndTS: 8},
		{StartTS: 8, EndTS: 12},
	}
	scenes := AssembleScenes("t1", boundaries, shots)
	if len(scenes) != 2 {
		t.Fatalf("AssembleScenes = %d scenes, want 2", len(scenes))
	}
	if len(scenes[0].Shots) != 2 {
		t.Errorf("scene 1 has %d shots, want 2 ([2,4) and [4,8))", len(scenes[0].Shots))
	}
	if len(scenes[1].Shots) != 1 {
		t.Errorf("scene 2 has %d shots, want 1 ([8,10))", len(scenes[1].Shots))
	}
	if scenes[0].ID != "t1_scene_1" || scenes[1].Index != 2 {
		t.Errorf("scene identity wrong: %q index %d", scenes[0].ID, scenes[1].Index)
	}
}
