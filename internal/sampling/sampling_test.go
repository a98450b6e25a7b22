package sampling

import (
	"testing"
)

func TestPlanChunks(t *testing.T) {
	tests := []struct {
		name      string
		duration  float64
		chunkDur  float64
		wantCount int
	}{
		{"exact multiple", 1200, 600, 2},
		{"remainder", 1300, 600, 3},
		{"shorter than chunk", 45, 600, 1},
		{"zero duration", 0, 600, 0},
		{"zero chunk", 1200, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := PlanChunks("t1", tt.duration, tt.chunkDur)
			if len(chunks) != tt.wantCount {
				t.Fatalf("PlanChunks(%v, %v) = %d chunks, want %d", tt.duration, tt.chunkDur, len(chunks), tt.wantCount)
			}
			if tt.wantCount != Invocations(tt.duration, tt.chunkDur) {
				t.Errorf("chunk count %d disagrees with Invocations %d", tt.wantCount, Invocations(tt.duration, tt.chunkDur))
			}
			for i, c := range chunks {
				wantStart := float64(i) * tt.chunkDur
				if c.StartTS != wantStart || c.EndTS != wantStart+tt.chunkDur {
					t.Errorf("chunk %d = [%v, %v], want [%v, %v]", i, c.StartTS, c.EndTS, wantStart, wantStart+tt.chunkDur)
				}
			}
		})
	}
}

func TestTimestampsBounds(t *testing.T) {
	// 20-minute video, 600s chunks, 2s interval: two chunks of 300
	// candidates each, no timestamp repeated at the boundary.
	const duration = 1200.0
	chunk1 := NextChunk("t1", 0, 600)
	chunk2 := NextChunk("t1", 600, 600)

	ts1 := Timestamps(chunk1, 2, duration)
	ts2 := Timestamps(chunk2, 2, duration)

	if len(ts1) != 300 || len(ts2) != 300 {
		t.Fatalf("chunk candidate counts = %d, %d, want 300, 300", len(ts1), len(ts2))
	}
	if ts1[0] != 2 {
		t.Errorf("first candidate = %v, want 2 (lower bound is exclusive)", ts1[0])
	}
	if ts1[len(ts1)-1] != 600 {
		t.Errorf("chunk 1 last candidate = %v, want 600 (upper bound inclusive)", ts1[len(ts1)-1])
	}
	if ts2[0] != 602 {
		t.Errorf("chunk 2 first candidate = %v, want 602 (600 belongs to chunk 1)", ts2[0])
	}
	if ts2[len(ts2)-1] != 1200 {
		t.Errorf("chunk 2 last candidate = %v, want 1200", ts2[len(ts2)-1])
	}
}

func TestTimestampsClampedToDuration(t *testing.T) {
	// Video ends mid-chunk: candidates past the duration are dropped.
	chunk := NextChunk("t1", 600, 600)
	ts := Timestamps(chunk, 2, 605)
	want := []float64{602, 604}
	if len(ts) != len(want) {
		t.Fatalf("Timestamps = %v, want %v", ts, want)
	}
	for i := range want {
		if ts[i] != want[i] {
			t.Fatalf("Timestamps = %v, want %v", ts, want)
		}
	}
}

func TestTimestampsDegenerate(t *testing.T) {
	chunk := NextChunk("t1", 0, 600)
	if got := Timestamps(chunk, 0, 1200); got != nil {
		t.Errorf("zero interval = %v, want nil", got)
	}
	if got := Timestamps(NextChunk("t1", 1200, 600), 2, 1200); got != nil {
		t.Errorf("chunk past end of video = %v, want nil", got)
	}
	// Interval longer than the video yields nothing.
	if got := Timestamps(chunk, 30, 10); got != nil {
		t.Errorf("interval beyond duration = %v, want nil", got)
	}
}

func TestCompleted(t *testing.T) {
	if Completed(599.9, 600) {
		t.Error("cursor short of duration reported complete")
	}
	if !Completed(600, 600) {
		t.Error("cursor at duration not reported complete")
	}
	if !Completed(1200, 600) {
		t.Error("cursor past duration not reported complete")
	}
}
