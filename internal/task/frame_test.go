package task

import "testing"

func TestFrameID(t *testing.T) {
	tests := []struct {
		ts   float64
		want string
	}{
		{0, "t1_0"},
		{2, "t1_2"},
		{602.5, "t1_602.5"},
	}
	for _, tt := range tests {
		if got := FrameID("t1", tt.ts); got != tt.want {
			t.Errorf("FrameID(t1, %v) = %q, want %q", tt.ts, got, tt.want)
		}
	}
}

func TestTimestampFromKey(t *testing.T) {
	tests := []struct {
		key     string
		want    float64
		wantErr bool
	}{
		{"tasks/t1/frames/frame_12.jpg", 12, false},
		{"tasks/t1/frames/frame_602.5.jpg", 602.5, false},
		{"frame_0.jpg", 0, false},
		{"tasks/t1/frames/noise.jpg", 0, true},
		{"tasks/t1/frames/frame_abc.jpg", 0, true},
	}
	for _, tt := range tests {
		got, err := TimestampFromKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("TimestampFromKey(%q) err = %v, wantErr %v", tt.key, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("TimestampFromKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestBuildEmbeddingText(t *testing.T) {
	f := &Frame{
		ImageCaption: "a dog in a park",
		Subtitles: []Subtitle{
			{StartTS: 0, EndTS: 2, Transcription: "good boy"},
			{StartTS: 2, EndTS: 4, Transcription: "fetch"},
		},
		DetectLabel:     []Detection{{Name: "Dog"}, {Name: "Grass"}},
		DetectText:      []Detection{{Name: "EXIT"}},
		DetectCelebrity: []Detection{{Name: "Jane Doe"}},
	}
	got := f.BuildEmbeddingText("clip.mp4")
	want := "Video file name: clip.mp4; Summary: a dog in a park; " +
		"Transcription: good boy fetch; Label: Dog, Grass; Text: EXIT; Celebrity: Jane Doe"
	if got != want {
		t.Errorf("BuildEmbeddingText =\n%q\nwant\n%q", got, want)
	}
}

func TestBuildEmbeddingTextSparseFrame(t *testing.T) {
	f := &Frame{}
	if got := f.BuildEmbeddingText("clip.mp4"); got != "Video file name: clip.mp4" {
		t.Errorf("BuildEmbeddingText = %q", got)
	}
}
