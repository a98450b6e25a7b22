package transcript

import (
	"testing"
)

const sampleVTT = `WEBVTT

1
00:00:01.000 --> 00:00:03.500
Welcome back to the channel.

2
00:00:04.120 --> 00:00:06.000
Today we are testing subtitles.

NOTE this comment block has no index

3
00:01:00.250 --> 00:01:02.750
One minute in.
`

func TestParseVTT(t *testing.T) {
	subs := ParseVTT(sampleVTT)
	if len(subs) != 3 {
		t.Fatalf("ParseVTT returned %d rows, want 3", len(subs))
	}

	if subs[0].StartTS != 1.0 || subs[0].EndTS != 3.5 {
		t.Errorf("cue 1 = [%v, %v], want [1, 3.5]", subs[0].StartTS, subs[0].EndTS)
	}
	if subs[0].Transcription != "Welcome back to the channel." {
		t.Errorf("cue 1 text = %q", subs[0].Transcription)
	}
	if subs[2].StartTS != 60.25 || subs[2].EndTS != 62.75 {
		t.Errorf("cue 3 = [%v, %v], want [60.25, 62.75]", subs[2].StartTS, subs[2].EndTS)
	}
}

func TestParseVTTWindowsLineEndings(t *testing.T) {
	vtt := "WEBVTT\r\n\r\n1\r\n00:00:01.000 --> 00:00:02.000\r\nHello.\r\n"
	subs := ParseVTT(vtt)
	if len(subs) != 1 || subs[0].Transcription != "Hello." {
		t.Fatalf("ParseVTT CRLF = %+v, want one row", subs)
	}
}

func TestParseVTTMalformed(t *testing.T) {
	tests := []struct {
		name string
		vtt  string
	}{
		{"empty", ""},
		{"header only", "WEBVTT"},
		{"missing timecode", "WEBVTT\n\n1\nHello there.\n"},
		{"missing text", "WEBVTT\n\n1\n00:00:01.000 --> 00:00:02.000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if subs := ParseVTT(tt.vtt); len(subs) != 0 {
				t.Errorf("ParseVTT = %+v, want none", subs)
			}
		})
	}
}

func TestSubtitlesInRange(t *testing.T) {
	subs := ParseVTT(sampleVTT)

	tests := []struct {
		name   string
		prevTS float64
		ts     float64
		want   int
	}{
		{"first frame covers leading cues", -1, 2, 1},
		{"interval spanning two cues", 2, 5, 2},
		{"gap between cues", 6.5, 59, 0},
		{"cue starting exactly at ts", 59, 60.25, 1},
		{"cue ending exactly at prevTS excluded", 3.5, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SubtitlesInRange(subs, tt.prevTS, tt.ts)
			if len(got) != tt.want {
				t.Errorf("SubtitlesInRange(%v, %v) = %d rows, want %d", tt.prevTS, tt.ts, len(got), tt.want)
			}
		})
	}
}

func TestParseTranscriptJSON(t *testing.T) {
	doc := `{"results": {"language_code": "en-US", "transcripts": [{"transcript": "hello world"}, {"transcript": "part two"}]}}`
	lang, text, err := ParseTranscriptJSON([]byte(doc))
	if err != nil {
		t.Fatalf("ParseTranscriptJSON: %v", err)
	}
	if lang != "en-US" {
		t.Errorf("language = %q, want en-US", lang)
	}
	if text != "hello world part two" {
		t.Errorf("text = %q", text)
	}

	if _, _, err := ParseTranscriptJSON([]byte("not json")); err == nil {
		t.Error("malformed document must error")
	}
}
