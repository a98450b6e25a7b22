package jsonutil

import "testing"

func TestRestoreBracePrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"summary": "a dog"}`, `{"summary": "a dog"}`},
		{`{"summary": "a dog"}`, `{"summary": "a dog"}`},
		{"  \n\"k\": 1}", `{"k": 1}`},
	}
	for _, tt := range tests {
		if got := RestoreBracePrefix(tt.in); got != tt.want {
			t.Errorf("RestoreBracePrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"multiline body", "```json\n{\n  \"a\": 1\n}\n```", "{\n  \"a\": 1\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdownFences(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, false},
		{"object in prose", `Here is the result: {"a": 1}. Done.`, `{"a": 1}`, false},
		{"array", `[1, 2, 3]`, `[1, 2, 3]`, false},
		{"object before array", `{"scenes": [1, 2]} trailing`, `{"scenes": [1, 2]}`, false},
		{"no json", "nothing here", "", true},
		{"unclosed", `{"a": 1`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	type summary struct {
		Summary string `json:"summary"`
	}

	got, err := ParseJSON[summary]("```json\n{\"summary\": \"a beach at dusk\"}\n```")
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got.Summary != "a beach at dusk" {
		t.Errorf("Summary = %q", got.Summary)
	}

	if _, err := ParseJSON[summary]("no structure at all"); err == nil {
		t.Error("expected error for text without JSON")
	}
	if _, err := ParseJSON[summary](`{"summary": 3}`); err == nil {
		t.Error("expected error for mismatched types")
	}
}
