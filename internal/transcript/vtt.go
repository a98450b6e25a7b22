package transcript

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mediaops/extraction-service/internal/task"
)

var (
	blockSplit  = regexp.MustCompile(`\n{2,}`)
	cueTimecode = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}\.\d{3}) --> (\d{2}:\d{2}:\d{2}\.\d{3})`)
)

// ParseVTT converts a WebVTT subtitle document into timestamped rows. Cues
// without an index, timecode line, or text are skipped rather than erroring;
// Transcribe emits well-formed files but truncated uploads show up in
// practice.
func ParseVTT(content string) []task.Subtitle {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")

	var subtitles []task.Subtitle
	for _, block := range blockSplit.Split(strings.TrimSpace(normalized), -1) {
		lines := strings.Split(block, "\n")
		if len(lines) <= 1 {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err != nil {
			continue
		}
		match := cueTimecode.FindStringSubmatch(lines[1])
		if match == nil || len(lines) < 3 {
			continue
		}
		text := strings.TrimSpace(strings.Join(lines[2:], "\n"))
		if text == "" {
			continue
		}

		start, err1 := parseTimecode(match[1])
		end, err2 := parseTimecode(match[2])
		if err1 != nil || err2 != nil {
			continue
		}
		subtitles = append(subtitles, task.Subtitle{
			StartTS:       start,
			EndTS:         end,
			Transcription: text,
		})
	}
	return subtitles
}

// parseTimecode converts "HH:MM:SS.mmm" to seconds, rounded to centiseconds.
func parseTimecode(tc string) (float64, error) {
	parts := strings.Split(tc, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed timecode %q", tc)
	}
	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed timecode %q: %w", tc, err)
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed timecode %q: %w", tc, err)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed timecode %q: %w", tc, err)
	}
	total := hours*3600 + minutes*60 + seconds
	return math.Round(total*100) / 100, nil
}

// SubtitlesInRange returns the rows whose span overlaps (prevTS, ts], the
// interval a frame represents since the previously retained frame. A frame
// with no predecessor passes prevTS < 0 to include leading subtitles.
func SubtitlesInRange(subtitles []task.Subtitle, prevTS, ts float64) []task.Subtitle {
	var out []task.Subtitle
	for _, sub := range subtitles {
		if sub.StartTS <= ts && sub.EndTS > prevTS {
			out = append(out, sub)
		}
	}
	return out
}
