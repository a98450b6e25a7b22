// Package mediainfo shells out to ffprobe and ffmpeg for video inspection and
// frame capture. Both binaries ship in the Lambda container image.
package mediainfo

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ffprobeOutput represents the JSON structure from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

// ProbeResult is the subset of ffprobe output the pipeline records on the
// task: duration drives chunk planning, resolution and fps are informational.
type ProbeResult struct {
	DurationS float64
	FPS       float64
	Width     int
	Height    int
	Codec     string
	SizeBytes int64
}

// Resolution formats the probed dimensions as "WxH".
func (p ProbeResult) Resolution() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// Probe inspects a local video file with ffprobe. A video with no parseable
// duration is an error since every later stage depends on it.
func Probe(ctx context.Context, videoPath string) (ProbeResult, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return ProbeResult{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var result ProbeResult
	if probe.Format.Duration != "" {
		result.DurationS, _ = strconv.ParseFloat(probe.Format.Duration, 64)
	}
	if probe.Format.Size != "" {
		result.SizeBytes, _ = strconv.ParseInt(probe.Format.Size, 10, 64)
	}
	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		if result.Width == 0 {
			result.Width = stream.Width
			result.Height = stream.Height
		}
		if result.Codec == "" {
			result.Codec = stream.CodecName
		}
		if result.FPS == 0 && stream.RFrameRate != "" {
			result.FPS = parseFrameRate(stream.RFrameRate)
		}
	}

	if result.DurationS <= 0 {
		return ProbeResult{}, fmt.Errorf("video %s has no parseable duration", videoPath)
	}

	log.Debug().
		Str("path", videoPath).
		Float64("duration", result.DurationS).
		Float64("fps", result.FPS).
		Str("resolution", result.Resolution()).
		Msg("Video probed")

	return result, nil
}

// parseFrameRate converts an ffprobe rational like "30000/1001" to a float.
func parseFrameRate(rate string) float64 {
	parts := strings.Split(rate, "/")
	if len(parts) == 2 {
		num, err1 := strconv.ParseFloat(parts[0], 64)
		den, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 == nil && err2 == nil && den != 0 {
			return num / den
		}
		return 0
	}
	fps, _ := strconv.ParseFloat(rate, 64)
	return fps
}
