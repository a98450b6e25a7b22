package mediainfo

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

const (
	// frameJPEGQuality is the ffmpeg qscale:v for captured frames. 2 is
	// high quality (~95% JPEG) so downstream models see minimal artifacts.
	frameJPEGQuality = 2

	// MaxFrameDimension caps captured frames before they go to embedding
	// and caption models. Larger frames are downscaled preserving aspect.
	MaxFrameDimension = 2048

	// thumbnailEdge is the square sample size used for blank detection.
	thumbnailEdge = 32
)

// CaptureFrame grabs the frame at the given timestamp as JPEG bytes, resized
// down to MaxFrameDimension when the source is larger.
func CaptureFrame(ctx context.Context, videoPath string, timestampS float64) ([]byte, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	tmpFile, err := os.CreateTemp("", "frame-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	// -ss before -i uses keyframe seek, which is fast and accurate enough
	// for interval sampling.
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-ss", strconv.FormatFloat(timestampS, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(frameJPEGQuality),
		"-y", tmpPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame capture at %.3fs failed: %w (%s)", timestampS, err, truncate(stderr.String(), 300))
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read captured frame: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ffmpeg produced empty frame at %.3fs", timestampS)
	}

	resized, err := resizeJPEG(data, MaxFrameDimension)
	if err != nil {
		return nil, err
	}

	log.Debug().Float64("timestamp", timestampS).Int("bytes", len(resized)).Msg("Frame captured")
	return resized, nil
}

// resizeJPEG downscales a JPEG so its longest edge is at most maxDim.
// Smaller images pass through untouched.
func resizeJPEG(data []byte, maxDim int) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return data, nil
	}

	newW, newH := w, h
	if w >= h {
		newW = maxDim
		newH = h * maxDim / w
	} else {
		newH = maxDim
		newW = w * maxDim / h
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode resized frame: %w", err)
	}
	return buf.Bytes(), nil
}

// IsBlankFrame reports whether a frame is visually empty, meaning a solid
// color card or fade. It downsamples to a small thumbnail, quantizes each
// channel to eight levels, and flags the frame when the sample has at most two
// distinct colors or one color covers at least 90% of the pixels.
func IsBlankFrame(data []byte) (bool, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("decode frame: %w", err)
	}

	thumb := image.NewRGBA(image.Rect(0, 0, thumbnailEdge, thumbnailEdge))
	draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), img, img.Bounds(), draw.Over, nil)

	counts := make(map[uint32]int)
	total := thumbnailEdge * thumbnailEdge
	maxCount := 0
	for y := 0; y < thumbnailEdge; y++ {
		for x := 0; x < thumbnailEdge; x++ {
			r, g, b, _ := thumb.At(x, y).RGBA()
			key := (r >> 13 << 10) | (g >> 13 << 5) | (b >> 13)
			counts[key]++
			if counts[key] > maxCount {
				maxCount = counts[key]
			}
		}
	}

	if len(counts) <= 2 {
		return true, nil
	}
	return float64(maxCount) >= 0.9*float64(total), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
