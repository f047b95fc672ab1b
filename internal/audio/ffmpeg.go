package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFmpeg shells out to ffprobe/ffmpeg for duration measurement and container
// conversion. The diarization provider only accepts mp4, while WhatsApp and
// Telegram both deliver ogg/opus voice notes.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg builds the wrapper; empty paths fall back to $PATH lookup.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Duration measures the audio length of the file at path.
func (f *FFmpeg) Duration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("audio: ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("audio: unparseable ffprobe duration %q: %w", out.String(), err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// ConvertToMP4 rewraps the input into an mp4 container with AAC audio at
// outPath, overwriting any existing file.
func (f *FFmpeg) ConvertToMP4(ctx context.Context, inPath, outPath string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-y",
		"-i", inPath,
		"-c:a", "aac",
		"-vn",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audio: ffmpeg conversion failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
