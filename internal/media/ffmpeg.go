// Package media resolves chunk requests into materialized media and
// audio artifacts, fetching remote ranges through ffmpeg.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// FFmpeg shells out to ffmpeg/ffprobe for range fetching, audio
// transcoding, and source probing. Every call is bounded by its context.
type FFmpeg struct {
	SampleRate int
	Channels   int
}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		SampleRate: 16000,
		Channels:   1,
	}
}

// FetchRange downloads and trims [offset, offset+duration) of a remote
// stream into dst without materializing the whole source.
func (f *FFmpeg) FetchRange(ctx context.Context, url string, offset, duration float64, dst string) error {
	args := []string{
		"-ss", formatSeconds(offset),
		"-i", url,
		"-t", formatSeconds(duration),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-preset", "ultrafast", // real-time cadence beats compression
		"-loglevel", "error",
		"-y",
		dst,
	}
	return runTool(ctx, "ffmpeg", args)
}

// ExtractAudio transcodes a media artifact to raw mono s16le PCM at the
// configured sample rate, the format the transcriber and the loudness
// envelope both consume.
func (f *FFmpeg) ExtractAudio(ctx context.Context, src, dst string) error {
	args := []string{
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
		"-f", "s16le",
		"-loglevel", "error",
		"-y",
		dst,
	}
	return runTool(ctx, "ffmpeg", args)
}

// SourceInfo is the probe result for a remote source.
type SourceInfo struct {
	Duration float64 `json:"duration"`
	Title    string  `json:"title"`
}

// Probe fetches source metadata without downloading media.
func (f *FFmpeg) Probe(ctx context.Context, url string) (SourceInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		url,
	)
	out, err := cmd.Output()
	if err != nil {
		return SourceInfo{}, fmt.Errorf("ffprobe: %w", err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
			Tags     struct {
				Title string `json:"title"`
			} `json:"tags"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return SourceInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := SourceInfo{Title: probe.Format.Tags.Title}
	if probe.Format.Duration != "" {
		d, err := strconv.ParseFloat(probe.Format.Duration, 64)
		if err != nil {
			return SourceInfo{}, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
		}
		info.Duration = d
	}
	return info, nil
}

func runTool(ctx context.Context, tool string, args []string) error {
	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("%s: %w: %s", tool, err, msg)
		}
		return fmt.Errorf("%s: %w", tool, err)
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
