// Package probe extracts duration, dimensions and size from stored media
// by running ffprobe and decoding its JSON output.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Metadata is what the processing pipeline needs from a media object.
type Metadata struct {
	Duration float64
	Width    int
	Height   int
	Size     int64
}

// Prober reads metadata from a media source (a local path or a URL ffprobe can open).
type Prober interface {
	Probe(ctx context.Context, source string) (Metadata, error)
}

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against source and decodes the JSON response.
func Inspect(ctx context.Context, binary, source string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return Result{}, errors.New("ffprobe inspect: empty source")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", source)
	output, err := cmd.Output()
	if err != nil {
		var stderr string
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, stderr)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream, if any.
func (r Result) VideoStream() (Stream, bool) {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "video") {
			return s, true
		}
	}
	return Stream{}, false
}

// DurationSeconds returns the container duration, 0 when absent and NaN when unparsable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// Metadata reduces the result to the fields the pipeline stores.
// Missing values become zero.
func (r Result) Metadata() Metadata {
	d := r.DurationSeconds()
	if math.IsNaN(d) || d < 0 {
		d = 0
	}
	md := Metadata{Duration: d, Size: r.SizeBytes()}
	if vs, ok := r.VideoStream(); ok {
		md.Width, md.Height = vs.Width, vs.Height
	}
	return md
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

// FFProbe is the Prober backed by the ffprobe binary.
type FFProbe struct {
	Binary  string
	Timeout time.Duration
}

// NewFFProbe returns an FFProbe; a zero timeout means no caller-side limit.
func NewFFProbe(binary string, timeout time.Duration) *FFProbe {
	return &FFProbe{Binary: binary, Timeout: timeout}
}

func (p *FFProbe) Probe(ctx context.Context, source string) (Metadata, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	res, err := Inspect(ctx, p.Binary, source)
	if err != nil {
		return Metadata{}, err
	}
	return res.Metadata(), nil
}
