// Package merge invokes ffmpeg to mux an uploaded audio track into the
// fixed base video. The base video's stream is copied unmodified (it is
// already VP9 with alpha); the audio is re-encoded to Opus so the result
// is a valid webm.
package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// Merger executes a single base-video + audio mux. It is the execution
// contract consumed by the HTTP handler.
type Merger interface {
	// Merge muxes video stream 0 of baseVideoPath with audio stream 0 of
	// audioPath into outputPath. It blocks until ffmpeg exits.
	Merge(ctx context.Context, baseVideoPath, audioPath, outputPath string) error
}

// Config holds the merger's configuration.
type Config struct {
	FFmpegPath string        // path to ffmpeg binary; empty = auto-detect
	Timeout    time.Duration // bound on a single invocation; 0 = no bound
	Logger     *slog.Logger
}

// FFmpegMerger is the production implementation of Merger.
type FFmpegMerger struct {
	cfg    Config
	ffmpeg string // resolved ffmpeg path
}

// TranscodeError reports a failed ffmpeg run with its diagnostic output.
type TranscodeError struct {
	ExitCode   int
	StderrTail string
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("ffmpeg exited %d: %s", e.ExitCode, e.StderrTail)
}

// NewMerger creates an FFmpegMerger, resolving the ffmpeg binary path.
// It fails fast when the executable cannot be located.
func NewMerger(cfg Config) (*FFmpegMerger, error) {
	ffmpeg, err := resolveFFmpeg(cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffmpeg: %w", err)
	}

	cfg.Logger.Info("merger initialised", "ffmpeg", ffmpeg, "timeout", cfg.Timeout.String())

	return &FFmpegMerger{cfg: cfg, ffmpeg: ffmpeg}, nil
}

// FFmpegPath returns the resolved ffmpeg binary path.
func (m *FFmpegMerger) FFmpegPath() string {
	return m.ffmpeg
}

func (m *FFmpegMerger) Merge(ctx context.Context, baseVideoPath, audioPath, outputPath string) error {
	start := time.Now()

	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	args := []string{
		"-i", baseVideoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "libopus",
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, m.ffmpeg, args...)

	// Capture stderr with bounded buffer; ffmpeg writes diagnostics there.
	var stderrBuf bytes.Buffer
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})
	cmd.Stdout = io.Discard

	m.cfg.Logger.Info("executing ffmpeg merge",
		"audio", filepath.Base(audioPath),
		"output", filepath.Base(outputPath),
	)

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		stderrTail := stderrBuf.String()
		m.cfg.Logger.Warn("ffmpeg merge failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg merge aborted after %s: %w", elapsed.Round(time.Millisecond), ctxErr)
		}
		return &TranscodeError{ExitCode: exitCode, StderrTail: stderrTail}
	}

	m.cfg.Logger.Info("ffmpeg merge succeeded",
		"duration_ms", elapsed.Milliseconds(),
		"output", filepath.Base(outputPath),
	)
	return nil
}

// OutputPath returns a collision-resistant output file path in dir.
func OutputPath(dir string) string {
	return filepath.Join(dir, "overdub_out_"+uuid.NewString()+".webm")
}

// resolveFFmpeg finds a usable ffmpeg binary.
func resolveFFmpeg(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured ffmpeg %q not found", preferred)
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no ffmpeg binary found on PATH")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
