package merge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeStub writes an executable shell script standing in for ffmpeg.
func writeStub(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub executables require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestNewMerger_MissingExecutable(t *testing.T) {
	_, err := NewMerger(Config{
		FFmpegPath: filepath.Join(t.TempDir(), "no-such-ffmpeg"),
		Logger:     testLogger(),
	})
	if err == nil {
		t.Fatal("NewMerger() with missing executable expected error, got nil")
	}
	if !strings.Contains(err.Error(), "cannot locate ffmpeg") {
		t.Errorf("error = %q, want mention of ffmpeg resolution", err)
	}
}

func TestMerge_Success(t *testing.T) {
	// Stub writes its last argument (the output path) as a file.
	stub := writeStub(t, `for out; do :; done; printf 'webm-bytes' > "$out"`)

	m, err := NewMerger(Config{FFmpegPath: stub, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewMerger() error = %v", err)
	}

	outPath := OutputPath(t.TempDir())
	if err := m.Merge(context.Background(), "base.webm", "audio.mp3", outPath); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !bytes.Equal(data, []byte("webm-bytes")) {
		t.Errorf("output = %q, want webm-bytes", data)
	}
}

func TestMerge_NonZeroExit(t *testing.T) {
	stub := writeStub(t, `echo "Invalid data found when processing input" >&2; exit 1`)

	m, err := NewMerger(Config{FFmpegPath: stub, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewMerger() error = %v", err)
	}

	err = m.Merge(context.Background(), "base.webm", "audio.mp3", OutputPath(t.TempDir()))
	if err == nil {
		t.Fatal("Merge() expected error, got nil")
	}

	var terr *TranscodeError
	if !errors.As(err, &terr) {
		t.Fatalf("error type = %T, want *TranscodeError", err)
	}
	if terr.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", terr.ExitCode)
	}
	if !strings.Contains(terr.StderrTail, "Invalid data") {
		t.Errorf("StderrTail = %q, want diagnostic text", terr.StderrTail)
	}
}

func TestMerge_Timeout(t *testing.T) {
	stub := writeStub(t, `sleep 5`)

	m, err := NewMerger(Config{FFmpegPath: stub, Timeout: 50 * time.Millisecond, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewMerger() error = %v", err)
	}

	err = m.Merge(context.Background(), "base.webm", "audio.mp3", OutputPath(t.TempDir()))
	if err == nil {
		t.Fatal("Merge() expected timeout error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestOutputPath_Unique(t *testing.T) {
	dir := t.TempDir()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		p := OutputPath(dir)
		if seen[p] {
			t.Fatalf("OutputPath() repeated %q", p)
		}
		seen[p] = true
		if filepath.Ext(p) != ".webm" {
			t.Fatalf("OutputPath() = %q, want .webm extension", p)
		}
	}
}

func TestLimitedWriter_KeepsTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 8}

	lw.Write([]byte("0123456789abcdef"))
	if got := buf.String(); got != "89abcdef" {
		t.Errorf("tail = %q, want 89abcdef", got)
	}
}
