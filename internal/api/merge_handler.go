package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/overdub/overdub-server/internal/history"
	"github.com/overdub/overdub-server/internal/logging"
	"github.com/overdub/overdub-server/internal/merge"
	"github.com/overdub/overdub-server/internal/upload"
)

// mergeHandler implements POST /merge: stage the uploaded audio, mux it
// into the base video via ffmpeg, stream the result back. Both temp files
// are removed on every exit path.
func mergeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			WriteError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s Not Allowed", r.Method))
			return
		}

		start := time.Now()
		rec := &history.Merge{
			ID:        history.NewID(),
			Status:    history.StatusFailed,
			CreatedAt: start,
		}
		log := logging.WithMergeID(cfg.Logger, rec.ID)

		// Deferred cleanup list: every temp path acquired below is
		// registered here and removed when the handler returns.
		var tempPaths []string
		defer func() {
			for _, path := range tempPaths {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					log.Warn("failed to remove temp file", "error", err)
				}
			}
			rec.DurationMS = time.Since(start).Milliseconds()
			recordMerge(cfg, log, rec)
		}()

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)

		saved, err := upload.SaveAudio(r, "audio", cfg.TempDir)
		if saved != nil {
			tempPaths = append(tempPaths, saved.Path)
			rec.AudioFilename = saved.Filename
			rec.AudioBytes = saved.Size
		}
		if err != nil {
			var sizeErr *upload.SizeLimitError
			switch {
			case errors.Is(err, upload.ErrMissingAudio):
				rec.Error = "no audio file uploaded"
				WriteError(w, http.StatusBadRequest, "No audio file uploaded")
			case errors.As(err, &sizeErr):
				rec.Error = sizeErr.Error()
				WriteError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("Uploaded audio exceeds the %d byte limit", sizeErr.Limit))
			default:
				rec.Error = err.Error()
				WriteErrorDetails(w, http.StatusBadRequest, "Malformed upload", err.Error())
			}
			return
		}

		if _, err := os.Stat(cfg.BaseVideoPath); err != nil {
			// Deployment precondition failed; never echo the path.
			log.Error("base video asset unavailable", "error", err)
			rec.Error = "base video asset unavailable"
			WriteError(w, http.StatusInternalServerError, "Server misconfiguration: base video unavailable")
			return
		}

		outputPath := merge.OutputPath(cfg.TempDir)
		tempPaths = append(tempPaths, outputPath)

		if err := cfg.Merger.Merge(r.Context(), cfg.BaseVideoPath, saved.Path, outputPath); err != nil {
			rec.Error = err.Error()
			var terr *merge.TranscodeError
			if errors.As(err, &terr) {
				WriteErrorDetails(w, http.StatusInternalServerError, "Audio/video merge failed", terr.StderrTail)
			} else {
				WriteErrorDetails(w, http.StatusInternalServerError, "Audio/video merge failed", err.Error())
			}
			return
		}

		data, err := os.ReadFile(outputPath)
		if err != nil {
			log.Error("cannot read merged output", "error", err)
			rec.Error = "cannot read merged output"
			WriteErrorDetails(w, http.StatusInternalServerError, "Failed to read merged output", err.Error())
			return
		}

		filename := fmt.Sprintf("video_final_%d.webm", time.Now().UnixMilli())
		w.Header().Set("Content-Type", "video/webm")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			log.Warn("client disconnected during response write", "error", err)
		}

		rec.Status = history.StatusCompleted
		rec.Error = ""
		rec.OutputBytes = int64(len(data))
	}
}

// recordMerge writes the request outcome to the ledger. Best effort: a
// ledger failure is logged, never surfaced to the client.
func recordMerge(cfg ServerConfig, log *slog.Logger, rec *history.Merge) {
	if cfg.Repository == nil {
		return
	}

	// The request context is likely done by now; use a short independent one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cfg.Repository.CreateMerge(ctx, rec); err != nil {
		log.Warn("failed to record merge", "error", err)
	}
}
