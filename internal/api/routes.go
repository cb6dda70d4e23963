package api

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	// Registered for all methods; the handler owns the 405 contract.
	r.Handle("/merge", mergeHandler(cfg))

	r.Get("/merges", listMergesHandler(cfg))
	r.Get("/merges/{id}", getMergeHandler(cfg))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())

		_, statErr := os.Stat(cfg.BaseVideoPath)

		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:           "ok",
			Version:          cfg.Version,
			UptimeS:          uptime,
			InstanceID:       cfg.InstanceID,
			BaseAssetPresent: statErr == nil,
		})
	}
}

func listMergesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		merges, err := cfg.Repository.ListMerges(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list merges")
			return
		}

		resp := MergesResponse{Merges: make([]MergeRecordResponse, len(merges))}
		for i, m := range merges {
			resp.Merges[i] = MergeToResponse(m)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getMergeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "merge id required")
			return
		}

		m, err := cfg.Repository.GetMerge(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load merge")
			return
		}
		if m == nil {
			WriteError(w, http.StatusNotFound, "merge not found")
			return
		}

		WriteJSON(w, http.StatusOK, MergeToResponse(m))
	}
}
