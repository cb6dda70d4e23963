package api

import (
	"time"

	"github.com/overdub/overdub-server/internal/history"
)

type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	UptimeS          int64  `json:"uptime_s"`
	InstanceID       string `json:"instance_id"`
	BaseAssetPresent bool   `json:"base_asset_present"`
}

// ErrorResponse is the body of every non-2xx response. Details carries the
// underlying error text for server-side failures; internal paths never
// appear in either field.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type MergeRecordResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	AudioFilename string `json:"audio_filename,omitempty"`
	AudioBytes    int64  `json:"audio_bytes"`
	OutputBytes   int64  `json:"output_bytes"`
	DurationMS    int64  `json:"duration_ms"`
	Error         string `json:"error,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type MergesResponse struct {
	Merges []MergeRecordResponse `json:"merges"`
}

func MergeToResponse(m *history.Merge) MergeRecordResponse {
	return MergeRecordResponse{
		ID:            m.ID,
		Status:        m.Status,
		AudioFilename: m.AudioFilename,
		AudioBytes:    m.AudioBytes,
		OutputBytes:   m.OutputBytes,
		DurationMS:    m.DurationMS,
		Error:         m.Error,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
	}
}
