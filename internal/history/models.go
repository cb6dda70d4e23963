// Package history keeps a local ledger of merge requests for operational
// visibility. Records are passive; nothing schedules work from them.
package history

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Merge struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	AudioFilename string    `json:"audio_filename,omitempty"`
	AudioBytes    int64     `json:"audio_bytes"`
	OutputBytes   int64     `json:"output_bytes"`
	DurationMS    int64     `json:"duration_ms"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewID() string {
	return uuid.NewString()
}
