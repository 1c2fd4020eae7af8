package ingest

import (
	"time"

	"github.com/VoxPulseAI/voxpulse/engine/domain"
)

const (
	// Subject carries collected posts from the collector to the worker.
	Subject = "voxpulse.ingest"
	// DLQSubject parks posts that keep failing enrichment.
	DLQSubject = "voxpulse.ingest.dlq"
	// MaxRetries before a failing post moves to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// Config carries the project timeline posts are phase-tagged against.
// Zero bounds leave that side of the window open.
type Config struct {
	ProjectStart time.Time
	ProjectEnd   time.Time
}

// DLQMessage is what lands on the dead letter subject: the original
// post plus the last error, for manual replay.
type DLQMessage struct {
	Post    domain.Post `json:"post"`
	Error   string      `json:"error"`
	Retries int         `json:"retries"`
}
