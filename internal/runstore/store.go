// Package runstore keeps the diagnostics and downloadable artifacts of
// recent pipeline runs. The pipeline itself never touches it; the HTTP API
// and the inbox watcher write to it and the API reads from it.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrNoDataset   = errors.New("run has no dataset")
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is the stored record of one pipeline invocation. Report and the
// artifacts are stored as rendered bytes so backends stay dumb.
type Run struct {
	ID        string          `json:"id"`
	Profile   string          `json:"profile"`
	Source    string          `json:"source"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Rows      int             `json:"rows"`
	Report    json.RawMessage `json:"report,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Artifacts are the downloadable outputs of a successful run.
type Artifacts struct {
	Dataset  []byte
	Payloads []byte
}

// Store records runs newest-first and remembers which inbox objects have
// already been processed.
type Store interface {
	SaveRun(ctx context.Context, run *Run, artifacts *Artifacts) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	GetDataset(ctx context.Context, id string) ([]byte, error)
	GetPayloads(ctx context.Context, id string) ([]byte, error)

	MarkProcessed(ctx context.Context, key string) error
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}
