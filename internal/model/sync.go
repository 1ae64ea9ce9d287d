package model

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the terminal or in-flight state of a sync run.
type SyncStatus string

const (
	SyncCreated   SyncStatus = "created"
	SyncRunning   SyncStatus = "running"
	SyncSuccess   SyncStatus = "success"
	SyncPartial   SyncStatus = "partial"
	SyncFailed    SyncStatus = "failed"
	SyncCancelled SyncStatus = "cancelled"
)

// SyncRun is one reconciliation run for a single entity type. Rows are
// append-only; the run is created when the sync starts and updated once at
// finalization.
type SyncRun struct {
	ID          uuid.UUID  `json:"id"`
	EntityType  EntityType `json:"entity_type"`
	Delta       bool       `json:"delta"`
	Status      SyncStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Ambiguous int `json:"ambiguous"`

	// ErrorCount is the total number of recorded errors including those
	// dropped once Errors reached its cap.
	ErrorCount int         `json:"error_count"`
	Errors     []SyncError `json:"errors,omitempty"`

	// Watermark is the timestamp the entity type's watermark was advanced
	// to, set only when the run succeeded.
	Watermark *time.Time `json:"watermark,omitempty"`
}

// SyncError is one bounded, human-readable entry of a run's error list.
type SyncError struct {
	ExternalID string `json:"external_id,omitempty"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

// Watermark records the timestamp through which a delta sync is known
// complete for an entity type. It only ever moves forward.
type Watermark struct {
	EntityType   EntityType `json:"entity_type"`
	LastSyncedAt time.Time  `json:"last_synced_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
