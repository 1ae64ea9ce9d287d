package syncer

import (
	"context"
	"time"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// Store is the local persistence the engine writes through. Implemented by
// repository.PostgresRepo; faked in tests.
//
// Lookup methods return (nil, nil) when nothing matches. CreateEntity and
// UpdateEntity each run in their own transaction so one record's failure
// rolls back only that record.
type Store interface {
	FindByExternalID(ctx context.Context, t model.EntityType, externalID string) (*model.LocalEntity, error)
	FindContactsByEmail(ctx context.Context, t model.EntityType, email string) ([]*model.LocalEntity, error)
	// ContactNames returns lightweight entities (ID plus name attributes)
	// of one contact kind for fuzzy scoring.
	ContactNames(ctx context.Context, t model.EntityType) ([]*model.LocalEntity, error)
	GetEntity(ctx context.Context, t model.EntityType, id int64) (*model.LocalEntity, error)

	CreateEntity(ctx context.Context, ent *model.LocalEntity) error
	UpdateEntity(ctx context.Context, t model.EntityType, id int64, changes map[string]string, externalID string, plan *ChildPlan) error

	GetWatermark(ctx context.Context, t model.EntityType) (*time.Time, error)
	SetWatermark(ctx context.Context, t model.EntityType, ts time.Time) error

	CreateSyncRun(ctx context.Context, run *model.SyncRun) error
	FinishSyncRun(ctx context.Context, run *model.SyncRun) error

	ContactSnapshot(ctx context.Context) ([]model.ContactSnapshot, error)
}
