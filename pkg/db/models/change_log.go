package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChangeLog is the append-only audit trail. One row is written alongside every
// mutation to a tracked entity, carrying a full JSON snapshot of the row after
// the change. "As of" queries reconstruct historical state from the latest
// snapshot at or before a timestamp.
type ChangeLog struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EntityType string          `gorm:"column:entity_type;not null;index:idx_change_log_entity"`
	EntityID   uuid.UUID       `gorm:"column:entity_id;type:uuid;not null;index:idx_change_log_entity"`
	ActorID    *uuid.UUID      `gorm:"column:actor_id;type:uuid"`
	Action     string          `gorm:"column:action;not null"`
	Snapshot   json.RawMessage `gorm:"column:snapshot;type:jsonb;not null"`
	RecordedAt time.Time       `gorm:"column:recorded_at;autoCreateTime;index:idx_change_log_entity"`
}
