package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

// Tracked entity types.
const (
	EntityCertificate     = "certificate"
	EntityReceipt         = "receipt"
	EntityEditRequest     = "edit_request"
	EntityConfig          = "certificate_config"
	EntityLicenseeAddress = "licensee_address"
)

// Actions recorded alongside snapshots.
const (
	ActionRegistered   = "registered"
	ActionIssued       = "issued"
	ActionStatusUpdate = "status_update"
	ActionVoided       = "voided"
	ActionEdited       = "edited"
	ActionCreated      = "created"
	ActionUpdated      = "updated"
	ActionDeleted      = "deleted"
)

type changeLogRepository interface {
	Insert(ctx context.Context, tx *gorm.DB, row *models.ChangeLog) error
	LatestAsOf(ctx context.Context, entityType string, entityID uuid.UUID, at time.Time) (*models.ChangeLog, error)
	History(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.ChangeLog, error)
}

// Entry describes one mutation to record.
type Entry struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	Entity     any
}

// Service is the append-only audit trail. Every mutation to a tracked entity
// records a full post-change snapshot inside the mutating transaction.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	AsOf(ctx context.Context, entityType string, entityID uuid.UUID, at time.Time, out any) error
	History(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.ChangeLog, error)
}

type service struct {
	repo changeLogRepository
}

// NewService builds the audit log service.
func NewService(repo changeLogRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("change log repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if entry.EntityType == "" || entry.Action == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "audit entry missing entity type or action")
	}
	if entry.EntityID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "audit entry missing entity id")
	}

	snapshot, err := json.Marshal(entry.Entity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal audit snapshot")
	}

	row := &models.ChangeLog{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		Snapshot:   snapshot,
	}
	if err := s.repo.Insert(ctx, tx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert change log row")
	}
	return nil
}

// AsOf reconstructs entity state at the given time by unmarshalling the latest
// snapshot recorded at or before it into out.
func (s *service) AsOf(ctx context.Context, entityType string, entityID uuid.UUID, at time.Time, out any) error {
	row, err := s.repo.LatestAsOf(ctx, entityType, entityID, at)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no recorded state at or before the requested time")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query change log")
	}
	if err := json.Unmarshal(row.Snapshot, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unmarshal audit snapshot")
	}
	return nil
}

func (s *service) History(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.ChangeLog, error) {
	rows, err := s.repo.History(ctx, entityType, entityID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list change log")
	}
	return rows, nil
}
