package receipts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/internal/access"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

type receiptsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error)
}

// Service exposes receipt retrieval. Receipts are immutable snapshots created
// by registration, so reading is the only operation here.
type Service interface {
	Get(ctx context.Context, user models.User, id uuid.UUID) (*models.Receipt, error)
}

type service struct {
	repo receiptsRepository
}

// NewService builds the receipt service.
func NewService(repo receiptsRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("receipt repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, user models.User, id uuid.UUID) (*models.Receipt, error) {
	if !access.Resolve(user).IsAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators may view receipts")
	}
	receipt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup receipt")
	}
	return receipt, nil
}
