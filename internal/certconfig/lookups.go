package certconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

type lookupsRepository interface {
	ListHSCodes(ctx context.Context) ([]models.HSCode, error)
	ListPorts(ctx context.Context) ([]models.PortOfExport, error)
	ListVoidReasons(ctx context.Context) ([]models.VoidReason, error)
	CreateHSCode(ctx context.Context, row *models.HSCode) error
	CreatePort(ctx context.Context, row *models.PortOfExport) error
	CreateVoidReason(ctx context.Context, row *models.VoidReason) error
	DeleteHSCode(ctx context.Context, id uuid.UUID) error
	DeletePort(ctx context.Context, id uuid.UUID) error
	DeleteVoidReason(ctx context.Context, id uuid.UUID) error
}

// LookupInput creates one lookup row.
type LookupInput struct {
	Value     string
	SortOrder int
}

// Lookups bundles the selectable values backing the issue and void forms.
type Lookups struct {
	HSCodes     []models.HSCode
	Ports       []models.PortOfExport
	VoidReasons []models.VoidReason
}

// LookupKind selects which lookup table an admin operation targets.
type LookupKind string

const (
	LookupHSCode     LookupKind = "hs_code"
	LookupPort       LookupKind = "port_of_export"
	LookupVoidReason LookupKind = "void_reason"
)

// ParseLookupKind maps a path segment to a lookup table.
func ParseLookupKind(raw string) (LookupKind, error) {
	switch LookupKind(strings.TrimSpace(raw)) {
	case LookupHSCode:
		return LookupHSCode, nil
	case LookupPort:
		return LookupPort, nil
	case LookupVoidReason:
		return LookupVoidReason, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown lookup kind %q", raw))
}

// LookupsService manages the HS code, port, and void reason tables.
type LookupsService interface {
	List(ctx context.Context) (*Lookups, error)
	Create(ctx context.Context, kind LookupKind, input LookupInput) (uuid.UUID, error)
	Delete(ctx context.Context, kind LookupKind, id uuid.UUID) error
}

type lookupsService struct {
	repo lookupsRepository
}

// NewLookupsService builds the lookup management service.
func NewLookupsService(repo lookupsRepository) (LookupsService, error) {
	if repo == nil {
		return nil, fmt.Errorf("lookups repository required")
	}
	return &lookupsService{repo: repo}, nil
}

func (s *lookupsService) List(ctx context.Context) (*Lookups, error) {
	hsCodes, err := s.repo.ListHSCodes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list hs codes")
	}
	ports, err := s.repo.ListPorts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ports of export")
	}
	reasons, err := s.repo.ListVoidReasons(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list void reasons")
	}
	return &Lookups{HSCodes: hsCodes, Ports: ports, VoidReasons: reasons}, nil
}

func (s *lookupsService) Create(ctx context.Context, kind LookupKind, input LookupInput) (uuid.UUID, error) {
	value := strings.TrimSpace(input.Value)
	if value == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "value is required")
	}

	var err error
	var id uuid.UUID
	switch kind {
	case LookupHSCode:
		row := &models.HSCode{Value: value, SortOrder: input.SortOrder}
		if err = s.repo.CreateHSCode(ctx, row); err == nil {
			id = row.ID
		}
	case LookupPort:
		row := &models.PortOfExport{Name: value, SortOrder: input.SortOrder}
		if err = s.repo.CreatePort(ctx, row); err == nil {
			id = row.ID
		}
	case LookupVoidReason:
		row := &models.VoidReason{Value: value, SortOrder: input.SortOrder}
		if err = s.repo.CreateVoidReason(ctx, row); err == nil {
			id = row.ID
		}
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown lookup kind")
	}
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create lookup value")
	}
	return id, nil
}

func (s *lookupsService) Delete(ctx context.Context, kind LookupKind, id uuid.UUID) error {
	var err error
	switch kind {
	case LookupHSCode:
		err = s.repo.DeleteHSCode(ctx, id)
	case LookupPort:
		err = s.repo.DeletePort(ctx, id)
	case LookupVoidReason:
		err = s.repo.DeleteVoidReason(ctx, id)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown lookup kind")
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "lookup value not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete lookup value")
	}
	return nil
}
