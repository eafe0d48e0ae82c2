package licensees

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/internal/access"
	"github.com/angelmondragon/certtrack-backend/internal/auditlog"
	"github.com/angelmondragon/certtrack-backend/pkg/db"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

type licenseesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Licensee, error)
	FindAddress(ctx context.Context, id uuid.UUID) (*models.LicenseeAddress, error)
	CreateAddress(ctx context.Context, row *models.LicenseeAddress) error
	SaveAddress(ctx context.Context, row *models.LicenseeAddress) error
	DeleteAddress(ctx context.Context, row *models.LicenseeAddress) error
	AddressInUse(ctx context.Context, row *models.LicenseeAddress) (bool, error)
}

type configService interface {
	IsAllowedCountry(ctx context.Context, code string) (bool, error)
}

// AddressInput carries address book entry fields.
type AddressInput struct {
	Name    string
	Address string
	Country string
}

// Service exposes licensee reads and the address book workflow. The address
// book feeds exporter and consignee fields on certificate issuance, so writes
// follow the same rule as certificate edits: auditors and reviewers are
// read-only.
type Service interface {
	Get(ctx context.Context, user models.User, id uuid.UUID) (*models.Licensee, error)
	Contacts(ctx context.Context, user models.User, id uuid.UUID) ([]models.User, error)
	CreateAddress(ctx context.Context, user models.User, licenseeID uuid.UUID, input AddressInput) (*models.LicenseeAddress, error)
	UpdateAddress(ctx context.Context, user models.User, addressID uuid.UUID, input AddressInput) (*models.LicenseeAddress, error)
	DeleteAddress(ctx context.Context, user models.User, addressID uuid.UUID) error
}

type service struct {
	repo  licenseesRepository
	cfg   configService
	audit auditlog.Service
}

// NewService builds the licensee service.
func NewService(repo licenseesRepository, cfg configService, audit auditlog.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("licensee repository required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config service required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit log service required")
	}
	return &service{repo: repo, cfg: cfg, audit: audit}, nil
}

func (s *service) Get(ctx context.Context, user models.User, id uuid.UUID) (*models.Licensee, error) {
	licensee, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanAccessLicensee(licensee.ID, user) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no access to this licensee")
	}
	return licensee, nil
}

// Contacts lists the licensee's associated users for the registration form.
func (s *service) Contacts(ctx context.Context, user models.User, id uuid.UUID) ([]models.User, error) {
	if !access.Resolve(user).IsAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators may list licensee contacts")
	}
	licensee, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return licensee.Contacts, nil
}

func (s *service) CreateAddress(ctx context.Context, user models.User, licenseeID uuid.UUID, input AddressInput) (*models.LicenseeAddress, error) {
	licensee, err := s.load(ctx, licenseeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeWrite(licensee.ID, user); err != nil {
		return nil, err
	}
	normalized, err := s.validateAddress(ctx, input)
	if err != nil {
		return nil, err
	}

	row := &models.LicenseeAddress{
		LicenseeID: licensee.ID,
		Name:       normalized.Name,
		Address:    normalized.Address,
		Country:    normalized.Country,
	}
	if err := s.repo.CreateAddress(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "idx_licensee_address_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("an address named %q already exists for this licensee", row.Name))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}

	if err := s.recordAddress(ctx, user, auditlog.ActionCreated, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) UpdateAddress(ctx context.Context, user models.User, addressID uuid.UUID, input AddressInput) (*models.LicenseeAddress, error) {
	row, err := s.loadAddress(ctx, addressID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeWrite(row.LicenseeID, user); err != nil {
		return nil, err
	}
	normalized, err := s.validateAddress(ctx, input)
	if err != nil {
		return nil, err
	}

	row.Name = normalized.Name
	row.Address = normalized.Address
	row.Country = normalized.Country
	if err := s.repo.SaveAddress(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "idx_licensee_address_name") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("an address named %q already exists for this licensee", row.Name))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save address")
	}

	if err := s.recordAddress(ctx, user, auditlog.ActionUpdated, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) DeleteAddress(ctx context.Context, user models.User, addressID uuid.UUID) error {
	row, err := s.loadAddress(ctx, addressID)
	if err != nil {
		return err
	}
	if err := s.authorizeWrite(row.LicenseeID, user); err != nil {
		return err
	}

	inUse, err := s.repo.AddressInUse(ctx, row)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check address references")
	}
	if inUse {
		return pkgerrors.New(pkgerrors.CodeConflict, "address is referenced by issued certificates and cannot be deleted")
	}

	if err := s.repo.DeleteAddress(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	return s.recordAddress(ctx, user, auditlog.ActionDeleted, row)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Licensee, error) {
	licensee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "licensee not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup licensee")
	}
	return licensee, nil
}

func (s *service) loadAddress(ctx context.Context, id uuid.UUID) (*models.LicenseeAddress, error) {
	row, err := s.repo.FindAddress(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup address")
	}
	return row, nil
}

func (s *service) authorizeWrite(licenseeID uuid.UUID, user models.User) error {
	caps := access.Resolve(user)
	if !caps.CanEditCertificates {
		return pkgerrors.New(pkgerrors.CodeForbidden, "read-only roles cannot modify the address book")
	}
	if caps.IsAdmin {
		return nil
	}
	for _, id := range access.ActiveLicenseeIDs(user) {
		if id == licenseeID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "no access to this licensee")
}

func (s *service) validateAddress(ctx context.Context, input AddressInput) (AddressInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Address = strings.TrimSpace(input.Address)
	input.Country = strings.ToUpper(strings.TrimSpace(input.Country))

	var problems []string
	if input.Name == "" {
		problems = append(problems, "name is required")
	}
	if input.Address == "" {
		problems = append(problems, "address is required")
	}
	if input.Country == "" {
		problems = append(problems, "country is required")
	} else {
		allowed, err := s.cfg.IsAllowedCountry(ctx, input.Country)
		if err != nil {
			return input, err
		}
		if !allowed {
			problems = append(problems, fmt.Sprintf("country %s is not on the participant list", input.Country))
		}
	}
	if len(problems) > 0 {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid address").WithDetails(problems)
	}
	return input, nil
}

func (s *service) recordAddress(ctx context.Context, user models.User, action string, row *models.LicenseeAddress) error {
	return s.audit.Record(ctx, nil, auditlog.Entry{
		EntityType: auditlog.EntityLicenseeAddress,
		EntityID:   row.ID,
		ActorID:    &user.ID,
		Action:     action,
		Entity:     row,
	})
}
