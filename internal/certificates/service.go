package certificates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/internal/access"
	"github.com/angelmondragon/certtrack-backend/internal/auditlog"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
	pkgpagination "github.com/angelmondragon/certtrack-backend/pkg/pagination"
)

type certificatesRepository interface {
	FindByNumber(ctx context.Context, number int) (*models.Certificate, error)
	MaxNumber(ctx context.Context) (int, error)
	Save(ctx context.Context, tx *gorm.DB, cert *models.Certificate) error
	Search(ctx context.Context, opts searchQuery) ([]models.Certificate, int64, error)
	FindVoidReason(ctx context.Context, id uuid.UUID) (*models.VoidReason, error)
}

type configService interface {
	Get(ctx context.Context) (*models.CertificateConfig, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes certificate lifecycle semantics: issue, status advance,
// void, lookup, and search.
type Service interface {
	Get(ctx context.Context, user models.User, number int) (*models.Certificate, error)
	Search(ctx context.Context, user models.User, params SearchParams) (*SearchResult, error)
	Issue(ctx context.Context, user models.User, number int, input IssueInput) (*models.Certificate, error)
	UpdateStatus(ctx context.Context, user models.User, number int, input StatusUpdateInput) (*models.Certificate, error)
	Void(ctx context.Context, user models.User, number int, input VoidInput) (*VoidResult, error)
	NextAvailableNumber(ctx context.Context) (int, error)
}

type service struct {
	repo  certificatesRepository
	cfg   configService
	audit auditlog.Service
	tx    txRunner
}

// NewService builds a certificate service backed by the provided collaborators.
func NewService(repo certificatesRepository, cfg configService, audit auditlog.Service, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("certificate repository required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config service required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit log service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, cfg: cfg, audit: audit, tx: tx}, nil
}

// NextAvailableNumber returns max(number)+1, or 1 when no certificates exist.
func (s *service) NextAvailableNumber(ctx context.Context) (int, error) {
	max, err := s.repo.MaxNumber(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query max certificate number")
	}
	return max + 1, nil
}

func (s *service) Get(ctx context.Context, user models.User, number int) (*models.Certificate, error) {
	cert, err := s.loadCertificate(ctx, number)
	if err != nil {
		return nil, err
	}
	if !access.CanAccessCertificate(*cert, user) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no access to this certificate")
	}
	return cert, nil
}

func (s *service) Search(ctx context.Context, user models.User, params SearchParams) (*SearchResult, error) {
	caps := access.Resolve(user)

	statuses := params.Statuses
	// Void paper sits outside every default status set, so a void-only
	// search skips them unless the caller filtered explicitly.
	if len(statuses) == 0 && !params.VoidOnly {
		if user.HasRole(enums.UserRoleAuditor) {
			statuses = enums.DefaultAuditorSearchStatuses
		} else {
			statuses = enums.DefaultSearchStatuses
		}
	}
	for _, status := range statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status filter %q", status))
		}
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	offset := pkgpagination.NormalizeOffset(params.Offset)
	query := searchQuery{
		statuses:        statuses,
		numberPrefix:    strings.TrimSpace(params.NumberPrefix),
		licenseeID:      params.LicenseeID,
		includeVoidOnly: params.VoidOnly,
		limit:           limit,
		offset:          offset,
	}
	if params.IssuedFrom != nil {
		query.issuedFrom = dateParam(*params.IssuedFrom)
	}
	if params.IssuedTo != nil {
		query.issuedTo = dateParam(*params.IssuedTo)
	}
	if params.SoldFrom != nil {
		query.dateOfSaleFrom = dateParam(*params.SoldFrom)
	}
	if params.SoldTo != nil {
		query.dateOfSaleTo = dateParam(*params.SoldTo)
	}

	// Contacts only ever see certificates registered to their active licensees.
	if !caps.CanViewAll {
		query.licenseeScope = access.ActiveLicenseeIDs(user)
		if len(query.licenseeScope) == 0 {
			return &SearchResult{Items: []models.Certificate{}, Limit: limit, Offset: offset}, nil
		}
	}

	rows, total, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search certificates")
	}
	return &SearchResult{Items: rows, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *service) Issue(ctx context.Context, user models.User, number int, input IssueInput) (*models.Certificate, error) {
	cert, err := s.loadCertificate(ctx, number)
	if err != nil {
		return nil, err
	}
	if !access.CanEditCertificate(*cert, user) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no edit access to this certificate")
	}
	if cert.Status != enums.CertificateStatusAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("certificate %s has already been issued", cert.DisplayName()))
	}

	cfg, err := s.cfg.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateIssueInput(input, cfg); err != nil {
		return nil, err
	}

	issue := dateOnly(input.DateOfIssue)
	expiry := dateOnly(input.DateOfExpiry)
	shipped := input.ShippedValue
	carat := input.CaratWeight
	parcels := input.NumberOfParcels
	hsCode := input.HarmonizedCodeID
	port := input.PortOfExportID

	cert.AES = input.AES
	cert.CountryOfOrigin = input.CountryOfOrigin
	cert.DateOfIssue = &issue
	cert.DateOfExpiry = &expiry
	cert.ShippedValue = &shipped
	cert.Exporter = strings.TrimSpace(input.Exporter)
	cert.ExporterAddress = input.ExporterAddress
	cert.NumberOfParcels = &parcels
	cert.Consignee = strings.TrimSpace(input.Consignee)
	cert.ConsigneeAddr = input.ConsigneeAddress
	cert.CaratWeight = &carat
	cert.HarmonizedCode = &hsCode
	cert.PortOfExportID = &port
	cert.Attested = true
	cert.Status = enums.CertificateStatusPrepared

	if err := s.saveWithAudit(ctx, cert, user.ID, auditlog.ActionIssued); err != nil {
		return nil, err
	}
	return cert, nil
}

func (s *service) UpdateStatus(ctx context.Context, user models.User, number int, input StatusUpdateInput) (*models.Certificate, error) {
	cert, err := s.loadCertificate(ctx, number)
	if err != nil {
		return nil, err
	}
	if !access.CanEditCertificate(*cert, user) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no edit access to this certificate")
	}
	if !cert.StatusCanBeUpdated() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("certificate %s status cannot be updated from %s", cert.DisplayName(), cert.Status))
	}

	next, ok := cert.NextStatus()
	if !ok || input.NextStatus != next {
		// Stale form guard: the submitted transition must match the
		// certificate's current single legal next status.
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "unexpected status")
	}
	if input.Date.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date is required")
	}

	when := dateOnly(input.Date)
	switch next {
	case enums.CertificateStatusShipped:
		if cert.DateOfIssue != nil && when.Before(dateOnly(*cert.DateOfIssue)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "date of shipment cannot precede date of issue")
		}
		cert.DateOfShipment = &when
	case enums.CertificateStatusDelivered:
		if cert.DateOfShipment != nil && when.Before(dateOnly(*cert.DateOfShipment)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "date of delivery cannot precede date of shipment")
		}
		cert.DateOfDelivery = &when
	}
	cert.Status = next

	if err := s.saveWithAudit(ctx, cert, user.ID, auditlog.ActionStatusUpdate); err != nil {
		return nil, err
	}
	return cert, nil
}

func (s *service) Void(ctx context.Context, user models.User, number int, input VoidInput) (*VoidResult, error) {
	cert, err := s.loadCertificate(ctx, number)
	if err != nil {
		return nil, err
	}
	if !access.CanEditCertificate(*cert, user) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no edit access to this certificate")
	}
	if cert.Void {
		// Voiding twice is harmless; report it without touching the row.
		return &VoidResult{Certificate: cert, AlreadyVoid: true}, nil
	}
	if cert.Status == enums.CertificateStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivered certificates cannot be voided")
	}

	notes := strings.TrimSpace(input.Notes)
	if input.ReasonID != nil {
		reason, err := s.repo.FindVoidReason(ctx, *input.ReasonID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown void reason")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup void reason")
		}
		if notes == "" {
			notes = reason.Value
		}
	} else if notes == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes are required when voiding for an unlisted reason")
	}

	today := dateOnly(time.Now().UTC())
	cert.Void = true
	cert.Status = enums.CertificateStatusVoid
	cert.DateVoided = &today
	cert.Notes = notes

	if err := s.saveWithAudit(ctx, cert, user.ID, auditlog.ActionVoided); err != nil {
		return nil, err
	}
	return &VoidResult{Certificate: cert}, nil
}

func (s *service) loadCertificate(ctx context.Context, number int) (*models.Certificate, error) {
	cert, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "certificate not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup certificate")
	}
	return cert, nil
}

func (s *service) saveWithAudit(ctx context.Context, cert *models.Certificate, actorID uuid.UUID, action string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Save(ctx, tx, cert); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save certificate")
		}
		return s.audit.Record(ctx, tx, auditlog.Entry{
			EntityType: auditlog.EntityCertificate,
			EntityID:   cert.ID,
			ActorID:    &actorID,
			Action:     action,
			Entity:     cert,
		})
	})
}

func dateParam(t time.Time) *string {
	formatted := dateOnly(t).Format("2006-01-02")
	return &formatted
}
