package editrequests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/internal/access"
	"github.com/angelmondragon/certtrack-backend/internal/auditlog"
	"github.com/angelmondragon/certtrack-backend/internal/certificates"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
	"github.com/angelmondragon/certtrack-backend/pkg/logger"
)

type editRequestsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.EditRequest, error)
	HasPending(ctx context.Context, certificateID uuid.UUID) (bool, error)
	Create(ctx context.Context, row *models.EditRequest) error
	Save(ctx context.Context, tx *gorm.DB, row *models.EditRequest) error
}

type certificatesRepository interface {
	FindByNumber(ctx context.Context, number int) (*models.Certificate, error)
	Save(ctx context.Context, tx *gorm.DB, cert *models.Certificate) error
}

type configService interface {
	Get(ctx context.Context) (*models.CertificateConfig, error)
}

type notifier interface {
	EditRequestSubmitted(ctx context.Context, req *models.EditRequest, cert *models.Certificate) error
	EditRequestReviewed(ctx context.Context, req *models.EditRequest, cert *models.Certificate) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SubmitInput carries proposed replacement values. Nil fields were left
// untouched by the requester.
type SubmitInput struct {
	AES              *string
	CountryOfOrigin  *string
	DateOfIssue      *time.Time
	DateOfExpiry     *time.Time
	ShippedValue     *decimal.Decimal
	Exporter         *string
	ExporterAddress  *string
	NumberOfParcels  *int
	Consignee        *string
	ConsigneeAddress *string
	CaratWeight      *decimal.Decimal
	HarmonizedCodeID *uuid.UUID
}

// SubmitResult reports the outcome of a submission. NoChange means every
// provided value matched the certificate and nothing was created.
type SubmitResult struct {
	Request  *models.EditRequest
	NoChange bool
}

// Service exposes the edit request workflow: submit a proposed change against
// an issued certificate, review it once, and inspect the certificate as it
// stood at submission time.
type Service interface {
	Submit(ctx context.Context, user models.User, number int, input SubmitInput) (*SubmitResult, error)
	Get(ctx context.Context, user models.User, id uuid.UUID) (*models.EditRequest, error)
	Review(ctx context.Context, user models.User, id uuid.UUID, decision enums.EditRequestStatus) (*models.EditRequest, error)
	CertAsOfRequest(ctx context.Context, user models.User, id uuid.UUID) (*models.Certificate, error)
}

type service struct {
	repo   editRequestsRepository
	certs  certificatesRepository
	cfg    configService
	audit  auditlog.Service
	notify notifier
	tx     txRunner
	logg   *logger.Logger
}

// NewService builds the edit request service.
func NewService(repo editRequestsRepository, certs certificatesRepository, cfg configService, audit auditlog.Service, notify notifier, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("edit request repository required")
	}
	if certs == nil {
		return nil, fmt.Errorf("certificate repository required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config service required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit log service required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, certs: certs, cfg: cfg, audit: audit, notify: notify, tx: tx, logg: logg}, nil
}

func (s *service) Submit(ctx context.Context, user models.User, number int, input SubmitInput) (*SubmitResult, error) {
	cfg, err := s.cfg.Get(ctx)
	if err != nil {
		return nil, err
	}
	// The whole feature is invisible while disabled.
	if !cfg.EditRequests {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "resource not found")
	}

	cert, err := s.loadCertificate(ctx, number)
	if err != nil {
		return nil, err
	}
	if !access.CanEditCertificate(*cert, user) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no edit access to this certificate")
	}
	if !cert.StatusCanBeUpdated() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("certificate %s cannot be edited in status %s", cert.DisplayName(), cert.Status))
	}

	pending, err := s.repo.HasPending(ctx, cert.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending edit requests")
	}
	if pending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a pending edit request already exists for this certificate")
	}

	req := diffRequest(cert, input)
	if req == nil {
		return &SubmitResult{NoChange: true}, nil
	}

	// Proposed values go through the same field rules as issuance, applied
	// to the certificate as it would look after approval.
	merged := *cert
	applyRequest(&merged, req)
	if err := certificates.ValidateFields(&merged, cfg); err != nil {
		return nil, err
	}

	req.CertificateID = cert.ID
	req.ContactID = user.ID
	req.Status = enums.EditRequestStatusPending

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create edit request")
	}

	if err := s.notify.EditRequestSubmitted(ctx, req, cert); err != nil {
		s.logg.Warn(s.logg.WithCertificate(ctx, cert.DisplayName()), "failed to notify reviewers of edit request: "+err.Error())
	}
	return &SubmitResult{Request: req}, nil
}

func (s *service) Get(ctx context.Context, user models.User, id uuid.UUID) (*models.EditRequest, error) {
	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	caps := access.Resolve(user)
	if !caps.CanReviewEdits && req.ContactID != user.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no access to this edit request")
	}
	return req, nil
}

func (s *service) Review(ctx context.Context, user models.User, id uuid.UUID, decision enums.EditRequestStatus) (*models.EditRequest, error) {
	if decision != enums.EditRequestStatusApproved && decision != enums.EditRequestStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approved or rejected")
	}
	if !access.Resolve(user).CanReviewEdits {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no review access")
	}

	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Reviewed() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "edit request has already been reviewed")
	}
	if req.Certificate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "edit request is missing its certificate")
	}

	now := time.Now().UTC()
	req.Status = decision
	req.DateReviewed = &now
	req.ReviewedByID = &user.ID

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if decision == enums.EditRequestStatusApproved {
			applyRequest(req.Certificate, req)
			if err := s.certs.Save(ctx, tx, req.Certificate); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply edit request")
			}
			entry := auditlog.Entry{
				EntityType: auditlog.EntityCertificate,
				EntityID:   req.Certificate.ID,
				ActorID:    &user.ID,
				Action:     auditlog.ActionEdited,
				Entity:     req.Certificate,
			}
			if err := s.audit.Record(ctx, tx, entry); err != nil {
				return err
			}
		}
		if err := s.repo.Save(ctx, tx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save edit request")
		}
		return s.audit.Record(ctx, tx, auditlog.Entry{
			EntityType: auditlog.EntityEditRequest,
			EntityID:   req.ID,
			ActorID:    &user.ID,
			Action:     auditlog.ActionUpdated,
			Entity:     req,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.notify.EditRequestReviewed(ctx, req, req.Certificate); err != nil {
		s.logg.Warn(ctx, "failed to notify requester of review outcome: "+err.Error())
	}
	return req, nil
}

// CertAsOfRequest reconstructs the certificate as it stood when the edit
// request was submitted.
func (s *service) CertAsOfRequest(ctx context.Context, user models.User, id uuid.UUID) (*models.Certificate, error) {
	req, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	var cert models.Certificate
	if err := s.audit.AsOf(ctx, auditlog.EntityCertificate, req.CertificateID, req.DateRequested, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

func (s *service) loadCertificate(ctx context.Context, number int) (*models.Certificate, error) {
	cert, err := s.certs.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "certificate not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup certificate")
	}
	return cert, nil
}

func (s *service) loadRequest(ctx context.Context, id uuid.UUID) (*models.EditRequest, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "edit request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup edit request")
	}
	return req, nil
}

// diffRequest captures only the fields whose proposed value differs from the
// certificate. Returns nil when nothing changed.
func diffRequest(cert *models.Certificate, input SubmitInput) *models.EditRequest {
	req := &models.EditRequest{}
	changed := false

	if input.AES != nil && *input.AES != cert.AES {
		req.AES = input.AES
		changed = true
	}
	if input.CountryOfOrigin != nil && *input.CountryOfOrigin != cert.CountryOfOrigin {
		req.CountryOfOrigin = input.CountryOfOrigin
		changed = true
	}
	if input.DateOfIssue != nil && !sameDate(input.DateOfIssue, cert.DateOfIssue) {
		req.DateOfIssue = input.DateOfIssue
		changed = true
	}
	if input.DateOfExpiry != nil && !sameDate(input.DateOfExpiry, cert.DateOfExpiry) {
		req.DateOfExpiry = input.DateOfExpiry
		changed = true
	}
	if input.ShippedValue != nil && !sameDecimal(input.ShippedValue, cert.ShippedValue) {
		req.ShippedValue = input.ShippedValue
		changed = true
	}
	if input.Exporter != nil && *input.Exporter != cert.Exporter {
		req.Exporter = input.Exporter
		changed = true
	}
	if input.ExporterAddress != nil && *input.ExporterAddress != cert.ExporterAddress {
		req.ExporterAddress = input.ExporterAddress
		changed = true
	}
	if input.NumberOfParcels != nil && !sameInt(input.NumberOfParcels, cert.NumberOfParcels) {
		req.NumberOfParcels = input.NumberOfParcels
		changed = true
	}
	if input.Consignee != nil && *input.Consignee != cert.Consignee {
		req.Consignee = input.Consignee
		changed = true
	}
	if input.ConsigneeAddress != nil && *input.ConsigneeAddress != cert.ConsigneeAddr {
		req.ConsigneeAddr = input.ConsigneeAddress
		changed = true
	}
	if input.CaratWeight != nil && !sameDecimal(input.CaratWeight, cert.CaratWeight) {
		req.CaratWeight = input.CaratWeight
		changed = true
	}
	if input.HarmonizedCodeID != nil && !sameUUID(input.HarmonizedCodeID, cert.HarmonizedCode) {
		req.HarmonizedCode = input.HarmonizedCodeID
		changed = true
	}

	if !changed {
		return nil
	}
	return req
}

// applyRequest copies the populated proposal fields onto the certificate.
func applyRequest(cert *models.Certificate, req *models.EditRequest) {
	if req.AES != nil {
		cert.AES = *req.AES
	}
	if req.CountryOfOrigin != nil {
		cert.CountryOfOrigin = *req.CountryOfOrigin
	}
	if req.DateOfIssue != nil {
		cert.DateOfIssue = req.DateOfIssue
	}
	if req.DateOfExpiry != nil {
		cert.DateOfExpiry = req.DateOfExpiry
	}
	if req.ShippedValue != nil {
		cert.ShippedValue = req.ShippedValue
	}
	if req.Exporter != nil {
		cert.Exporter = *req.Exporter
	}
	if req.ExporterAddress != nil {
		cert.ExporterAddress = *req.ExporterAddress
	}
	if req.NumberOfParcels != nil {
		cert.NumberOfParcels = req.NumberOfParcels
	}
	if req.Consignee != nil {
		cert.Consignee = *req.Consignee
	}
	if req.ConsigneeAddr != nil {
		cert.ConsigneeAddr = *req.ConsigneeAddr
	}
	if req.CaratWeight != nil {
		cert.CaratWeight = req.CaratWeight
	}
	if req.HarmonizedCode != nil {
		cert.HarmonizedCode = req.HarmonizedCode
	}
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameDecimal(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
