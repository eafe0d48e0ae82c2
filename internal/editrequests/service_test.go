package editrequests

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/internal/auditlog"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
	"github.com/angelmondragon/certtrack-backend/pkg/logger"
)

type stubEditRepo struct {
	requests map[uuid.UUID]*models.EditRequest
	pending  bool
	created  *models.EditRequest
	saved    *models.EditRequest
}

func newStubEditRepo() *stubEditRepo {
	return &stubEditRepo{requests: map[uuid.UUID]*models.EditRequest{}}
}

func (s *stubEditRepo) FindByID(_ context.Context, id uuid.UUID) (*models.EditRequest, error) {
	req, ok := s.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return req, nil
}

func (s *stubEditRepo) HasPending(context.Context, uuid.UUID) (bool, error) {
	return s.pending, nil
}

func (s *stubEditRepo) Create(_ context.Context, row *models.EditRequest) error {
	row.ID = uuid.New()
	s.created = row
	return nil
}

func (s *stubEditRepo) Save(_ context.Context, _ *gorm.DB, row *models.EditRequest) error {
	s.saved = row
	return nil
}

type stubCertsRepo struct {
	certs map[int]*models.Certificate
	saved *models.Certificate
}

func (s *stubCertsRepo) FindByNumber(_ context.Context, number int) (*models.Certificate, error) {
	cert, ok := s.certs[number]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cert, nil
}

func (s *stubCertsRepo) Save(_ context.Context, _ *gorm.DB, cert *models.Certificate) error {
	s.saved = cert
	return nil
}

type stubConfig struct {
	editRequests bool
}

func (s *stubConfig) Get(context.Context) (*models.CertificateConfig, error) {
	return &models.CertificateConfig{
		ID:           models.CertificateConfigID,
		DaysToExpiry: 60,
		Price:        decimal.NewFromFloat(20.00),
		KPCountries:  pq.StringArray{"US", "CA"},
		EditRequests: s.editRequests,
	}, nil
}

type stubNotifier struct {
	submitted int
	reviewed  int
}

func (s *stubNotifier) EditRequestSubmitted(context.Context, *models.EditRequest, *models.Certificate) error {
	s.submitted++
	return nil
}

func (s *stubNotifier) EditRequestReviewed(context.Context, *models.EditRequest, *models.Certificate) error {
	s.reviewed++
	return nil
}

type stubAudit struct {
	entries  []auditlog.Entry
	snapshot *models.Certificate
}

func (s *stubAudit) Record(_ context.Context, _ *gorm.DB, entry auditlog.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAudit) AsOf(_ context.Context, _ string, _ uuid.UUID, _ time.Time, out any) error {
	if s.snapshot == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no recorded state")
	}
	*out.(*models.Certificate) = *s.snapshot
	return nil
}

func (s *stubAudit) History(context.Context, string, uuid.UUID, int) ([]models.ChangeLog, error) {
	return nil, nil
}

type stubTx struct{}

func (stubTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fixture struct {
	svc      Service
	repo     *stubEditRepo
	certs    *stubCertsRepo
	notify   *stubNotifier
	audit    *stubAudit
	licensee uuid.UUID
}

func newFixture(t *testing.T, featureOn bool) *fixture {
	t.Helper()
	licenseeID := uuid.New()

	repo := newStubEditRepo()
	certs := &stubCertsRepo{certs: map[int]*models.Certificate{}}
	notify := &stubNotifier{}
	audit := &stubAudit{}
	logg := logger.New(logger.Options{Level: zerolog.ErrorLevel, Output: io.Discard})

	svc, err := NewService(repo, certs, &stubConfig{editRequests: featureOn}, audit, notify, stubTx{}, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{svc: svc, repo: repo, certs: certs, notify: notify, audit: audit, licensee: licenseeID}
}

// preparedCert seeds a fully issued certificate, the state every prepared
// certificate carries in production.
func (f *fixture) preparedCert(number int) *models.Certificate {
	issue := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	expiry := issue.AddDate(0, 0, 60)
	value := decimal.NewFromInt(5000)
	weight := decimal.NewFromFloat(101.5)
	parcels := 2
	hs := uuid.New()
	port := uuid.New()

	cert := &models.Certificate{
		ID:              uuid.New(),
		Number:          number,
		Status:          enums.CertificateStatusPrepared,
		LicenseeID:      &f.licensee,
		AES:             "X11111111111111",
		CountryOfOrigin: "US",
		DateOfIssue:     &issue,
		DateOfExpiry:    &expiry,
		ShippedValue:    &value,
		Exporter:        "Acme Gems",
		ExporterAddress: "1 Main St\nNew York, NY 10001\nUnited States of America",
		NumberOfParcels: &parcels,
		Consignee:       "Maple Imports",
		ConsigneeAddr:   "9 Bay St\nToronto ON\nCanada",
		CaratWeight:     &weight,
		HarmonizedCode:  &hs,
		PortOfExportID:  &port,
		Attested:        true,
	}
	f.certs.certs[number] = cert
	return cert
}

func (f *fixture) contact() models.User {
	return models.User{
		ID:        uuid.New(),
		Licensees: []models.Licensee{{ID: f.licensee, IsActive: true}},
	}
}

func reviewer() models.User {
	return models.User{ID: uuid.New(), Roles: pq.StringArray{"reviewer"}}
}

func strPtr(v string) *string { return &v }

func TestSubmitCapturesOnlyChangedFields(t *testing.T) {
	f := newFixture(t, true)
	f.preparedCert(100)

	result, err := f.svc.Submit(context.Background(), f.contact(), 100, SubmitInput{
		AES:      strPtr("X22222222222222"),
		Exporter: strPtr("Acme Gems"), // identical, should be dropped
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.NoChange {
		t.Fatal("expected a created request")
	}

	req := f.repo.created
	if req == nil {
		t.Fatal("expected request to be persisted")
	}
	if req.AES == nil || *req.AES != "X22222222222222" {
		t.Fatal("expected aes proposal to be captured")
	}
	if req.Exporter != nil {
		t.Fatal("unchanged exporter should not be captured")
	}
	if req.Status != enums.EditRequestStatusPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}
	if f.notify.submitted != 1 {
		t.Fatal("expected reviewer notification")
	}
}

func TestSubmitNoChange(t *testing.T) {
	f := newFixture(t, true)
	f.preparedCert(100)

	result, err := f.svc.Submit(context.Background(), f.contact(), 100, SubmitInput{
		AES: strPtr("X11111111111111"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.NoChange {
		t.Fatal("expected no-change result")
	}
	if f.repo.created != nil {
		t.Fatal("expected nothing persisted")
	}
	if f.notify.submitted != 0 {
		t.Fatal("expected no notification for no-change")
	}
}

func TestSubmitHiddenWhenFeatureDisabled(t *testing.T) {
	f := newFixture(t, false)
	f.preparedCert(100)

	_, err := f.svc.Submit(context.Background(), f.contact(), 100, SubmitInput{AES: strPtr("X22222222222222")})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND while disabled, got %v", err)
	}
}

func TestSubmitBlockedByPendingRequest(t *testing.T) {
	f := newFixture(t, true)
	f.preparedCert(100)
	f.repo.pending = true

	_, err := f.svc.Submit(context.Background(), f.contact(), 100, SubmitInput{AES: strPtr("X22222222222222")})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT for pending request, got %v", err)
	}
}

func TestSubmitDeniedForAuditors(t *testing.T) {
	f := newFixture(t, true)
	f.preparedCert(100)

	auditor := models.User{ID: uuid.New(), Roles: pq.StringArray{"auditor"}}
	_, err := f.svc.Submit(context.Background(), auditor, 100, SubmitInput{AES: strPtr("X22222222222222")})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for auditor, got %v", err)
	}
}

func TestSubmitRequiresModifiableStatus(t *testing.T) {
	f := newFixture(t, true)
	cert := f.preparedCert(100)
	cert.Status = enums.CertificateStatusDelivered

	_, err := f.svc.Submit(context.Background(), f.contact(), 100, SubmitInput{AES: strPtr("X22222222222222")})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestSubmitRejectsInvalidProposedFields(t *testing.T) {
	f := newFixture(t, true)
	f.preparedCert(100)

	cases := []struct {
		name  string
		input SubmitInput
	}{
		{"malformed aes", SubmitInput{AES: strPtr("not-an-aes-number")}},
		{"country outside configured list", SubmitInput{CountryOfOrigin: strPtr("FR")}},
		{"address without participant country", SubmitInput{ExporterAddress: strPtr("1 Main St, Springfield")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.repo.created = nil
			_, err := f.svc.Submit(context.Background(), f.contact(), 100, tc.input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
			if f.repo.created != nil {
				t.Fatal("invalid proposal must not be persisted")
			}
		})
	}
}

func TestSubmitValidatesMergedExpiryWindow(t *testing.T) {
	f := newFixture(t, true)
	cert := f.preparedCert(100)

	// Moving only the issue date breaks the configured expiry window once the
	// proposal is merged with the untouched expiry.
	newIssue := cert.DateOfIssue.AddDate(0, 0, 5)
	_, err := f.svc.Submit(context.Background(), f.contact(), 100, SubmitInput{DateOfIssue: &newIssue})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if f.repo.created != nil {
		t.Fatal("invalid proposal must not be persisted")
	}

	// Moving both dates together keeps the window intact.
	newExpiry := newIssue.AddDate(0, 0, 60)
	result, err := f.svc.Submit(context.Background(), f.contact(), 100, SubmitInput{
		DateOfIssue:  &newIssue,
		DateOfExpiry: &newExpiry,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.NoChange {
		t.Fatal("expected a created request")
	}
}

func pendingRequest(f *fixture, cert *models.Certificate) *models.EditRequest {
	req := &models.EditRequest{
		ID:            uuid.New(),
		CertificateID: cert.ID,
		Certificate:   cert,
		ContactID:     uuid.New(),
		AES:           strPtr("X33333333333333"),
		Status:        enums.EditRequestStatusPending,
		DateRequested: time.Now().Add(-time.Hour),
	}
	f.repo.requests[req.ID] = req
	return req
}

func TestReviewApproveAppliesFields(t *testing.T) {
	f := newFixture(t, true)
	cert := f.preparedCert(100)
	req := pendingRequest(f, cert)

	reviewed, err := f.svc.Review(context.Background(), reviewer(), req.ID, enums.EditRequestStatusApproved)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != enums.EditRequestStatusApproved {
		t.Fatalf("expected approved, got %s", reviewed.Status)
	}
	if reviewed.DateReviewed == nil || reviewed.ReviewedByID == nil {
		t.Fatal("expected review stamps")
	}
	if f.certs.saved == nil || f.certs.saved.AES != "X33333333333333" {
		t.Fatal("expected approved aes to be copied onto the certificate")
	}
	// Certificate edit + request update audit entries.
	if len(f.audit.entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(f.audit.entries))
	}
	if f.notify.reviewed != 1 {
		t.Fatal("expected requester notification")
	}
}

func TestReviewRejectMutatesNothing(t *testing.T) {
	f := newFixture(t, true)
	cert := f.preparedCert(100)
	req := pendingRequest(f, cert)

	reviewed, err := f.svc.Review(context.Background(), reviewer(), req.ID, enums.EditRequestStatusRejected)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != enums.EditRequestStatusRejected {
		t.Fatalf("expected rejected, got %s", reviewed.Status)
	}
	if f.certs.saved != nil {
		t.Fatal("reject must not touch the certificate")
	}
	if cert.AES != "X11111111111111" {
		t.Fatal("certificate aes should be unchanged")
	}
}

func TestReviewTwiceFails(t *testing.T) {
	f := newFixture(t, true)
	cert := f.preparedCert(100)
	req := pendingRequest(f, cert)
	req.Status = enums.EditRequestStatusApproved

	_, err := f.svc.Review(context.Background(), reviewer(), req.ID, enums.EditRequestStatusRejected)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT on re-review, got %v", err)
	}
}

func TestReviewRequiresCapability(t *testing.T) {
	f := newFixture(t, true)
	cert := f.preparedCert(100)
	req := pendingRequest(f, cert)

	_, err := f.svc.Review(context.Background(), f.contact(), req.ID, enums.EditRequestStatusApproved)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestReviewValidatesDecision(t *testing.T) {
	f := newFixture(t, true)
	cert := f.preparedCert(100)
	req := pendingRequest(f, cert)

	_, err := f.svc.Review(context.Background(), reviewer(), req.ID, enums.EditRequestStatusPending)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestCertAsOfRequest(t *testing.T) {
	f := newFixture(t, true)
	cert := f.preparedCert(100)
	req := pendingRequest(f, cert)
	f.audit.snapshot = &models.Certificate{Number: 100, Exporter: "Old Exporter"}

	got, err := f.svc.CertAsOfRequest(context.Background(), reviewer(), req.ID)
	if err != nil {
		t.Fatalf("cert as of request: %v", err)
	}
	if got.Exporter != "Old Exporter" {
		t.Fatalf("expected historical exporter, got %q", got.Exporter)
	}
}

func TestDiffRequestDecimalAndDateComparisons(t *testing.T) {
	issue := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	value := decimal.NewFromFloat(5000)
	cert := &models.Certificate{
		DateOfIssue:  &issue,
		ShippedValue: &value,
	}

	sameIssue := time.Date(2026, 1, 2, 15, 30, 0, 0, time.UTC)
	sameValue := decimal.NewFromFloat(5000.00)
	if diffRequest(cert, SubmitInput{DateOfIssue: &sameIssue, ShippedValue: &sameValue}) != nil {
		t.Fatal("equal dates and amounts must not register as changes")
	}

	newValue := decimal.NewFromFloat(6000)
	req := diffRequest(cert, SubmitInput{ShippedValue: &newValue})
	if req == nil || req.ShippedValue == nil {
		t.Fatal("expected shipped value change to be captured")
	}
}
