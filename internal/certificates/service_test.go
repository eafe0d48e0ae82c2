package certificates

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/internal/auditlog"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

type stubCertRepo struct {
	certs       map[int]*models.Certificate
	maxNumber   int
	saved       []*models.Certificate
	voidReasons map[uuid.UUID]*models.VoidReason
	searchOpts  *searchQuery
	searchRows  []models.Certificate
}

func newStubCertRepo() *stubCertRepo {
	return &stubCertRepo{
		certs:       map[int]*models.Certificate{},
		voidReasons: map[uuid.UUID]*models.VoidReason{},
	}
}

func (s *stubCertRepo) FindByNumber(_ context.Context, number int) (*models.Certificate, error) {
	cert, ok := s.certs[number]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *cert
	return &copied, nil
}

func (s *stubCertRepo) MaxNumber(context.Context) (int, error) {
	return s.maxNumber, nil
}

func (s *stubCertRepo) Save(_ context.Context, _ *gorm.DB, cert *models.Certificate) error {
	s.saved = append(s.saved, cert)
	s.certs[cert.Number] = cert
	return nil
}

func (s *stubCertRepo) Search(_ context.Context, opts searchQuery) ([]models.Certificate, int64, error) {
	s.searchOpts = &opts
	return s.searchRows, int64(len(s.searchRows)), nil
}

func (s *stubCertRepo) FindVoidReason(_ context.Context, id uuid.UUID) (*models.VoidReason, error) {
	reason, ok := s.voidReasons[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return reason, nil
}

type stubConfigService struct {
	cfg *models.CertificateConfig
}

func (s *stubConfigService) Get(context.Context) (*models.CertificateConfig, error) {
	return s.cfg, nil
}

type stubAudit struct {
	entries []auditlog.Entry
}

func (s *stubAudit) Record(_ context.Context, _ *gorm.DB, entry auditlog.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAudit) AsOf(context.Context, string, uuid.UUID, time.Time, any) error {
	return nil
}

func (s *stubAudit) History(context.Context, string, uuid.UUID, int) ([]models.ChangeLog, error) {
	return nil, nil
}

type stubTx struct{}

func (stubTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func testCertConfig() *models.CertificateConfig {
	return &models.CertificateConfig{
		ID:           models.CertificateConfigID,
		DaysToExpiry: 60,
		Price:        decimal.NewFromFloat(20.00),
		KPCountries:  pq.StringArray{"US", "CA"},
	}
}

func newTestService(repo *stubCertRepo) (Service, *stubAudit) {
	audit := &stubAudit{}
	svc, err := NewService(repo, &stubConfigService{cfg: testCertConfig()}, audit, stubTx{})
	if err != nil {
		panic(err)
	}
	return svc, audit
}

func adminUser() models.User {
	return models.User{ID: uuid.New(), Roles: pq.StringArray{"admin"}}
}

func contactUser(licenseeID uuid.UUID) models.User {
	return models.User{
		ID:        uuid.New(),
		Licensees: []models.Licensee{{ID: licenseeID, IsActive: true}},
	}
}

func availableCert(number int, licenseeID uuid.UUID) *models.Certificate {
	return &models.Certificate{
		ID:         uuid.New(),
		Number:     number,
		Status:     enums.CertificateStatusAvailable,
		LicenseeID: &licenseeID,
	}
}

func validIssueInput() IssueInput {
	issue := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	return IssueInput{
		AES:              "X12345678901234",
		CountryOfOrigin:  "US",
		DateOfIssue:      issue,
		DateOfExpiry:     issue.AddDate(0, 0, 60),
		ShippedValue:     decimal.NewFromInt(5000),
		Exporter:         "Acme Gems",
		ExporterAddress:  "1 Main St\nNew York, NY 10001\nUnited States of America",
		NumberOfParcels:  2,
		Consignee:        "Maple Imports",
		ConsigneeAddress: "9 Bay St\nToronto ON\nCanada",
		CaratWeight:      decimal.NewFromFloat(101.5),
		HarmonizedCodeID: uuid.New(),
		PortOfExportID:   uuid.New(),
		Attested:         true,
	}
}

func TestNextAvailableNumber(t *testing.T) {
	repo := newStubCertRepo()
	svc, _ := newTestService(repo)

	n, err := svc.NextAvailableNumber(context.Background())
	if err != nil {
		t.Fatalf("next available number: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 for empty table, got %d", n)
	}

	repo.maxNumber = 1204
	n, _ = svc.NextAvailableNumber(context.Background())
	if n != 1205 {
		t.Fatalf("expected 1205, got %d", n)
	}
}

func TestIssueHappyPath(t *testing.T) {
	licenseeID := uuid.New()
	repo := newStubCertRepo()
	repo.certs[100] = availableCert(100, licenseeID)
	svc, audit := newTestService(repo)

	cert, err := svc.Issue(context.Background(), contactUser(licenseeID), 100, validIssueInput())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if cert.Status != enums.CertificateStatusPrepared {
		t.Fatalf("expected prepared, got %s", cert.Status)
	}
	if !cert.Attested {
		t.Fatal("expected attested to be set")
	}
	if cert.DateOfExpiry == nil || !cert.DateOfExpiry.Equal(cert.DateOfIssue.AddDate(0, 0, 60)) {
		t.Fatal("expected expiry exactly 60 days after issue")
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != auditlog.ActionIssued {
		t.Fatalf("expected one issued audit entry, got %+v", audit.entries)
	}
}

func TestIssueRejectsNonAvailable(t *testing.T) {
	licenseeID := uuid.New()
	repo := newStubCertRepo()
	cert := availableCert(100, licenseeID)
	cert.Status = enums.CertificateStatusPrepared
	repo.certs[100] = cert
	svc, _ := newTestService(repo)

	_, err := svc.Issue(context.Background(), adminUser(), 100, validIssueInput())
	if err == nil {
		t.Fatal("expected already-issued error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestIssueValidation(t *testing.T) {
	licenseeID := uuid.New()

	cases := []struct {
		name   string
		mutate func(*IssueInput)
	}{
		{"not attested", func(in *IssueInput) { in.Attested = false }},
		{"bad aes", func(in *IssueInput) { in.AES = "X123" }},
		{"wrong expiry", func(in *IssueInput) { in.DateOfExpiry = in.DateOfIssue.AddDate(0, 0, 59) }},
		{"zero shipped value", func(in *IssueInput) { in.ShippedValue = decimal.Zero }},
		{"zero carat weight", func(in *IssueInput) { in.CaratWeight = decimal.Zero }},
		{"country not allowed", func(in *IssueInput) { in.CountryOfOrigin = "FR" }},
		{"address missing country", func(in *IssueInput) { in.ExporterAddress = "1 Main St, Springfield" }},
		{"missing parcels", func(in *IssueInput) { in.NumberOfParcels = 0 }},
		{"missing hs code", func(in *IssueInput) { in.HarmonizedCodeID = uuid.Nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newStubCertRepo()
			repo.certs[100] = availableCert(100, licenseeID)
			svc, _ := newTestService(repo)

			input := validIssueInput()
			tc.mutate(&input)

			_, err := svc.Issue(context.Background(), adminUser(), 100, input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}

func TestIssueAcceptsMixedOrigin(t *testing.T) {
	licenseeID := uuid.New()
	repo := newStubCertRepo()
	repo.certs[100] = availableCert(100, licenseeID)
	svc, _ := newTestService(repo)

	input := validIssueInput()
	input.CountryOfOrigin = "**"
	if _, err := svc.Issue(context.Background(), adminUser(), 100, input); err != nil {
		t.Fatalf("expected mixed origin to be accepted, got %v", err)
	}
}

func TestIssueDeniedForAuditor(t *testing.T) {
	licenseeID := uuid.New()
	repo := newStubCertRepo()
	repo.certs[100] = availableCert(100, licenseeID)
	svc, _ := newTestService(repo)

	auditor := models.User{ID: uuid.New(), Roles: pq.StringArray{"auditor"}}
	_, err := svc.Issue(context.Background(), auditor, 100, validIssueInput())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for auditor, got %v", err)
	}
}

func TestUpdateStatusAdvancesExactlyOneStep(t *testing.T) {
	licenseeID := uuid.New()
	issue := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	repo := newStubCertRepo()
	cert := availableCert(100, licenseeID)
	cert.Status = enums.CertificateStatusPrepared
	cert.DateOfIssue = &issue
	repo.certs[100] = cert
	svc, audit := newTestService(repo)

	shipDate := issue.AddDate(0, 0, 3)
	updated, err := svc.UpdateStatus(context.Background(), adminUser(), 100, StatusUpdateInput{
		NextStatus: enums.CertificateStatusShipped,
		Date:       shipDate,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != enums.CertificateStatusShipped {
		t.Fatalf("expected shipped, got %s", updated.Status)
	}
	if updated.DateOfShipment == nil || !updated.DateOfShipment.Equal(shipDate) {
		t.Fatal("expected date_of_shipment to be stamped")
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != auditlog.ActionStatusUpdate {
		t.Fatal("expected status update audit entry")
	}
}

func TestUpdateStatusRejectsStaleTransition(t *testing.T) {
	licenseeID := uuid.New()
	repo := newStubCertRepo()
	cert := availableCert(100, licenseeID)
	cert.Status = enums.CertificateStatusPrepared
	repo.certs[100] = cert
	svc, _ := newTestService(repo)

	// Submitting delivered against a prepared certificate is a stale form.
	_, err := svc.UpdateStatus(context.Background(), adminUser(), 100, StatusUpdateInput{
		NextStatus: enums.CertificateStatusDelivered,
		Date:       time.Now(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestUpdateStatusEnforcesDateOrdering(t *testing.T) {
	licenseeID := uuid.New()
	issue := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	repo := newStubCertRepo()
	cert := availableCert(100, licenseeID)
	cert.Status = enums.CertificateStatusPrepared
	cert.DateOfIssue = &issue
	repo.certs[100] = cert
	svc, _ := newTestService(repo)

	_, err := svc.UpdateStatus(context.Background(), adminUser(), 100, StatusUpdateInput{
		NextStatus: enums.CertificateStatusShipped,
		Date:       issue.AddDate(0, 0, -1),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for shipment before issue, got %v", err)
	}
}

func TestUpdateStatusRejectsTerminalStates(t *testing.T) {
	licenseeID := uuid.New()
	repo := newStubCertRepo()
	cert := availableCert(100, licenseeID)
	cert.Status = enums.CertificateStatusDelivered
	repo.certs[100] = cert
	svc, _ := newTestService(repo)

	_, err := svc.UpdateStatus(context.Background(), adminUser(), 100, StatusUpdateInput{
		NextStatus: enums.CertificateStatusDelivered,
		Date:       time.Now(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT for delivered certificate, got %v", err)
	}
}

func TestVoidWithConfiguredReason(t *testing.T) {
	licenseeID := uuid.New()
	reasonID := uuid.New()

	repo := newStubCertRepo()
	cert := availableCert(100, licenseeID)
	cert.Status = enums.CertificateStatusPrepared
	repo.certs[100] = cert
	repo.voidReasons[reasonID] = &models.VoidReason{ID: reasonID, Value: "Printing error"}
	svc, audit := newTestService(repo)

	result, err := svc.Void(context.Background(), adminUser(), 100, VoidInput{ReasonID: &reasonID})
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if result.AlreadyVoid {
		t.Fatal("did not expect already-void warning")
	}
	voided := result.Certificate
	if !voided.Void || voided.Status != enums.CertificateStatusVoid {
		t.Fatalf("expected voided certificate, got %+v", voided)
	}
	if voided.Notes != "Printing error" {
		t.Fatalf("expected notes to default to reason, got %q", voided.Notes)
	}
	if voided.DateVoided == nil {
		t.Fatal("expected date_voided to be stamped")
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != auditlog.ActionVoided {
		t.Fatal("expected voided audit entry")
	}
}

func TestVoidOtherRequiresNotes(t *testing.T) {
	licenseeID := uuid.New()
	repo := newStubCertRepo()
	cert := availableCert(100, licenseeID)
	cert.Status = enums.CertificateStatusPrepared
	repo.certs[100] = cert
	svc, _ := newTestService(repo)

	_, err := svc.Void(context.Background(), adminUser(), 100, VoidInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR without notes, got %v", err)
	}
}

func TestVoidDeliveredRejected(t *testing.T) {
	licenseeID := uuid.New()
	repo := newStubCertRepo()
	cert := availableCert(100, licenseeID)
	cert.Status = enums.CertificateStatusDelivered
	repo.certs[100] = cert
	svc, _ := newTestService(repo)

	_, err := svc.Void(context.Background(), adminUser(), 100, VoidInput{Notes: "late"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT for delivered certificate, got %v", err)
	}
}

func TestVoidAlreadyVoidIsNoOp(t *testing.T) {
	licenseeID := uuid.New()
	repo := newStubCertRepo()
	cert := availableCert(100, licenseeID)
	cert.Status = enums.CertificateStatusVoid
	cert.Void = true
	repo.certs[100] = cert
	svc, audit := newTestService(repo)

	result, err := svc.Void(context.Background(), adminUser(), 100, VoidInput{Notes: "again"})
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if !result.AlreadyVoid {
		t.Fatal("expected already-void warning")
	}
	if len(repo.saved) != 0 || len(audit.entries) != 0 {
		t.Fatal("expected no mutation for already-void certificate")
	}
}

func TestSearchDefaultStatusFilters(t *testing.T) {
	repo := newStubCertRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Search(ctx, adminUser(), SearchParams{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := repo.searchOpts.statuses; len(got) != 3 || got[0] != enums.CertificateStatusAvailable {
		t.Fatalf("unexpected default statuses %v", got)
	}

	auditor := models.User{ID: uuid.New(), Roles: pq.StringArray{"auditor"}}
	if _, err := svc.Search(ctx, auditor, SearchParams{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := repo.searchOpts.statuses; len(got) != 3 || got[0] != enums.CertificateStatusPrepared || got[2] != enums.CertificateStatusDelivered {
		t.Fatalf("unexpected auditor default statuses %v", got)
	}
}

func TestSearchVoidOnlySkipsDefaultStatuses(t *testing.T) {
	repo := newStubCertRepo()
	svc, _ := newTestService(repo)

	if _, err := svc.Search(context.Background(), adminUser(), SearchParams{VoidOnly: true}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if !repo.searchOpts.includeVoidOnly {
		t.Fatal("expected void-only filter to reach the repository")
	}
	if len(repo.searchOpts.statuses) != 0 {
		t.Fatalf("void-only search must not inject default statuses, got %v", repo.searchOpts.statuses)
	}

	// An explicit status filter still applies alongside it.
	if _, err := svc.Search(context.Background(), adminUser(), SearchParams{
		VoidOnly: true,
		Statuses: []enums.CertificateStatus{enums.CertificateStatusVoid},
	}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := repo.searchOpts.statuses; len(got) != 1 || got[0] != enums.CertificateStatusVoid {
		t.Fatalf("unexpected statuses %v", got)
	}
}

func TestSearchScopesContactsToTheirLicensees(t *testing.T) {
	licenseeID := uuid.New()
	repo := newStubCertRepo()
	svc, _ := newTestService(repo)

	if _, err := svc.Search(context.Background(), contactUser(licenseeID), SearchParams{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(repo.searchOpts.licenseeScope) != 1 || repo.searchOpts.licenseeScope[0] != licenseeID {
		t.Fatalf("expected contact scope %v, got %v", licenseeID, repo.searchOpts.licenseeScope)
	}

	// A contact with no active licensees sees an empty page without a query.
	repo.searchOpts = nil
	orphan := models.User{ID: uuid.New()}
	result, err := svc.Search(context.Background(), orphan, SearchParams{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Items) != 0 || repo.searchOpts != nil {
		t.Fatal("expected empty result without hitting the repository")
	}
}
