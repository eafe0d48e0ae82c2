package registration

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

type stubCertsRepo struct {
	existing []int
	created  []models.Certificate
	bulkErr  error
}

func (s *stubCertsRepo) ExistingNumbers(_ context.Context, numbers []int) ([]int, error) {
	var hits []int
	for _, n := range numbers {
		for _, e := range s.existing {
			if n == e {
				hits = append(hits, n)
			}
		}
	}
	return hits, nil
}

func (s *stubCertsRepo) BulkCreate(_ context.Context, _ *gorm.DB, certs []models.Certificate) error {
	if s.bulkErr != nil {
		return s.bulkErr
	}
	s.created = certs
	return nil
}

type stubReceiptsRepo struct {
	maxNumber int
	created   *models.Receipt
}

func (s *stubReceiptsRepo) MaxNumber(context.Context) (int, error) {
	return s.maxNumber, nil
}

func (s *stubReceiptsRepo) Create(_ context.Context, _ *gorm.DB, receipt *models.Receipt) error {
	s.created = receipt
	return nil
}

type stubLicenseesRepo struct {
	licensee *models.Licensee
}

func (s *stubLicenseesRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Licensee, error) {
	if s.licensee == nil || s.licensee.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.licensee, nil
}

type stubConfig struct{}

func (stubConfig) Get(context.Context) (*models.CertificateConfig, error) {
	return &models.CertificateConfig{
		DaysToExpiry: 60,
		Price:        decimal.NewFromFloat(20.00),
		KPCountries:  pq.StringArray{"US"},
	}, nil
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

type fixture struct {
	svc        Service
	certs      *stubCertsRepo
	receipts   *stubReceiptsRepo
	audit      *stubAudit
	licenseeID uuid.UUID
	contactID  uuid.UUID
	admin      models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	licenseeID := uuid.New()
	contactID := uuid.New()

	licensee := &models.Licensee{
		ID:       licenseeID,
		Name:     "Acme Gems",
		Address:  "1 Main St",
		City:     "New York",
		State:    "NY",
		ZipCode:  "10001",
		IsActive: true,
		Contacts: []models.User{{ID: contactID, FirstName: "Pat", LastName: "Jones"}},
	}

	certs := &stubCertsRepo{}
	receipts := &stubReceiptsRepo{maxNumber: 10204}
	audit := &stubAudit{}
	svc, err := NewService(certs, receipts, &stubLicenseesRepo{licensee: licensee}, stubConfig{}, audit, stubTx{}, 10000)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &fixture{
		svc:        svc,
		certs:      certs,
		receipts:   receipts,
		audit:      audit,
		licenseeID: licenseeID,
		contactID:  contactID,
		admin:      models.User{ID: uuid.New(), Roles: pq.StringArray{"admin"}},
	}
}

func (f *fixture) validInput() Input {
	return Input{
		LicenseeID:    f.licenseeID,
		ContactID:     f.contactID,
		DateOfSale:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Method:        enums.RegistrationMethodSequential,
		FromNumber:    500,
		ToNumber:      504,
		PaymentMethod: enums.PaymentMethodCheck,
		PaymentAmount: decimal.NewFromFloat(100.00),
	}
}

func TestRegisterSequentialBatch(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Register(context.Background(), f.admin, f.validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if result.Count != 5 {
		t.Fatalf("expected 5 certificates, got %d", result.Count)
	}
	if len(f.certs.created) != 5 {
		t.Fatalf("expected 5 created rows, got %d", len(f.certs.created))
	}
	first := f.certs.created[0]
	if first.Number != 500 || first.Status != enums.CertificateStatusAvailable {
		t.Fatalf("unexpected first certificate %+v", first)
	}
	if first.AssignorID == nil || *first.AssignorID != f.admin.ID {
		t.Fatal("expected assignor to be the registering admin")
	}

	receipt := f.receipts.created
	if receipt == nil {
		t.Fatal("expected a receipt")
	}
	if receipt.Number != 10205 {
		t.Fatalf("expected receipt number 10205, got %d", receipt.Number)
	}
	if receipt.CertificatesSold != 5 || len(receipt.Certificates) != 5 {
		t.Fatalf("unexpected receipt snapshot %+v", receipt)
	}
	if receipt.Certificates[0] != "US500" {
		t.Fatalf("expected display name US500, got %q", receipt.Certificates[0])
	}
	if receipt.Contact != "Pat Jones" {
		t.Fatalf("expected contact display name, got %q", receipt.Contact)
	}
	if !receipt.UnitPrice.Equal(decimal.NewFromFloat(20.00)) {
		t.Fatalf("unexpected unit price %s", receipt.UnitPrice)
	}

	// 5 certificate snapshots + 1 receipt entry.
	if len(f.audit.entries) != 6 {
		t.Fatalf("expected 6 audit entries, got %d", len(f.audit.entries))
	}
}

func TestRegisterReceiptNumberRespectsFloor(t *testing.T) {
	f := newFixture(t)
	f.receipts.maxNumber = 0

	input := f.validInput()
	if _, err := f.svc.Register(context.Background(), f.admin, input); err != nil {
		t.Fatalf("register: %v", err)
	}
	if f.receipts.created.Number != 10001 {
		t.Fatalf("expected first receipt above the floor (10001), got %d", f.receipts.created.Number)
	}
}

func TestRegisterRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	contact := models.User{ID: uuid.New()}
	_, err := f.svc.Register(context.Background(), contact, f.validInput())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestRegisterValidatesContactAssociation(t *testing.T) {
	f := newFixture(t)

	input := f.validInput()
	input.ContactID = uuid.New()
	_, err := f.svc.Register(context.Background(), f.admin, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for unassociated contact, got %v", err)
	}
}

func TestRegisterValidatesRange(t *testing.T) {
	f := newFixture(t)

	input := f.validInput()
	input.FromNumber = 504
	input.ToNumber = 500
	_, err := f.svc.Register(context.Background(), f.admin, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for inverted range, got %v", err)
	}
}

func TestRegisterRejectsDuplicateListNumbers(t *testing.T) {
	f := newFixture(t)

	input := f.validInput()
	input.Method = enums.RegistrationMethodList
	input.Numbers = []int{500, 501, 500}
	input.PaymentAmount = decimal.NewFromFloat(60.00)
	_, err := f.svc.Register(context.Background(), f.admin, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for duplicates, got %v", err)
	}
}

func TestRegisterValidatesPaymentAmount(t *testing.T) {
	f := newFixture(t)

	input := f.validInput()
	input.PaymentAmount = decimal.NewFromFloat(99.99)
	_, err := f.svc.Register(context.Background(), f.admin, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for wrong payment, got %v", err)
	}
}

func TestRegisterRejectsExistingNumbers(t *testing.T) {
	f := newFixture(t)
	f.certs.existing = []int{502}

	_, err := f.svc.Register(context.Background(), f.admin, f.validInput())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT for existing number, got %v", err)
	}
	if f.receipts.created != nil {
		t.Fatal("expected no receipt when validation fails")
	}
}

// Registration is all-or-nothing: when the bulk insert loses a number race the
// whole batch fails and no receipt survives.
func TestRegisterBatchFailsAtomically(t *testing.T) {
	f := newFixture(t)
	f.certs.bulkErr = gorm.ErrDuplicatedKey

	_, err := f.svc.Register(context.Background(), f.admin, f.validInput())
	if err == nil {
		t.Fatal("expected error from bulk insert")
	}
	if len(f.audit.entries) != 0 {
		t.Fatal("expected no audit entries on failure")
	}
}
