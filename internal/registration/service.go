package registration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/internal/access"
	"github.com/angelmondragon/certtrack-backend/internal/auditlog"
	"github.com/angelmondragon/certtrack-backend/pkg/db"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

// maxBatchSize bounds a single registration request.
const maxBatchSize = 1000

type certificatesRepository interface {
	ExistingNumbers(ctx context.Context, numbers []int) ([]int, error)
	BulkCreate(ctx context.Context, tx *gorm.DB, certs []models.Certificate) error
}

type receiptsRepository interface {
	MaxNumber(ctx context.Context) (int, error)
	Create(ctx context.Context, tx *gorm.DB, receipt *models.Receipt) error
}

type licenseesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Licensee, error)
}

type configService interface {
	Get(ctx context.Context) (*models.CertificateConfig, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input describes a batch registration: which licensee buys which numbers,
// and the payment backing the purchase.
type Input struct {
	LicenseeID    uuid.UUID
	ContactID     uuid.UUID
	DateOfSale    time.Time
	Method        enums.RegistrationMethod
	FromNumber    int
	ToNumber      int
	Numbers       []int
	PaymentMethod enums.PaymentMethod
	PaymentAmount decimal.Decimal
}

// Result reports a successful registration.
type Result struct {
	Count         int
	ReceiptID     uuid.UUID
	ReceiptNumber int
}

// Service registers batches of certificates to licensees. The whole batch
// succeeds or fails as one transaction; the unique constraint on
// certificates.number backstops concurrent allocation of the same range.
type Service interface {
	Register(ctx context.Context, user models.User, input Input) (*Result, error)
}

type service struct {
	certs       certificatesRepository
	receipts    receiptsRepository
	licensees   licenseesRepository
	cfg         configService
	audit       auditlog.Service
	tx          txRunner
	numberFloor int
}

// NewService builds the registration service. numberFloor is the configured
// minimum receipt number.
func NewService(certs certificatesRepository, receipts receiptsRepository, licensees licenseesRepository, cfg configService, audit auditlog.Service, tx txRunner, numberFloor int) (Service, error) {
	if certs == nil {
		return nil, fmt.Errorf("certificate repository required")
	}
	if receipts == nil {
		return nil, fmt.Errorf("receipt repository required")
	}
	if licensees == nil {
		return nil, fmt.Errorf("licensee repository required")
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
	if numberFloor < 0 {
		return nil, fmt.Errorf("receipt number floor cannot be negative")
	}
	return &service{
		certs:       certs,
		receipts:    receipts,
		licensees:   licensees,
		cfg:         cfg,
		audit:       audit,
		tx:          tx,
		numberFloor: numberFloor,
	}, nil
}

func (s *service) Register(ctx context.Context, user models.User, input Input) (*Result, error) {
	if !access.Resolve(user).IsAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators may register certificates")
	}

	licensee, contact, err := s.resolveLicenseeAndContact(ctx, input)
	if err != nil {
		return nil, err
	}

	numbers, err := resolveNumbers(input)
	if err != nil {
		return nil, err
	}

	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.DateOfSale.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date_of_sale is required")
	}

	cfg, err := s.cfg.Get(ctx)
	if err != nil {
		return nil, err
	}
	expected := cfg.Price.Mul(decimal.NewFromInt(int64(len(numbers))))
	if !input.PaymentAmount.Equal(expected) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payment amount must equal %s for %d certificates", expected.StringFixed(2), len(numbers)))
	}

	existing, err := s.certs.ExistingNumbers(ctx, numbers)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing numbers")
	}
	if len(existing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "some certificate numbers are already registered").
			WithDetails(existing)
	}

	dateOfSale := dateOnly(input.DateOfSale)
	certs := make([]models.Certificate, len(numbers))
	for i, number := range numbers {
		certs[i] = models.Certificate{
			Number:        number,
			Status:        enums.CertificateStatusAvailable,
			LicenseeID:    &licensee.ID,
			AssignorID:    &user.ID,
			DateOfSale:    &dateOfSale,
			PaymentMethod: input.PaymentMethod,
		}
	}

	displayNames := make([]string, len(certs))
	for i, cert := range certs {
		displayNames[i] = cert.DisplayName()
	}

	maxReceipt, err := s.receipts.MaxNumber(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query max receipt number")
	}
	receiptNumber := maxReceipt + 1
	if receiptNumber <= s.numberFloor {
		receiptNumber = s.numberFloor + 1
	}

	receipt := &models.Receipt{
		Number:           receiptNumber,
		LicenseeName:     licensee.Name,
		LicenseeAddress:  licensee.AddressText(),
		Certificates:     displayNames,
		TotalPaid:        input.PaymentAmount,
		CertificatesSold: len(certs),
		UnitPrice:        cfg.Price,
		PaymentMethod:    input.PaymentMethod,
		Contact:          contact.DisplayName(),
		DateSold:         dateOfSale,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.certs.BulkCreate(ctx, tx, certs); err != nil {
			if db.IsUniqueViolation(err, "idx_certificates_number") {
				return pkgerrors.New(pkgerrors.CodeConflict, "certificate numbers were allocated concurrently, retry the registration")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bulk create certificates")
		}
		if err := s.receipts.Create(ctx, tx, receipt); err != nil {
			if db.IsUniqueViolation(err, "idx_receipts_number") {
				return pkgerrors.New(pkgerrors.CodeConflict, "receipt number was allocated concurrently, retry the registration")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create receipt")
		}
		for i := range certs {
			entry := auditlog.Entry{
				EntityType: auditlog.EntityCertificate,
				EntityID:   certs[i].ID,
				ActorID:    &user.ID,
				Action:     auditlog.ActionRegistered,
				Entity:     certs[i],
			}
			if err := s.audit.Record(ctx, tx, entry); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, tx, auditlog.Entry{
			EntityType: auditlog.EntityReceipt,
			EntityID:   receipt.ID,
			ActorID:    &user.ID,
			Action:     auditlog.ActionCreated,
			Entity:     receipt,
		})
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Count:         len(certs),
		ReceiptID:     receipt.ID,
		ReceiptNumber: receipt.Number,
	}, nil
}

func (s *service) resolveLicenseeAndContact(ctx context.Context, input Input) (*models.Licensee, *models.User, error) {
	if input.LicenseeID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "licensee_id is required")
	}
	if input.ContactID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "contact_id is required")
	}

	licensee, err := s.licensees.FindByID(ctx, input.LicenseeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "licensee not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup licensee")
	}
	if !licensee.IsActive {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "licensee is not active")
	}

	for i := range licensee.Contacts {
		if licensee.Contacts[i].ID == input.ContactID {
			return licensee, &licensee.Contacts[i], nil
		}
	}
	return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "contact is not associated with the selected licensee")
}

func resolveNumbers(input Input) ([]int, error) {
	switch input.Method {
	case enums.RegistrationMethodSequential:
		if input.FromNumber <= 0 || input.ToNumber <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "from and to numbers are required")
		}
		if input.FromNumber > input.ToNumber {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "from number cannot exceed to number")
		}
		count := input.ToNumber - input.FromNumber + 1
		if count > maxBatchSize {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("batch cannot exceed %d certificates", maxBatchSize))
		}
		numbers := make([]int, 0, count)
		for n := input.FromNumber; n <= input.ToNumber; n++ {
			numbers = append(numbers, n)
		}
		return numbers, nil

	case enums.RegistrationMethodList:
		if len(input.Numbers) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one certificate number is required")
		}
		if len(input.Numbers) > maxBatchSize {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("batch cannot exceed %d certificates", maxBatchSize))
		}
		seen := map[int]bool{}
		numbers := make([]int, 0, len(input.Numbers))
		for _, n := range input.Numbers {
			if n <= 0 {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "certificate numbers must be positive")
			}
			if seen[n] {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate certificate number %d", n))
			}
			seen[n] = true
			numbers = append(numbers, n)
		}
		sort.Ints(numbers)
		return numbers, nil

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid registration method")
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
