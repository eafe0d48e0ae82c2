package preview

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

func issuedCertificate() *models.Certificate {
	issue := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	expiry := issue.AddDate(0, 0, 60)
	value := decimal.NewFromFloat(98000)
	weight := decimal.NewFromFloat(412.5)
	parcels := 2

	return &models.Certificate{
		ID:              uuid.New(),
		Number:          321,
		AES:             "X20260401000123",
		CountryOfOrigin: "US",
		DateOfIssue:     &issue,
		DateOfExpiry:    &expiry,
		ShippedValue:    &value,
		Exporter:        "Acme Gems",
		ExporterAddress: "1 Main St\nNew York, NY 10001",
		NumberOfParcels: &parcels,
		Consignee:       "Antwerp Diamonds",
		ConsigneeAddr:   "2 Pelikaanstraat\nAntwerp",
		CaratWeight:     &weight,
		HSCode:          &models.HSCode{Value: "7102.31"},
		Status:          enums.CertificateStatusPrepared,
	}
}

func TestRenderProducesPDF(t *testing.T) {
	svc := NewService()

	result, err := svc.Render(context.Background(), issuedCertificate())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result.FileName != "US321.pdf" {
		t.Fatalf("unexpected file name %q", result.FileName)
	}

	raw, err := base64.StdEncoding.DecodeString(result.Base64Content)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if len(raw) < 4 || string(raw[:4]) != "%PDF" {
		t.Fatal("expected a pdf document")
	}
}

func TestRenderRequiresIssuedFields(t *testing.T) {
	svc := NewService()

	_, err := svc.Render(context.Background(), &models.Certificate{Number: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT for unissued certificate, got %v", err)
	}
}

func TestRenderIsDeterministicForSameInput(t *testing.T) {
	svc := NewService()
	cert := issuedCertificate()

	first, err := svc.Render(context.Background(), cert)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := svc.Render(context.Background(), cert)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(first.Base64Content) != len(second.Base64Content) {
		t.Fatal("renders of the same certificate should have identical size")
	}
}
