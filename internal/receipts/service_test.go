package receipts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

type stubRepo struct {
	receipt *models.Receipt
}

func (s *stubRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Receipt, error) {
	if s.receipt == nil || s.receipt.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.receipt, nil
}

func TestGetRequiresAdmin(t *testing.T) {
	receipt := &models.Receipt{ID: uuid.New(), Number: 10205}
	svc, err := NewService(&stubRepo{receipt: receipt})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	contact := models.User{ID: uuid.New()}
	_, err = svc.Get(context.Background(), contact, receipt.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for non-admin, got %v", err)
	}

	auditor := models.User{ID: uuid.New(), Roles: pq.StringArray{"auditor"}}
	_, err = svc.Get(context.Background(), auditor, receipt.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected FORBIDDEN for auditor, got %v", err)
	}
}

func TestGetReturnsReceiptForAdmin(t *testing.T) {
	receipt := &models.Receipt{ID: uuid.New(), Number: 10205}
	svc, err := NewService(&stubRepo{receipt: receipt})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	admin := models.User{ID: uuid.New(), Roles: pq.StringArray{"admin"}}
	got, err := svc.Get(context.Background(), admin, receipt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Number != 10205 {
		t.Fatalf("unexpected receipt %+v", got)
	}
}

func TestGetNotFound(t *testing.T) {
	svc, err := NewService(&stubRepo{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	admin := models.User{ID: uuid.New(), Roles: pq.StringArray{"admin"}}
	_, err = svc.Get(context.Background(), admin, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
