package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/certtrack-backend/api/middleware"
	"github.com/angelmondragon/certtrack-backend/api/responses"
	"github.com/angelmondragon/certtrack-backend/api/validators"
	"github.com/angelmondragon/certtrack-backend/internal/receipts"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
	"github.com/angelmondragon/certtrack-backend/pkg/logger"
)

type receiptView struct {
	ID               uuid.UUID `json:"id"`
	Number           int       `json:"number"`
	LicenseeName     string    `json:"licensee_name"`
	LicenseeAddress  string    `json:"licensee_address"`
	Certificates     []string  `json:"certificates"`
	TotalPaid        string    `json:"total_paid"`
	CertificatesSold int       `json:"certificates_sold"`
	UnitPrice        string    `json:"unit_price"`
	PaymentMethod    string    `json:"payment_method"`
	Contact          string    `json:"contact"`
	DateSold         time.Time `json:"date_sold"`
}

// ReceiptGet returns one sale receipt. Admin only.
func ReceiptGet(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipt service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.Get(r.Context(), *user, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receiptView{
			ID:               receipt.ID,
			Number:           receipt.Number,
			LicenseeName:     receipt.LicenseeName,
			LicenseeAddress:  receipt.LicenseeAddress,
			Certificates:     receipt.Certificates,
			TotalPaid:        receipt.TotalPaid.StringFixed(2),
			CertificatesSold: receipt.CertificatesSold,
			UnitPrice:        receipt.UnitPrice.StringFixed(2),
			PaymentMethod:    receipt.PaymentMethod.String(),
			Contact:          receipt.Contact,
			DateSold:         receipt.DateSold,
		})
	}
}
