package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/certtrack-backend/api/middleware"
	"github.com/angelmondragon/certtrack-backend/api/responses"
	"github.com/angelmondragon/certtrack-backend/api/validators"
	"github.com/angelmondragon/certtrack-backend/internal/registration"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
	"github.com/angelmondragon/certtrack-backend/pkg/logger"
)

type registerRequest struct {
	LicenseeID    string `json:"licensee_id" validate:"required,uuid"`
	ContactID     string `json:"contact_id" validate:"required,uuid"`
	DateOfSale    string `json:"date_of_sale" validate:"required"`
	Method        string `json:"method" validate:"required"`
	FromNumber    int    `json:"from_number,omitempty"`
	ToNumber      int    `json:"to_number,omitempty"`
	Numbers       []int  `json:"numbers,omitempty"`
	PaymentMethod string `json:"payment_method" validate:"required"`
	PaymentAmount string `json:"payment_amount" validate:"required"`
}

func (body registerRequest) toInput() (registration.Input, error) {
	method, err := enums.ParseRegistrationMethod(body.Method)
	if err != nil {
		return registration.Input{}, pkgerrors.New(pkgerrors.CodeValidation, "method must be sequential or list")
	}
	paymentMethod, err := enums.ParsePaymentMethod(body.PaymentMethod)
	if err != nil {
		return registration.Input{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	dateOfSale, err := time.Parse(dateLayout, body.DateOfSale)
	if err != nil {
		return registration.Input{}, pkgerrors.New(pkgerrors.CodeValidation, "date_of_sale must be a YYYY-MM-DD date")
	}
	amount, err := decimal.NewFromString(body.PaymentAmount)
	if err != nil {
		return registration.Input{}, pkgerrors.New(pkgerrors.CodeValidation, "payment_amount must be a decimal amount")
	}

	return registration.Input{
		LicenseeID:    uuid.MustParse(body.LicenseeID),
		ContactID:     uuid.MustParse(body.ContactID),
		DateOfSale:    dateOfSale,
		Method:        method,
		FromNumber:    body.FromNumber,
		ToNumber:      body.ToNumber,
		Numbers:       body.Numbers,
		PaymentMethod: paymentMethod,
		PaymentAmount: amount,
	}, nil
}

// CertificateRegister sells a batch of certificate numbers to a licensee and
// writes the sale receipt. Admin only.
func CertificateRegister(svc registration.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "registration service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Register(r.Context(), *user, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"count":          result.Count,
			"receipt_id":     result.ReceiptID,
			"receipt_number": result.ReceiptNumber,
		})
	}
}
