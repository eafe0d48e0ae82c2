package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/certtrack-backend/api/middleware"
	"github.com/angelmondragon/certtrack-backend/api/responses"
	"github.com/angelmondragon/certtrack-backend/api/validators"
	"github.com/angelmondragon/certtrack-backend/internal/licensees"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
	"github.com/angelmondragon/certtrack-backend/pkg/logger"
)

type addressView struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
	Country string    `json:"country"`
}

func addressToView(row *models.LicenseeAddress) addressView {
	return addressView{
		ID:      row.ID,
		Name:    row.Name,
		Address: row.Address,
		Country: row.Country,
	}
}

type licenseeView struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Address   string        `json:"address"`
	TaxID     string        `json:"tax_id"`
	IsActive  bool          `json:"is_active"`
	Addresses []addressView `json:"addresses"`
}

type addressRequest struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// LicenseeGet returns a licensee with its address book.
func LicenseeGet(svc licensees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "licensee service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		licensee, err := svc.Get(r.Context(), *user, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := licenseeView{
			ID:        licensee.ID,
			Name:      licensee.Name,
			Address:   licensee.AddressText(),
			TaxID:     licensee.TaxID,
			IsActive:  licensee.IsActive,
			Addresses: make([]addressView, len(licensee.Addresses)),
		}
		for i := range licensee.Addresses {
			view.Addresses[i] = addressToView(&licensee.Addresses[i])
		}
		responses.WriteSuccess(w, view)
	}
}

// LicenseeContacts lists the user accounts associated with a licensee.
func LicenseeContacts(svc licensees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "licensee service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contacts, err := svc.Contacts(r.Context(), *user, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]map[string]any, len(contacts))
		for i, contact := range contacts {
			items[i] = map[string]any{
				"id":    contact.ID,
				"email": contact.Email,
				"name":  contact.DisplayName(),
			}
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// LicenseeAddressCreate adds an address book entry.
func LicenseeAddressCreate(svc licensees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "licensee service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		licenseeID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body addressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.CreateAddress(r.Context(), *user, licenseeID, licensees.AddressInput{
			Name:    body.Name,
			Address: body.Address,
			Country: body.Country,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, addressToView(row))
	}
}

// LicenseeAddressUpdate rewrites an existing address book entry.
func LicenseeAddressUpdate(svc licensees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "licensee service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		addressID, err := validators.ParsePathUUID(chi.URLParam(r, "addressID"), "addressID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body addressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.UpdateAddress(r.Context(), *user, addressID, licensees.AddressInput{
			Name:    body.Name,
			Address: body.Address,
			Country: body.Country,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, addressToView(row))
	}
}

// LicenseeAddressDelete removes an address book entry.
func LicenseeAddressDelete(svc licensees.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "licensee service unavailable"))
			return
		}
		user := middleware.UserFromContext(r.Context())

		addressID, err := validators.ParsePathUUID(chi.URLParam(r, "addressID"), "addressID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteAddress(r.Context(), *user, addressID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
