package access

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
)

// Capabilities is the per-request authorization surface resolved from a
// user's roles. Licensee contacts hold no role and resolve to the zero value
// apart from CanEditCertificates.
type Capabilities struct {
	CanViewAll          bool
	CanEditCertificates bool
	CanReviewEdits      bool
	IsAdmin             bool
}

// Resolve derives capabilities from the user's role set.
func Resolve(user models.User) Capabilities {
	isAdmin := user.HasRole(enums.UserRoleAdmin)
	isAuditor := user.HasRole(enums.UserRoleAuditor)
	isReviewer := user.HasRole(enums.UserRoleReviewer)

	return Capabilities{
		CanViewAll:          isAdmin || isAuditor || isReviewer,
		CanEditCertificates: !isAuditor && !isReviewer,
		CanReviewEdits:      isAdmin || isReviewer,
		IsAdmin:             isAdmin,
	}
}

// ActiveLicenseeIDs returns the IDs of the user's active licensee associations.
func ActiveLicenseeIDs(user models.User) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(user.Licensees))
	for _, licensee := range user.Licensees {
		if licensee.IsActive {
			ids = append(ids, licensee.ID)
		}
	}
	return ids
}

// CanAccessCertificate reports whether the user may read the certificate:
// authority-side roles see everything, contacts see certificates registered to
// one of their active licensees.
func CanAccessCertificate(cert models.Certificate, user models.User) bool {
	caps := Resolve(user)
	if caps.CanViewAll {
		return true
	}
	if cert.LicenseeID == nil {
		return false
	}
	for _, id := range ActiveLicenseeIDs(user) {
		if id == *cert.LicenseeID {
			return true
		}
	}
	return false
}

// CanEditCertificate reports whether the user may mutate the certificate.
// Auditors and reviewers can read but never write.
func CanEditCertificate(cert models.Certificate, user models.User) bool {
	return CanAccessCertificate(cert, user) && Resolve(user).CanEditCertificates
}

// CanAccessLicensee reports whether the user may read the licensee record.
func CanAccessLicensee(licenseeID uuid.UUID, user models.User) bool {
	caps := Resolve(user)
	if caps.CanViewAll {
		return true
	}
	for _, licensee := range user.Licensees {
		if licensee.ID == licenseeID {
			return true
		}
	}
	return false
}
