package enums

import "fmt"

// CertificateStatus tracks where a certificate sits in its lifecycle.
// Available certificates have been registered to a licensee but not yet
// issued; void is terminal alongside delivered.
type CertificateStatus string

const (
	CertificateStatusAvailable CertificateStatus = "available"
	CertificateStatusPrepared  CertificateStatus = "prepared"
	CertificateStatusShipped   CertificateStatus = "shipped"
	CertificateStatusDelivered CertificateStatus = "delivered"
	CertificateStatusVoid      CertificateStatus = "void"
)

var validCertificateStatuses = []CertificateStatus{
	CertificateStatusAvailable,
	CertificateStatusPrepared,
	CertificateStatusShipped,
	CertificateStatusDelivered,
	CertificateStatusVoid,
}

// ModifiableCertificateStatuses are the statuses users may advance or request
// edits against.
var ModifiableCertificateStatuses = []CertificateStatus{
	CertificateStatusPrepared,
	CertificateStatusShipped,
}

// DefaultSearchStatuses is the status filter applied when a search names none.
var DefaultSearchStatuses = []CertificateStatus{
	CertificateStatusAvailable,
	CertificateStatusPrepared,
	CertificateStatusShipped,
}

// DefaultAuditorSearchStatuses is the default filter for auditors, who review
// issued paper rather than available stock.
var DefaultAuditorSearchStatuses = []CertificateStatus{
	CertificateStatusPrepared,
	CertificateStatusShipped,
	CertificateStatusDelivered,
}

// String implements fmt.Stringer.
func (c CertificateStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CertificateStatus.
func (c CertificateStatus) IsValid() bool {
	for _, candidate := range validCertificateStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// Label returns the human-readable form shown in lists and exports.
func (c CertificateStatus) Label() string {
	switch c {
	case CertificateStatusAvailable:
		return "Available"
	case CertificateStatusPrepared:
		return "Prepared"
	case CertificateStatusShipped:
		return "Shipped"
	case CertificateStatusDelivered:
		return "Delivered"
	case CertificateStatusVoid:
		return "Void"
	default:
		return string(c)
	}
}

// IsModifiable reports whether the status allows user-driven updates.
func (c CertificateStatus) IsModifiable() bool {
	for _, candidate := range ModifiableCertificateStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// Next returns the single legal forward transition, when one exists.
func (c CertificateStatus) Next() (CertificateStatus, bool) {
	switch c {
	case CertificateStatusPrepared:
		return CertificateStatusShipped, true
	case CertificateStatusShipped:
		return CertificateStatusDelivered, true
	default:
		return "", false
	}
}

// ParseCertificateStatus converts raw input into a CertificateStatus.
func ParseCertificateStatus(value string) (CertificateStatus, error) {
	for _, candidate := range validCertificateStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid certificate status %q", value)
}
