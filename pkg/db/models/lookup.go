package models

import "github.com/google/uuid"

// HSCode is a harmonized system code selectable on certificates.
type HSCode struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0"`
}

// PortOfExport is a departure port selectable on certificates.
type PortOfExport struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0"`
}

// TableName pluralizes correctly.
func (PortOfExport) TableName() string {
	return "ports_of_export"
}

// VoidReason is a configured justification for voiding a certificate.
type VoidReason struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0"`
}
