package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Licensee is an entity authorized by the licensing authority to request and
// hold certificates for the export of regulated goods.
type Licensee struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name     string    `gorm:"column:name;not null"`
	Address  string    `gorm:"column:address;not null"`
	Address2 string    `gorm:"column:address2"`
	City     string    `gorm:"column:city;not null"`
	State    string    `gorm:"column:state;not null"`
	ZipCode  string    `gorm:"column:zip_code;not null"`
	// TaxID format: ##-#######
	TaxID     string            `gorm:"column:tax_id;not null"`
	IsActive  bool              `gorm:"column:is_active;not null;default:true"`
	Addresses []LicenseeAddress `gorm:"foreignKey:LicenseeID"`
	Contacts  []User            `gorm:"many2many:licensee_contacts"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// AddressText composes the address fields into the text block printed on
// receipts and pre-populated into certificate exporter fields.
func (l Licensee) AddressText() string {
	address := l.Address
	if l.Address2 != "" {
		address += "\n" + l.Address2
	}
	address += fmt.Sprintf("\n%s, %s %s", l.City, l.State, l.ZipCode)
	address += "\nUnited States of America"
	return address
}

// LicenseeAddress is an address book entry used by licensee contacts when
// completing certificates.
type LicenseeAddress struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LicenseeID uuid.UUID `gorm:"column:licensee_id;type:uuid;not null;uniqueIndex:idx_licensee_address_name"`
	Name       string    `gorm:"column:name;not null;uniqueIndex:idx_licensee_address_name"`
	Address    string    `gorm:"column:address;not null"`
	// Country is an ISO 3166-1 alpha-2 code from the configured allow-list.
	Country   string    `gorm:"column:country;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
