package records

import (
	"time"

	"github.com/havenlink/havenlink/internal/consent"
)

// Category groups the client record kinds the engine generalizes over.
type Category string

const (
	CategoryMedical        Category = "medical"
	CategoryJustice        Category = "justice"
	CategoryCharacteristic Category = "characteristic"
	CategoryObservation    Category = "observation"
	CategoryActivity       Category = "activity"
)

// ValidCategory reports whether the value is a known category.
func ValidCategory(v string) bool {
	switch Category(v) {
	case CategoryMedical, CategoryJustice, CategoryCharacteristic, CategoryObservation, CategoryActivity:
		return true
	}
	return false
}

// Source states where the information came from.
type Source string

const (
	SourceClientReported Source = "client_reported"
	SourceStaffObserved  Source = "staff_observed"
	SourceDocument       Source = "document"
	SourcePartnerOrg     Source = "partner_org"
	SourceSystem         Source = "system"
)

// ValidSource reports whether the value is a known source.
func ValidSource(v string) bool {
	switch Source(v) {
	case SourceClientReported, SourceStaffObserved, SourceDocument, SourcePartnerOrg, SourceSystem:
		return true
	}
	return false
}

// Status tracks the lifecycle of a record. Records are never deleted, only
// superseded or flagged.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
	StatusFlagged    Status = "flagged"
)

// Record is the generalized client record: medical, justice, characteristic,
// observation and activity entries all share this shape.
type Record struct {
	ID                 int64
	SubjectProfile     int64
	OwningOrgID        int64
	Category           Category
	Visibility         consent.Visibility
	Sensitivity        consent.Sensitivity
	Source             Source
	VerificationStatus string
	Status             Status
	Summary            string
	Details            string
	ContactFingerprint string
	SupersededBy       int64
	CreatedBy          int64
	UpdatedBy          int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Resource projects the record onto the visibility evaluator's input.
func (r Record) Resource() consent.Resource {
	return consent.Resource{
		OwningOrgID: r.OwningOrgID,
		Visibility:  r.Visibility,
		Sensitivity: r.Sensitivity,
	}
}
