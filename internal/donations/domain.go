package donations

import (
	"time"

	"github.com/google/uuid"
)

// Type is what the donor brought in.
type Type string

const (
	TypeBike  Type = "bike"
	TypeParts Type = "parts"
	TypeBoth  Type = "both"
)

// Valid reports whether t is a known donation type.
func (t Type) Valid() bool {
	return t == TypeBike || t == TypeParts || t == TypeBoth
}

// HasBike reports whether the bike section applies.
func (t Type) HasBike() bool { return t == TypeBike || t == TypeBoth }

// HasParts reports whether the parts section applies.
func (t Type) HasParts() bool { return t == TypeParts || t == TypeBoth }

// DonorInput identifies the donor. Donors are upserted by email.
type DonorInput struct {
	Name    string `validate:"required,max=120"`
	Email   string `validate:"required,email"`
	Phone   string `validate:"max=40"`
	Address string `validate:"max=400"`
}

// BikeDetail describes a donated bike.
type BikeDetail struct {
	Brand        string
	Model        string
	Type         string
	Size         string
	Condition    string
	SerialNumber string
	Value        float64 `validate:"gte=0"`
	Notes        string
}

// PartsDetail describes donated parts.
type PartsDetail struct {
	Description   string
	NumberOfParts int     `validate:"gte=0"`
	Value         float64 `validate:"gte=0"`
	Condition     string
}

// Submission is one donor form post.
type Submission struct {
	Donor            DonorInput
	Type             Type
	Notes            string
	ReceiptRequested bool
	TaxDeductible    bool
	Bike             *BikeDetail
	Parts            *PartsDetail
	IdempotencyKey   string
}

// Summary holds the totals stored on the donation row.
type Summary struct {
	TotalBikes int
	TotalValue float64
	TotalParts int
}

// DonatedProgram is the program recorded on donated bike details.
const DonatedProgram = "donated"

// Summarize computes the donation totals. Sections that do not apply to the
// donation type are ignored; a parts section defaults to one part.
func Summarize(s Submission) Summary {
	var sum Summary
	if s.Type.HasBike() && s.Bike != nil {
		sum.TotalBikes = 1
		sum.TotalValue += s.Bike.Value
	}
	if s.Type.HasParts() && s.Parts != nil {
		sum.TotalParts = s.Parts.NumberOfParts
		if sum.TotalParts <= 0 {
			sum.TotalParts = 1
		}
		sum.TotalValue += s.Parts.Value
	}
	return sum
}

// Donation is a stored donation summary.
type Donation struct {
	ID               uuid.UUID
	DonorID          uuid.UUID
	Email            string
	Name             string
	Type             Type
	TotalBikes       int
	TotalValue       float64
	TotalParts       int
	Notes            string
	ReceiptRequested bool
	TaxDeductible    bool
	RecordedBy       uuid.UUID
	CreatedAt        time.Time
}

// Donor is a donors row with donation totals for the donors tab.
type Donor struct {
	ID             uuid.UUID
	Name           string
	Email          string
	Phone          string
	Address        string
	Donations      int
	TotalValue     float64
	LastDonationAt *time.Time
}

// Result identifies the rows written by a submission.
type Result struct {
	DonorID    uuid.UUID
	DonationID uuid.UUID
	Summary    Summary
}

// Receipt is the payload of a queued receipt email.
type Receipt struct {
	DonationID    uuid.UUID `json:"donation_id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Type          Type      `json:"type"`
	TotalValue    float64   `json:"total_value"`
	TaxDeductible bool      `json:"tax_deductible"`
}
