package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
)

// Status is the lifecycle state of a bike.
type Status string

const (
	StatusInStock Status = "In stock"
	StatusDonated Status = "Donated"
	StatusForSale Status = "For sale"
	StatusEarned  Status = "Earned"
	StatusTrashed Status = "Trashed"
	StatusStrip   Status = "Strip"
)

// Statuses lists every bike status in display order.
func Statuses() []Status {
	return []Status{StatusInStock, StatusDonated, StatusForSale, StatusEarned, StatusTrashed, StatusStrip}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsOut reports whether the bike has left the shop.
func (s Status) IsOut() bool {
	return s == StatusDonated || s == StatusForSale || s == StatusEarned
}

// ErrStaleGeneration is returned when a newer dashboard fetch has started.
var ErrStaleGeneration = errors.New("inventory: stale fetch generation")

// Bike is a row of the bikes table.
type Bike struct {
	ID              uuid.UUID `json:"id"`
	SerialNumber    string    `json:"serial_number"`
	Brand           string    `json:"brand"`
	Model           string    `json:"model"`
	Type            string    `json:"type"`
	Size            string    `json:"size"`
	Value           float64   `json:"value"`
	Program         string    `json:"program"`
	Condition       string    `json:"condition"`
	Status          Status    `json:"status"`
	DonatedTo       string    `json:"donated_to"`
	Notes           string    `json:"notes"`
	ComponentSerial string    `json:"component_serial"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Resource returns the permission resource guarding writes to the bike.
// Stripped bikes belong to the shared strip pile.
func (b Bike) Resource() rbac.Resource {
	if b.Status == StatusStrip {
		return rbac.ResourceStripBikes
	}
	return rbac.Program(b.Program).Resource()
}

// Filters narrows GetFilteredBikes. Zero values mean no filter.
type Filters struct {
	Status      Status
	Type        string
	MinValue    *float64
	MaxValue    *float64
	StatusNotIn []Status
}

// Counts are the dashboard metrics. Earned bikes count in both Out and Earned.
type Counts struct {
	OnHand  int `json:"onHand"`
	Out     int `json:"out"`
	Earned  int `json:"earned"`
	Trashed int `json:"trashed"`
	Strip   int `json:"strip"`
	Total   int `json:"total"`
}

// CountBikes classifies bikes by status.
func CountBikes(bikes []Bike) Counts {
	c := Counts{Total: len(bikes)}
	for _, b := range bikes {
		switch b.Status {
		case StatusInStock:
			c.OnHand++
		case StatusDonated, StatusForSale, StatusEarned:
			c.Out++
			if b.Status == StatusEarned {
				c.Earned++
			}
		case StatusTrashed:
			c.Trashed++
		case StatusStrip:
			c.Strip++
		}
	}
	return c
}

// BikeInput is the create/edit form.
type BikeInput struct {
	SerialNumber    string  `validate:"max=64"`
	Brand           string  `validate:"required,max=80"`
	Model           string  `validate:"max=80"`
	Type            string  `validate:"max=40"`
	Size            string  `validate:"max=20"`
	Value           float64 `validate:"gte=0"`
	Program         string
	Condition       string `validate:"max=40"`
	Status          Status `validate:"required"`
	DonatedTo       string `validate:"max=120"`
	Notes           string `validate:"max=4000"`
	ComponentSerial string `validate:"max=64"`
}

func (in BikeInput) apply(b *Bike) {
	b.SerialNumber = in.SerialNumber
	b.Brand = in.Brand
	b.Model = in.Model
	b.Type = in.Type
	b.Size = in.Size
	b.Value = in.Value
	b.Program = in.Program
	b.Condition = in.Condition
	b.Status = in.Status
	b.DonatedTo = in.DonatedTo
	b.Notes = in.Notes
	b.ComponentSerial = in.ComponentSerial
}

// Lookups feed the bike form selects.
type Lookups struct {
	Brands     []string
	Models     []string
	Recipients []string
}
