package inventory

import (
	"strings"

	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// MatchBikes keeps the bikes where any searchable field contains term,
// ignoring case. A blank term matches everything.
func MatchBikes(bikes []Bike, term string) []Bike {
	needle := shared.Fold(strings.TrimSpace(term))
	if needle == "" {
		return bikes
	}
	out := make([]Bike, 0, len(bikes))
	for _, b := range bikes {
		fields := []string{b.SerialNumber, b.Brand, b.Model, b.Type, b.Size, string(b.Status), b.Program, b.DonatedTo, b.Notes}
		for _, field := range fields {
			if strings.Contains(shared.Fold(field), needle) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// Only is a dashboard checkbox post-filter.
type Only string

const (
	OnlyInStock Only = "in-stock"
	OnlyTrashed Only = "trashed"
	OnlyEarned  Only = "earned"
)

// ParseOnly drops unknown values.
func ParseOnly(values []string) []Only {
	var out []Only
	for _, v := range values {
		switch o := Only(v); o {
		case OnlyInStock, OnlyTrashed, OnlyEarned:
			out = append(out, o)
		}
	}
	return out
}

func (o Only) status() Status {
	switch o {
	case OnlyInStock:
		return StatusInStock
	case OnlyTrashed:
		return StatusTrashed
	default:
		return StatusEarned
	}
}

// ApplyOnly runs each checked filter in turn over the rows.
func ApplyOnly(bikes []Bike, only []Only) []Bike {
	for _, o := range only {
		want := o.status()
		kept := bikes[:0:0]
		for _, b := range bikes {
			if b.Status == want {
				kept = append(kept, b)
			}
		}
		bikes = kept
	}
	return bikes
}
