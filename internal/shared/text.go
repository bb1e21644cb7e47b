package shared

import "golang.org/x/text/cases"

// Fold returns s in Unicode case-folded form for case-insensitive matching.
func Fold(s string) string {
	return cases.Fold().String(s)
}
