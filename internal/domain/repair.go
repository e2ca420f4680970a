package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
)

// repairCutoff is the minimum similarity ratio for a categorical correction.
// Below it a value is reported instead of repaired.
const repairCutoff = 0.8

// canonicalDateFormat is the normalized form all accepted dates are written in.
const canonicalDateFormat = "2006-01-02"

// timeFormat is the only accepted sold-at format, 24-hour HH:MM.
const timeFormat = "15:04"

// FieldError is one field-level validation failure on one record. It is a
// value, not a Go error: failing fields are collected in a Report and the row
// is dropped, the batch keeps going.
type FieldError struct {
	Field   string
	Message string
}

// RepairCategory returns value unchanged when it is already a member of
// allowed, the closest allowed value when one scores at least the similarity
// cutoff, or the original value plus a FieldError when nothing is close
// enough. Empty values are an error, never corrected. Exactly one of
// correction or error happens, never both.
func RepairCategory(field, value string, allowed []string) (string, *FieldError) {
	if value == "" {
		return value, &FieldError{
			Field:   field,
			Message: fmt.Sprintf("Categorical value '%s' is missing", field),
		}
	}

	for _, a := range allowed {
		if value == a {
			return value, nil
		}
	}

	if best, ok := closestMatch(value, allowed); ok {
		return best, nil
	}

	return value, &FieldError{
		Field:   field,
		Message: fmt.Sprintf("Could not correct categorical value '%s': %s", field, value),
	}
}

// closestMatch returns the allowed value with the highest similarity ratio to
// value, provided it reaches the cutoff. Ties keep the earliest-listed value.
func closestMatch(value string, allowed []string) (string, bool) {
	chars := strings.Split(value, "")

	var best string
	bestRatio := 0.0
	for _, a := range allowed {
		m := difflib.NewMatcher(strings.Split(a, ""), chars)
		if r := m.Ratio(); r > bestRatio {
			best, bestRatio = a, r
		}
	}

	if bestRatio >= repairCutoff {
		return best, true
	}
	return "", false
}

// NormalizeDate tries each layout in order and returns the first successful
// parse rendered as YYYY-MM-DD. Order matters: ambiguous strings resolve to
// the earliest-listed layout. Failure to match any layout returns the
// original string plus a FieldError.
func NormalizeDate(value string, layouts []string) (string, *FieldError) {
	if value == "" {
		return value, &FieldError{Field: "date", Message: "Date is missing"}
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		return t.Format(canonicalDateFormat), nil
	}

	return value, &FieldError{
		Field:   "date",
		Message: fmt.Sprintf("Could not parse date: %s", value),
	}
}

// NormalizeTime validates a sold-at value against the HH:MM format. Unlike
// dates and categoricals, times are never repaired.
func NormalizeTime(value string) (string, *FieldError) {
	if value == "" {
		return value, &FieldError{Field: "sold_at", Message: "Time is missing"}
	}

	if _, err := time.Parse(timeFormat, value); err != nil {
		return value, &FieldError{
			Field:   "sold_at",
			Message: fmt.Sprintf("Could not parse time: %s", value),
		}
	}
	return value, nil
}
