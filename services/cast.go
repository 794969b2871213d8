package services

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"tablenorm/models"
)

// dateLayouts are tried in order when casting to date. The bare year layout
// covers the year headers of the unemployment sheet.
var dateLayouts = []string{
	models.DateLayout,
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006",
}

// castValue converts a cleaned cell to the target type. ok is false when a
// non-empty cell could not be parsed; the returned Value is then missing.
func castValue(s string, to models.CastType) (v models.Value, ok bool) {
	if s == "" {
		return models.NewMissingValue(), true
	}

	switch to {
	case models.CastInteger:
		return parseInteger(s)
	case models.CastFloat:
		return parseFloat(s)
	case models.CastDate:
		return parseDate(s)
	default:
		return models.NewStringValue(s), true
	}
}

func parseInteger(s string) (models.Value, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return models.NewIntValue(n), true
	}

	// accept whole numbers written with a fractional part, e.g. "42.0"
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return models.NewMissingValue(), false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return models.NewMissingValue(), false
	}
	return models.NewIntValue(int64(f)), true
}

func parseFloat(s string) (models.Value, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return models.NewMissingValue(), false
	}
	return models.NewFloatValue(f), true
}

func parseDate(s string) (models.Value, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return models.NewDateValue(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)), true
		}
	}
	return models.NewMissingValue(), false
}

// stripChars removes every rune of chars from s. Bytes that are not valid
// UTF-8 are kept as they are.
func stripChars(s, chars string) string {
	if chars == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, width := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && width == 1) || !strings.ContainsRune(chars, r) {
			b.WriteString(s[i : i+width])
		}
		i += width
	}
	return b.String()
}
