package models

import (
	"strconv"
	"time"
)

// DateLayout is the canonical textual form of a date cell.
const DateLayout = "2006-01-02"

// Kind identifies the type held by a Value.
type Kind int

const (
	// KindMissing marks a cell that was empty or failed type coercion.
	// It is the only missing sentinel used across the module.
	KindMissing Kind = iota
	KindString
	KindInt
	KindFloat
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	default:
		return "missing"
	}
}

// Value is a single typed cell of a CleanTable.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Time  time.Time
}

func NewMissingValue() Value { return Value{Kind: KindMissing} }
func NewIntValue(n int64) Value { return Value{Kind: KindInt, Int: n} }
func NewFloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func NewDateValue(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// NewStringValue returns a string cell; the empty string is missing.
func NewStringValue(s string) Value {
	if s == "" {
		return NewMissingValue()
	}
	return Value{Kind: KindString, Str: s}
}

// IsMissing reports whether v is the missing marker.
func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// Number returns the numeric value of integer and float cells.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}

// String renders the cell the way it is written to CSV. Missing renders as "".
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindDate:
		return v.Time.Format(DateLayout)
	}
	return ""
}

// Interface returns the Go value suitable for database drivers; missing is nil.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindDate:
		return v.Time
	}
	return nil
}

// Equal reports whether two cells hold the same kind and value.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindDate:
		return v.Time.Equal(o.Time)
	}
	return true
}

// Compare orders two cells. Numbers compare numerically across int and float,
// other kinds compare within themselves, and mixed kinds order by Kind.
// Missing sorts after everything else.
func Compare(a, b Value) int {
	if a.IsMissing() || b.IsMissing() {
		switch {
		case a.IsMissing() && b.IsMissing():
			return 0
		case a.IsMissing():
			return 1
		default:
			return -1
		}
	}

	if x, ok := a.Number(); ok {
		if y, ok := b.Number(); ok {
			return cmpOrdered(x, y)
		}
	}

	if a.Kind != b.Kind {
		return cmpOrdered(a.Kind, b.Kind)
	}

	switch a.Kind {
	case KindString:
		return cmpOrdered(a.Str, b.Str)
	case KindDate:
		return a.Time.Compare(b.Time)
	}
	return 0
}

func cmpOrdered[T ~int | ~float64 | ~string](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
