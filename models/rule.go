package models

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a rule set that cannot be applied. It is returned before
	// any row is processed.
	ErrConfig = errors.New("invalid rule configuration")
	// ErrEmptyTable is returned for a table without a header row.
	ErrEmptyTable = errors.New("table has no header")
	// ErrUnknownColumn is returned by table operations naming an absent column.
	ErrUnknownColumn = errors.New("unknown column")
)

// CastType names the type a column is coerced to.
type CastType string

const (
	CastString  CastType = "string"
	CastInteger CastType = "integer"
	CastFloat   CastType = "float"
	CastDate    CastType = "date"
)

// ColumnRule is the declarative cleaning instruction for one column.
// Steps run in the order rename, trim, strip, cast, drop-if-empty.
type ColumnRule struct {
	RenameTo       string   `yaml:"rename_to" json:"rename_to,omitempty"`
	TrimWhitespace bool     `yaml:"trim_whitespace" json:"trim_whitespace,omitempty"`
	StripChars     string   `yaml:"strip_chars" json:"strip_chars,omitempty"`
	CastTo         CastType `yaml:"cast_to" json:"cast_to,omitempty" validate:"omitempty,oneof=string integer float date"`
	DropIfEmpty    bool     `yaml:"drop_if_empty" json:"drop_if_empty,omitempty"`
}

// RuleSet maps source column names to their rules.
type RuleSet map[string]ColumnRule

// RuleError describes why a rule set was rejected. It wraps ErrConfig.
type RuleError struct {
	Column string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: column %q: %s", ErrConfig, e.Column, e.Reason)
}

func (e *RuleError) Unwrap() error { return ErrConfig }

// NormalizeReport counts what happened to a table during normalization.
type NormalizeReport struct {
	Table        string
	RowsIn       int
	RowsOut      int
	CellsMissing int
	// CastFailures counts non-empty cells per output column that failed to parse.
	CastFailures map[string]int
}

// RowsDropped is the number of rows removed by drop-if-empty rules.
func (r *NormalizeReport) RowsDropped() int { return r.RowsIn - r.RowsOut }
