package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"tablenorm/models"
	"tablenorm/utils"
)

// Normalizer applies column rules to RawTables and produces CleanTables.
// It holds no per-call state and is safe for concurrent use.
type Normalizer struct {
	logger   *utils.Logger
	validate *validator.Validate
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{
		logger:   logger,
		validate: validator.New(),
	}
}

// columnPlan is the resolved rule for one source column.
type columnPlan struct {
	source string
	name   string
	rule   models.ColumnRule
}

// Normalize cleans raw according to rules. See NormalizeWithReport.
func (n *Normalizer) Normalize(raw *models.RawTable, rules models.RuleSet) (*models.CleanTable, error) {
	clean, _, err := n.NormalizeWithReport(raw, rules)
	return clean, err
}

// NormalizeWithReport cleans raw according to rules and reports what was
// dropped or could not be parsed.
//
// Rules are validated before any row is touched; a bad cast type or a rename
// that produces a duplicate or empty column name fails with an error wrapping
// models.ErrConfig. Collisions are checked on the final column names, so a
// rename onto an existing column is accepted when that column is itself
// renamed away. Rules for columns absent from raw are ignored. A cell that
// fails to cast becomes the missing marker and never aborts the run.
func (n *Normalizer) NormalizeWithReport(raw *models.RawTable, rules models.RuleSet) (*models.CleanTable, *models.NormalizeReport, error) {
	if raw == nil || len(raw.Headers) == 0 {
		return nil, nil, models.ErrEmptyTable
	}

	plan, err := n.plan(raw, rules)
	if err != nil {
		return nil, nil, err
	}

	columns := make([]string, len(plan))
	for i, p := range plan {
		columns[i] = p.name
	}

	clean := models.NewCleanTable(raw.Name, columns)
	report := &models.NormalizeReport{
		Table:        raw.Name,
		RowsIn:       len(raw.Rows),
		CastFailures: make(map[string]int),
	}

	for _, row := range raw.Rows {
		cells := make([]models.Value, len(plan))
		keep := true

		for i, p := range plan {
			v, ok := applyRule(row[p.source], p.rule)
			if !ok {
				report.CastFailures[p.name]++
			}
			if v.IsMissing() {
				report.CellsMissing++
				if p.rule.DropIfEmpty {
					keep = false
				}
			}
			cells[i] = v
		}

		if keep {
			clean.Rows = append(clean.Rows, cells)
		}
	}

	report.RowsOut = len(clean.Rows)

	n.logger.Info("[normalizer] %s: cleaned %d → %d rows (dropped %d, %d missing cells)",
		raw.Name, report.RowsIn, report.RowsOut, report.RowsDropped(), report.CellsMissing)
	for col, count := range report.CastFailures {
		n.logger.Debug("[normalizer] %s: %d cells in %q failed to cast", raw.Name, count, col)
	}

	return clean, report, nil
}

// applyRule runs trim, strip and cast on one cell.
func applyRule(cell string, rule models.ColumnRule) (models.Value, bool) {
	if rule.TrimWhitespace {
		cell = strings.TrimSpace(cell)
	}
	cell = stripChars(cell, rule.StripChars)
	return castValue(cell, rule.CastTo)
}

// plan validates rules against the table header and resolves the output
// column for every source column.
func (n *Normalizer) plan(raw *models.RawTable, rules models.RuleSet) ([]columnPlan, error) {
	present := make(map[string]struct{}, len(raw.Headers))
	for _, h := range raw.Headers {
		present[h] = struct{}{}
	}

	// Validate in a stable order so the reported error does not depend on
	// map iteration.
	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, col := range keys {
		if _, ok := present[col]; !ok {
			n.logger.Debug("[normalizer] %s: ignoring rule for unknown column %q", raw.Name, col)
			continue
		}
		rule := rules[col]
		if err := n.validate.Struct(rule); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				return nil, &models.RuleError{
					Column: col,
					Reason: fmt.Sprintf("unsupported cast type %q", rule.CastTo),
				}
			}
			return nil, fmt.Errorf("%w: column %q: %v", models.ErrConfig, col, err)
		}
	}

	plan := make([]columnPlan, len(raw.Headers))
	owner := make(map[string]string, len(raw.Headers))

	for i, h := range raw.Headers {
		rule := rules[h]
		name := h
		if rule.RenameTo != "" {
			name = rule.RenameTo
		}

		if strings.TrimSpace(name) == "" {
			return nil, &models.RuleError{Column: h, Reason: "column name is empty"}
		}
		if prev, dup := owner[name]; dup {
			return nil, &models.RuleError{
				Column: h,
				Reason: fmt.Sprintf("output column %q is already produced by %q", name, prev),
			}
		}
		owner[name] = h

		plan[i] = columnPlan{source: h, name: name, rule: rule}
	}

	return plan, nil
}
