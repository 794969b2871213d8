package services

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/montanaflynn/stats"

	"tablenorm/models"
	"tablenorm/utils"
)

// SummaryService computes and prints an overview of a cleaned table.
type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

// Generate counts missing cells per column, records each column's dominant
// kind and computes min/mean/max over numeric columns.
func (s *SummaryService) Generate(t *models.CleanTable) *models.TableSummary {
	summary := &models.TableSummary{
		Name:         t.Name,
		RowCount:     len(t.Rows),
		ColumnCount:  len(t.Columns),
		ColumnKinds:  make(map[string]models.Kind, len(t.Columns)),
		MissingByCol: make(map[string]int, len(t.Columns)),
	}

	for j, col := range t.Columns {
		kinds := make(map[models.Kind]int)
		var numbers []float64

		for _, row := range t.Rows {
			v := row[j]
			if v.IsMissing() {
				summary.MissingByCol[col]++
				continue
			}
			kinds[v.Kind]++
			if f, ok := v.Number(); ok {
				numbers = append(numbers, f)
			}
		}

		summary.ColumnKinds[col] = dominantKind(kinds)

		if len(numbers) == 0 {
			continue
		}
		// stats only fails on empty input, which is excluded above
		lo, _ := stats.Min(numbers)
		mean, _ := stats.Mean(numbers)
		hi, _ := stats.Max(numbers)
		summary.NumericStats = append(summary.NumericStats, models.ColumnStats{
			Column: col,
			Count:  len(numbers),
			Min:    round2(lo),
			Mean:   round2(mean),
			Max:    round2(hi),
		})
	}

	s.logger.Debug("[summary] %s: %d rows, %d numeric columns",
		t.Name, summary.RowCount, len(summary.NumericStats))
	return summary
}

func dominantKind(kinds map[models.Kind]int) models.Kind {
	best, bestCount := models.KindMissing, 0
	for _, k := range []models.Kind{models.KindString, models.KindInt, models.KindFloat, models.KindDate} {
		if kinds[k] > bestCount {
			best, bestCount = k, kinds[k]
		}
	}
	return best
}

// Print renders a summary and the first head rows of t to w.
func (s *SummaryService) Print(w io.Writer, r *models.TableSummary, t *models.CleanTable, head int) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  TABLE %s\033[0m\n", strings.ToUpper(r.Name))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Rows    : \033[1m%d\033[0m\n", r.RowCount)
	fmt.Fprintf(w, "  Columns : \033[1m%d\033[0m\n", r.ColumnCount)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Columns\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if t != nil {
		for _, col := range t.Columns {
			fmt.Fprintf(w, "  %-32s %-8s missing: %d\n",
				truncate(col, 30), r.ColumnKinds[col], r.MissingByCol[col])
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Numeric Columns\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.NumericStats) == 0 {
		fmt.Fprintf(w, "  No numeric data\n")
	} else {
		for _, st := range r.NumericStats {
			fmt.Fprintf(w, "  %-24s min \033[1;32m%.2f\033[0m  mean \033[1;32m%.2f\033[0m  max \033[1;32m%.2f\033[0m\n",
				truncate(st.Column, 22), st.Min, st.Mean, st.Max)
		}
	}
	fmt.Fprintln(w)

	if t != nil && head > 0 && len(t.Rows) > 0 {
		fmt.Fprintf(w, "\033[1;33m  First %d Rows\033[0m\n", min(head, len(t.Rows)))
		fmt.Fprintf(w, "  %s\n", thin)
		cells := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cells[i] = truncate(c, 18)
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(cells, " | "))
		for _, row := range t.Rows[:min(head, len(t.Rows))] {
			for i, v := range row {
				cells[i] = truncate(v.String(), 18)
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(cells, " | "))
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// truncate shortens s to width runes, marking the cut with "...".
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
