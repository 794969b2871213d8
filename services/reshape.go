package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"tablenorm/models"
)

// Table operations used after normalization. Each returns a new table and
// leaves its input untouched.

// Select keeps only the named columns, in the given order.
func Select(t *models.CleanTable, cols ...string) (*models.CleanTable, error) {
	idx := make([]int, len(cols))
	seen := make(map[string]struct{}, len(cols))
	for i, c := range cols {
		if _, dup := seen[c]; dup {
			return nil, &models.RuleError{Column: c, Reason: "selected twice"}
		}
		seen[c] = struct{}{}

		j, err := t.MustColumn(c)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}

	out := models.NewCleanTable(t.Name, cols)
	for _, row := range t.Rows {
		cells := make([]models.Value, len(idx))
		for i, j := range idx {
			cells[i] = row[j]
		}
		out.Rows = append(out.Rows, cells)
	}
	return out, nil
}

// SnakeCase lower-cases a header and replaces spaces with underscores.
func SnakeCase(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// RenameColumns maps every column name through fn. A mapping that yields an
// empty or duplicate name is a configuration error.
func RenameColumns(t *models.CleanTable, fn func(string) string) (*models.CleanTable, error) {
	cols := make([]string, len(t.Columns))
	owner := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		name := fn(c)
		if name == "" {
			return nil, &models.RuleError{Column: c, Reason: "column name is empty"}
		}
		if prev, dup := owner[name]; dup {
			return nil, &models.RuleError{
				Column: c,
				Reason: fmt.Sprintf("output column %q is already produced by %q", name, prev),
			}
		}
		owner[name] = c
		cols[i] = name
	}

	out := copyRows(t)
	out.Columns = cols
	return out, nil
}

// SortBy stable-sorts rows by the given columns, left to right. Missing cells
// sort last in both directions.
func SortBy(t *models.CleanTable, desc bool, cols ...string) (*models.CleanTable, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j, err := t.MustColumn(c)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}

	out := copyRows(t)
	sort.SliceStable(out.Rows, func(a, b int) bool {
		for _, j := range idx {
			x, y := out.Rows[a][j], out.Rows[b][j]
			if x.IsMissing() || y.IsMissing() {
				if x.IsMissing() != y.IsMissing() {
					return y.IsMissing()
				}
				continue
			}
			c := models.Compare(x, y)
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out, nil
}

// GroupMean averages valueCol per distinct value of key. The result has the
// columns key and outCol, sorted by key. Rows with a missing key are skipped;
// a group without numeric values gets a missing mean.
func GroupMean(t *models.CleanTable, key, valueCol, outCol string) (*models.CleanTable, error) {
	ki, err := t.MustColumn(key)
	if err != nil {
		return nil, err
	}
	vi, err := t.MustColumn(valueCol)
	if err != nil {
		return nil, err
	}
	if outCol == key {
		return nil, &models.RuleError{Column: outCol, Reason: "mean column collides with group key"}
	}

	type group struct {
		key    models.Value
		values []float64
	}
	groups := make(map[string]*group)
	var order []*group

	for _, row := range t.Rows {
		k := row[ki]
		if k.IsMissing() {
			continue
		}
		id := groupID(k)
		g, ok := groups[id]
		if !ok {
			g = &group{key: k}
			groups[id] = g
			order = append(order, g)
		}
		if f, ok := row[vi].Number(); ok {
			g.values = append(g.values, f)
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return models.Compare(order[a].key, order[b].key) < 0
	})

	out := models.NewCleanTable(t.Name, []string{key, outCol})
	for _, g := range order {
		mean := models.NewMissingValue()
		if m, err := stats.Mean(g.values); err == nil {
			mean = models.NewFloatValue(m)
		}
		out.Rows = append(out.Rows, []models.Value{g.key, mean})
	}
	return out, nil
}

// Merge inner-joins left and right on the column on. Output rows follow left
// order; for each left row, matching right rows follow right order. Right
// columns other than on are appended and must not collide with left columns.
// Missing keys never match.
func Merge(left, right *models.CleanTable, on string) (*models.CleanTable, error) {
	li, err := left.MustColumn(on)
	if err != nil {
		return nil, err
	}
	ri, err := right.MustColumn(on)
	if err != nil {
		return nil, err
	}

	cols := append([]string(nil), left.Columns...)
	var rightIdx []int
	for j, c := range right.Columns {
		if j == ri {
			continue
		}
		if left.ColumnIndex(c) >= 0 {
			return nil, &models.RuleError{Column: c, Reason: "present in both tables being merged"}
		}
		cols = append(cols, c)
		rightIdx = append(rightIdx, j)
	}

	index := make(map[string][]int)
	for r, row := range right.Rows {
		if row[ri].IsMissing() {
			continue
		}
		id := groupID(row[ri])
		index[id] = append(index[id], r)
	}

	out := models.NewCleanTable(left.Name, cols)
	for _, lrow := range left.Rows {
		if lrow[li].IsMissing() {
			continue
		}
		for _, r := range index[groupID(lrow[li])] {
			cells := make([]models.Value, 0, len(cols))
			cells = append(cells, lrow...)
			for _, j := range rightIdx {
				cells = append(cells, right.Rows[r][j])
			}
			out.Rows = append(out.Rows, cells)
		}
	}
	return out, nil
}

// Melt reshapes a wide table into long form. Every column other than idCol
// becomes one row per input row, holding the column name in varName and the
// cell in valueName. Rows are emitted column by column, as pandas does.
func Melt(t *models.CleanTable, idCol, varName, valueName string) (*models.CleanTable, error) {
	ii, err := t.MustColumn(idCol)
	if err != nil {
		return nil, err
	}
	if varName == valueName || varName == idCol || valueName == idCol {
		return nil, &models.RuleError{Column: varName, Reason: "melt output columns must be distinct"}
	}

	out := models.NewCleanTable(t.Name, []string{idCol, varName, valueName})
	for j, c := range t.Columns {
		if j == ii {
			continue
		}
		name := models.NewStringValue(c)
		for _, row := range t.Rows {
			out.Rows = append(out.Rows, []models.Value{row[ii], name, row[j]})
		}
	}
	return out, nil
}

// Diff appends outCol holding the difference between each row's valueCol and
// the previous row's within the same group. With an empty groupCol the whole
// table is one group. The first row of a group, any row whose group key is
// missing, and any row where either operand is missing, gets a missing
// difference.
func Diff(t *models.CleanTable, valueCol, groupCol, outCol string) (*models.CleanTable, error) {
	vi, err := t.MustColumn(valueCol)
	if err != nil {
		return nil, err
	}
	gi := -1
	if groupCol != "" {
		if gi, err = t.MustColumn(groupCol); err != nil {
			return nil, err
		}
	}
	if t.ColumnIndex(outCol) >= 0 {
		return nil, &models.RuleError{Column: outCol, Reason: "already exists"}
	}

	out := models.NewCleanTable(t.Name, append(append([]string(nil), t.Columns...), outCol))
	prev := make(map[string]models.Value)

	for _, row := range t.Rows {
		diff := models.NewMissingValue()
		if gi < 0 || !row[gi].IsMissing() {
			id := ""
			if gi >= 0 {
				id = groupID(row[gi])
			}
			if p, seen := prev[id]; seen {
				x, okX := row[vi].Number()
				y, okY := p.Number()
				if okX && okY {
					diff = models.NewFloatValue(x - y)
				}
			}
			prev[id] = row[vi]
		}

		cells := make([]models.Value, 0, len(row)+1)
		cells = append(cells, row...)
		out.Rows = append(out.Rows, append(cells, diff))
	}
	return out, nil
}

// Recode writes col's values, replaced through mapping, into dst. Values not in
// mapping are kept. When dst equals col the column is replaced in place,
// otherwise dst is appended (or overwritten if it already exists).
func Recode(t *models.CleanTable, col, dst string, mapping map[string]string) (*models.CleanTable, error) {
	ci, err := t.MustColumn(col)
	if err != nil {
		return nil, err
	}

	out := copyRows(t)
	di := out.ColumnIndex(dst)
	if di < 0 {
		out.Columns = append(out.Columns, dst)
		for i := range out.Rows {
			out.Rows[i] = append(out.Rows[i], models.NewMissingValue())
		}
		di = len(out.Columns) - 1
	}

	for i, row := range out.Rows {
		v := row[ci]
		if v.Kind == models.KindString {
			if repl, ok := mapping[v.Str]; ok {
				v = models.NewStringValue(repl)
			}
		}
		out.Rows[i][di] = v
	}
	return out, nil
}

// ValueCounts counts the non-missing values of col. The result has columns
// col and "count", ordered by descending count with ties in first-appearance
// order.
func ValueCounts(t *models.CleanTable, col string) (*models.CleanTable, error) {
	ci, err := t.MustColumn(col)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		value models.Value
		count int64
	}
	buckets := make(map[string]*bucket)
	var order []*bucket
	for _, row := range t.Rows {
		v := row[ci]
		if v.IsMissing() {
			continue
		}
		id := groupID(v)
		b, ok := buckets[id]
		if !ok {
			b = &bucket{value: v}
			buckets[id] = b
			order = append(order, b)
		}
		b.count++
	}

	sort.SliceStable(order, func(a, b int) bool { return order[a].count > order[b].count })

	countCol := "count"
	if col == countCol {
		countCol = "count_"
	}
	out := models.NewCleanTable(t.Name, []string{col, countCol})
	for _, b := range order {
		out.Rows = append(out.Rows, []models.Value{b.value, models.NewIntValue(b.count)})
	}
	return out, nil
}

// groupID keys a cell for grouping and joining.
func groupID(v models.Value) string {
	return v.Kind.String() + "\x00" + v.String()
}

// copyRows returns a copy of t whose rows can be reordered or extended freely.
func copyRows(t *models.CleanTable) *models.CleanTable {
	out := models.NewCleanTable(t.Name, t.Columns)
	out.Rows = make([][]models.Value, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]models.Value(nil), row...)
	}
	return out
}
