package models

// ColumnStats holds descriptive statistics over the numeric cells of a column.
type ColumnStats struct {
	Column string
	Count  int
	Min    float64
	Mean   float64
	Max    float64
}

// TableSummary is the overview printed after a table has been cleaned.
type TableSummary struct {
	Name         string
	RowCount     int
	ColumnCount  int
	ColumnKinds  map[string]Kind
	MissingByCol map[string]int
	NumericStats []ColumnStats
}
