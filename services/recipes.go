package services

import (
	"fmt"

	"tablenorm/models"
)

// Dataset names used for rule lookup and output files.
const (
	DatasetEarnings     = "earnings"
	DatasetUnemployment = "unemployment"
	DatasetAttendees    = "attendees"
)

// Recipe turns one normalized dataset into the tables written out for it.
type Recipe func(clean *models.CleanTable) ([]*models.CleanTable, error)

// DefaultRules returns the built-in rule set for a dataset. headers is the
// raw header row; some datasets derive rules from it.
func DefaultRules(dataset string, headers []string) models.RuleSet {
	switch dataset {
	case DatasetEarnings:
		return models.RuleSet{
			"NAME":            {RenameTo: "name", TrimWhitespace: true, DropIfEmpty: true},
			"DEPARTMENT_NAME": {RenameTo: "department_name", TrimWhitespace: true},
			"TOTAL EARNINGS": {
				RenameTo:       "total_earnings",
				TrimWhitespace: true,
				StripChars:     "$,",
				CastTo:         models.CastFloat,
				DropIfEmpty:    true,
			},
		}
	case DatasetUnemployment:
		rules := models.RuleSet{
			"Country": {TrimWhitespace: true, DropIfEmpty: true},
		}
		for _, h := range headers {
			if h == "Country" {
				continue
			}
			rules[h] = models.ColumnRule{TrimWhitespace: true, StripChars: "%", CastTo: models.CastFloat}
		}
		return rules
	case DatasetAttendees:
		return models.RuleSet{
			"Age group":           {RenameTo: "age_group", TrimWhitespace: true},
			"Choose your status:": {RenameTo: "status_choice", TrimWhitespace: true},
		}
	}
	return models.RuleSet{}
}

// RecipeFor returns the post-normalization steps for a dataset. Datasets
// without a recipe are written out as normalized.
func RecipeFor(dataset string) Recipe {
	switch dataset {
	case DatasetEarnings:
		return EarningsRecipe
	case DatasetUnemployment:
		return UnemploymentRecipe
	case DatasetAttendees:
		return AttendeesRecipe
	}
	return func(clean *models.CleanTable) ([]*models.CleanTable, error) {
		return []*models.CleanTable{clean}, nil
	}
}

// EarningsRecipe keeps name, department and total earnings, sorts by
// earnings descending and attaches each department's average.
func EarningsRecipe(clean *models.CleanTable) ([]*models.CleanTable, error) {
	selected, err := Select(clean, "name", "department_name", "total_earnings")
	if err != nil {
		return nil, fmt.Errorf("earnings: %w", err)
	}

	sorted, err := SortBy(selected, true, "total_earnings")
	if err != nil {
		return nil, fmt.Errorf("earnings: %w", err)
	}

	avg, err := GroupMean(sorted, "department_name", "total_earnings", "dept_average")
	if err != nil {
		return nil, fmt.Errorf("earnings: %w", err)
	}
	avg.Name = clean.Name + "_dept_average"

	merged, err := Merge(sorted, avg, "department_name")
	if err != nil {
		return nil, fmt.Errorf("earnings: %w", err)
	}
	merged.Name = clean.Name + "_merged"

	return []*models.CleanTable{sorted, avg, merged}, nil
}

// UnemploymentRecipe melts the year columns into rows, orders by country and
// year, and adds the year-over-year change per country.
func UnemploymentRecipe(clean *models.CleanTable) ([]*models.CleanTable, error) {
	long, err := Melt(clean, "Country", "Year", "Rate_Unemployed")
	if err != nil {
		return nil, fmt.Errorf("unemployment: %w", err)
	}

	long, err = SortBy(long, false, "Country", "Year")
	if err != nil {
		return nil, fmt.Errorf("unemployment: %w", err)
	}

	long, err = Diff(long, "Rate_Unemployed", "Country", "Change")
	if err != nil {
		return nil, fmt.Errorf("unemployment: %w", err)
	}
	long.Name = clean.Name + "_long"

	return []*models.CleanTable{long}, nil
}

// attendeeStatus folds the early bird variant into one status label.
var attendeeStatus = map[string]string{
	"Nonprofit, Academic, Government":            "Nonprofit/Gov",
	"Nonprofit, Academic, Government Early Bird": "Nonprofit/Gov",
}

// AttendeesRecipe unifies age group spellings and statuses, snake-cases the
// remaining headers and counts both categories.
func AttendeesRecipe(clean *models.CleanTable) ([]*models.CleanTable, error) {
	t, err := Recode(clean, "age_group", "age_group", map[string]string{"30 - 39": "30-39"})
	if err != nil {
		return nil, fmt.Errorf("attendees: %w", err)
	}

	t, err = Recode(t, "status_choice", "status", attendeeStatus)
	if err != nil {
		return nil, fmt.Errorf("attendees: %w", err)
	}

	t, err = RenameColumns(t, SnakeCase)
	if err != nil {
		return nil, fmt.Errorf("attendees: %w", err)
	}

	ages, err := ValueCounts(t, "age_group")
	if err != nil {
		return nil, fmt.Errorf("attendees: %w", err)
	}
	ages.Name = clean.Name + "_age_groups"

	statuses, err := ValueCounts(t, "status")
	if err != nil {
		return nil, fmt.Errorf("attendees: %w", err)
	}
	statuses.Name = clean.Name + "_status"

	return []*models.CleanTable{t, ages, statuses}, nil
}
