package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablenorm/models"
)

func tableNames(tables []*models.CleanTable) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

func TestDefaultRulesUnemploymentCoversYears(t *testing.T) {
	rules := DefaultRules(DatasetUnemployment, []string{"Country", "2012", "2013"})

	require.Len(t, rules, 3)
	assert.True(t, rules["Country"].DropIfEmpty)
	assert.Equal(t, models.CastFloat, rules["2013"].CastTo)
	assert.Equal(t, "%", rules["2012"].StripChars)
}

func TestDefaultRulesUnknownDataset(t *testing.T) {
	assert.Empty(t, DefaultRules("payroll", []string{"a"}))
}

func TestRecipeForUnknownDatasetIsIdentity(t *testing.T) {
	in := salaries()
	out, err := RecipeFor("payroll")(in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Same(t, in, out[0])
}

func TestEarningsRecipe(t *testing.T) {
	clean, err := newTestNormalizer().Normalize(earningsRaw(), DefaultRules(DatasetEarnings, nil))
	require.NoError(t, err)

	out, err := EarningsRecipe(clean)
	require.NoError(t, err)
	assert.Equal(t, []string{"earnings", "earnings_dept_average", "earnings_merged"}, tableNames(out))

	sorted := out[0]
	assert.Equal(t, []string{"name", "department_name", "total_earnings"}, sorted.Columns)
	assert.Equal(t, []string{"Ann Poe", "Jane Doe"}, column(t, sorted, "name"))

	avg := out[1]
	require.Len(t, avg.Rows, 1)
	mean, ok := avg.Rows[0][1].Number()
	require.True(t, ok)
	assert.InDelta(t, (1234.50+403408.61)/2, mean, 1e-6)

	merged := out[2]
	assert.Equal(t, []string{"name", "department_name", "total_earnings", "dept_average"}, merged.Columns)
	assert.Len(t, merged.Rows, 2)
}

func TestUnemploymentRecipe(t *testing.T) {
	raw := &models.RawTable{
		Name:    DatasetUnemployment,
		Headers: []string{"Country", "2012", "2013"},
		Rows: []models.RawRow{
			{"Country": "Spain", "2012": "24.8", "2013": "26.1%"},
			{"Country": "Italy ", "2012": "10.7", "2013": ""},
			{"Country": "", "2012": "1", "2013": "2"},
		},
	}
	clean, err := newTestNormalizer().Normalize(raw, DefaultRules(DatasetUnemployment, raw.Headers))
	require.NoError(t, err)
	require.Len(t, clean.Rows, 2)

	out, err := UnemploymentRecipe(clean)
	require.NoError(t, err)
	require.Len(t, out, 1)

	long := out[0]
	assert.Equal(t, "unemployment_long", long.Name)
	assert.Equal(t, []string{"Country", "Year", "Rate_Unemployed", "Change"}, long.Columns)
	assert.Equal(t, []string{"Italy", "Italy", "Spain", "Spain"}, column(t, long, "Country"))
	assert.Equal(t, []string{"2012", "2013", "2012", "2013"}, column(t, long, "Year"))

	change := long.Column("Change")
	assert.True(t, change[0].IsMissing())
	assert.True(t, change[1].IsMissing(), "no 2013 rate for Italy")
	assert.True(t, change[2].IsMissing())
	got, ok := change[3].Number()
	require.True(t, ok)
	assert.InDelta(t, 1.3, got, 1e-9)
}

func TestAttendeesRecipe(t *testing.T) {
	raw := &models.RawTable{
		Name:    DatasetAttendees,
		Headers: []string{"Age group", "Choose your status:", "Email Address"},
		Rows: []models.RawRow{
			{"Age group": "30 - 39", "Choose your status:": "Nonprofit, Academic, Government", "Email Address": "a@x.org"},
			{"Age group": "30-39", "Choose your status:": "Professional", "Email Address": "b@x.org"},
			{"Age group": "20-29", "Choose your status:": "Nonprofit, Academic, Government Early Bird", "Email Address": ""},
		},
	}
	clean, err := newTestNormalizer().Normalize(raw, DefaultRules(DatasetAttendees, raw.Headers))
	require.NoError(t, err)

	out, err := AttendeesRecipe(clean)
	require.NoError(t, err)
	assert.Equal(t, []string{"attendees", "attendees_age_groups", "attendees_status"}, tableNames(out))

	assert.Equal(t, []string{"age_group", "status_choice", "email_address", "status"}, out[0].Columns)

	ages := out[1]
	assert.Equal(t, []string{"30-39", "20-29"}, column(t, ages, "age_group"))
	assert.Equal(t, []string{"2", "1"}, column(t, ages, "count"))

	statuses := out[2]
	assert.Equal(t, []string{"Nonprofit/Gov", "Professional"}, column(t, statuses, "status"))
	assert.Equal(t, []string{"2", "1"}, column(t, statuses, "count"))
}
