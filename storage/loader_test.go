package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tablenorm/models"
	"tablenorm/utils"
)

func newTestLoader() *Loader { return NewLoader(utils.NewNopLogger()) }

func TestReadCSVLatin1(t *testing.T) {
	// "José" encoded as ISO-8859-1
	data := []byte("NAME,TOTAL EARNINGS\nJos\xe9,\"$1,234.50\"\n")

	tbl, err := newTestLoader().ReadCSV("earnings", strings.NewReader(string(data)), LoadOptions{Encoding: "latin-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"NAME", "TOTAL EARNINGS"}, tbl.Headers)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "José", tbl.Rows[0]["NAME"])
	assert.Equal(t, "$1,234.50", tbl.Rows[0]["TOTAL EARNINGS"])
}

func TestReadCSVUnknownEncoding(t *testing.T) {
	_, err := newTestLoader().ReadCSV("x", strings.NewReader("a\n1\n"), LoadOptions{Encoding: "ebcdic"})
	assert.ErrorIs(t, err, errUnknownEncoding)
}

func TestNewRawTableShapes(t *testing.T) {
	records := [][]string{
		{"\ufeffCountry", "", "2013"},
		{"Spain", "x", "n/a"},
		{"", "", ""},
		{"Italy"},
		{"France", "y", "10.2", "extra"},
	}

	tbl, err := newTestLoader().NewRawTable("unemployment", records, LoadOptions{NAValues: []string{"n/a"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"Country", "Unnamed: 1", "2013"}, tbl.Headers)
	require.Len(t, tbl.Rows, 3, "blank rows are skipped")

	assert.Equal(t, "", tbl.Rows[0]["2013"], "NA values become empty")
	assert.Equal(t, models.RawRow{"Country": "Italy", "Unnamed: 1": "", "2013": ""}, tbl.Rows[1])
	assert.Equal(t, "10.2", tbl.Rows[2]["2013"])
}

func TestNewRawTableRejectsDuplicateHeaders(t *testing.T) {
	_, err := newTestLoader().NewRawTable("x", [][]string{{"a", "a"}}, LoadOptions{})
	assert.Error(t, err)

	_, err = newTestLoader().NewRawTable("x", nil, LoadOptions{})
	assert.ErrorIs(t, err, models.ErrEmptyTable)
}

func TestLoadDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "attendees.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Age group\n30 - 39\n"), 0o644))

	tbl, err := newTestLoader().Load("attendees", csvPath, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "attendees", tbl.Name)
	assert.Equal(t, "30 - 39", tbl.Rows[0]["Age group"])

	_, err = newTestLoader().Load("x", filepath.Join(dir, "data.json"), LoadOptions{})
	assert.Error(t, err)

	_, err = newTestLoader().Load("x", filepath.Join(dir, "missing.csv"), LoadOptions{})
	assert.Error(t, err)
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unemployment.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Country", "2012", "2013"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Spain", 24.8, "n/a"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"Italy", 10.7, 12.1}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := newTestLoader().Load("unemployment", path, LoadOptions{NAValues: []string{"n/a"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"Country", "2012", "2013"}, tbl.Headers)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "24.8", tbl.Rows[0]["2012"])
	assert.Equal(t, "", tbl.Rows[0]["2013"])
	assert.Equal(t, "12.1", tbl.Rows[1]["2013"])

	_, err = newTestLoader().LoadXLSX("unemployment", path, LoadOptions{Sheet: "Nope"})
	assert.Error(t, err)
}
