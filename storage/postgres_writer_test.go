package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablenorm/models"
	"tablenorm/utils"
)

func sampleTable() *models.CleanTable {
	tbl := models.NewCleanTable("Unemployment Long", []string{"Country", "Year", "Rate", "Seen"})
	tbl.Rows = append(tbl.Rows,
		[]models.Value{models.NewStringValue("Spain"), models.NewMissingValue(), models.NewMissingValue(), models.NewMissingValue()},
		[]models.Value{
			models.NewStringValue("Italy"),
			models.NewIntValue(2013),
			models.NewFloatValue(12.1),
			models.NewDateValue(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)),
		},
	)
	return tbl
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "clean_unemployment_long", TableName("Unemployment Long"))
}

func TestCreateTableSQLInfersTypes(t *testing.T) {
	sql := createTableSQL(TableName("x"), sampleTable())

	assert.Contains(t, sql, `CREATE TABLE "clean_x" (`)
	assert.Contains(t, sql, "row_id BIGSERIAL PRIMARY KEY")
	assert.Contains(t, sql, `"Country" TEXT`)
	assert.Contains(t, sql, `"Year" BIGINT`)
	assert.Contains(t, sql, `"Rate" DOUBLE PRECISION`)
	assert.Contains(t, sql, `"Seen" DATE`)
}

func TestColumnSQLTypeAllMissing(t *testing.T) {
	rows := [][]models.Value{{models.NewMissingValue()}, {models.NewMissingValue()}}
	assert.Equal(t, "TEXT", columnSQLType(rows, 0))
}

func TestInsertBatchSQL(t *testing.T) {
	tbl := sampleTable()
	query, args := insertBatchSQL("clean_x", tbl.Columns, tbl.Rows)

	assert.Equal(t,
		`INSERT INTO "clean_x" ("Country","Year","Rate","Seen") VALUES ($1,$2,$3,$4),($5,$6,$7,$8)`,
		query)
	assert.Len(t, args, 8)
	assert.Equal(t, "Spain", args[0])
	assert.Nil(t, args[1], "missing cells are NULL")
	assert.Equal(t, int64(2013), args[5])
	assert.Equal(t, 12.1, args[6])
	assert.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), args[7])
}

func TestSelectAllSQL(t *testing.T) {
	assert.Equal(t, `SELECT * FROM "clean_x" ORDER BY row_id`, selectAllSQL("clean_x"))
}

func TestWriteRejectsRowIDColumn(t *testing.T) {
	tbl := models.NewCleanTable("x", []string{"row_id", "name"})
	err := (&PostgresWriter{logger: utils.NewNopLogger()}).Write(tbl)
	assert.ErrorIs(t, err, errReservedColumn)
}

// TestPostgresRoundTrip needs a scratch database in TABLENORM_TEST_DSN.
func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("TABLENORM_TEST_DSN")
	if dsn == "" {
		t.Skip("TABLENORM_TEST_DSN not set")
	}

	ctx := context.Background()
	logger := utils.NewNopLogger()
	pw, err := NewPostgresWriter(ctx, dsn, &utils.RetryConfig{MaxAttempts: 1, Logger: logger}, logger)
	require.NoError(t, err)
	defer pw.Close()

	require.NoError(t, pw.WriteContext(ctx, sampleTable()))

	rows, err := pw.FetchAll(ctx, "Unemployment Long")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Spain", rows[0]["Country"])
	assert.Nil(t, rows[0]["Year"])
	assert.Equal(t, int64(2013), rows[1]["Year"])
	assert.NotContains(t, rows[0], "row_id")

	// a second write with another schema replaces the table
	narrow := models.NewCleanTable("Unemployment Long", []string{"Country"})
	narrow.Rows = append(narrow.Rows, []models.Value{models.NewStringValue("Italy")})
	require.NoError(t, pw.WriteContext(ctx, narrow))

	rows, err = pw.FetchAll(ctx, "Unemployment Long")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]interface{}{"Country": "Italy"}, rows[0])
}
