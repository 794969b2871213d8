package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tablenorm/models"
	"tablenorm/utils"
)

const (
	insertBatchSize = 50

	// rowIDColumn is the synthetic key that keeps rows in insertion order.
	rowIDColumn = "row_id"
)

var errReservedColumn = errors.New("reserved column name")

// PostgresWriter persists clean tables to PostgreSQL, one table per dataset
// named clean_<name>, and records every write in normalize_runs.
type PostgresWriter struct {
	db     *sqlx.DB
	logger *utils.Logger
}

// NewPostgresWriter opens a connection to PostgreSQL, retrying the ping while
// the server starts up, runs schema migrations and returns a ready writer.
func NewPostgresWriter(ctx context.Context, dsn string, retry *utils.RetryConfig, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pw := &PostgresWriter{db: db, logger: logger}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS normalize_runs (
			id          UUID         PRIMARY KEY,
			table_name  TEXT         NOT NULL,
			row_count   INTEGER      NOT NULL,
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_normalize_runs_table ON normalize_runs(table_name);
	`)
	return err
}

// TableName returns the database table a clean table is stored in.
func TableName(name string) string {
	return "clean_" + SafeName(name)
}

// Write replaces the table's database table with its rows. The table is
// recreated on every write so a changed schema never meets an old one.
// Column types are inferred from the first non-missing cell of each column;
// missing cells are stored as NULL.
func (pw *PostgresWriter) Write(table *models.CleanTable) error {
	return pw.WriteContext(context.Background(), table)
}

// WriteContext is Write with a caller-supplied context.
func (pw *PostgresWriter) WriteContext(ctx context.Context, table *models.CleanTable) error {
	name := TableName(table.Name)
	for _, col := range table.Columns {
		if col == rowIDColumn {
			return fmt.Errorf("postgres: %s: %w %q", name, errReservedColumn, col)
		}
	}

	tx, err := pw.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+pq.QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("postgres: drop %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(name, table)); err != nil {
		return fmt.Errorf("postgres: create %s: %w", name, err)
	}

	for i := 0; i < len(table.Rows); i += insertBatchSize {
		end := min(i+insertBatchSize, len(table.Rows))
		query, args := insertBatchSQL(name, table.Columns, table.Rows[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert into %s: %w", name, err)
		}
	}

	runID := uuid.New()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO normalize_runs (id, table_name, row_count) VALUES ($1, $2, $3)`,
		runID.String(), name, len(table.Rows)); err != nil {
		return fmt.Errorf("postgres: record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}

	pw.logger.Info("[postgres] %s: stored %d rows (run %s)", name, len(table.Rows), runID)
	return nil
}

// FetchAll reads back every row stored for a clean table, in insertion order.
func (pw *PostgresWriter) FetchAll(ctx context.Context, tableName string) ([]map[string]interface{}, error) {
	name := TableName(tableName)
	rows, err := pw.db.QueryxContext(ctx, selectAllSQL(name))
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch %s: %w", name, err)
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		m := make(map[string]interface{})
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		delete(m, rowIDColumn)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// columnSQLType maps the first non-missing cell of column j to a SQL type.
func columnSQLType(rows [][]models.Value, j int) string {
	for _, row := range rows {
		switch row[j].Kind {
		case models.KindMissing:
			continue
		case models.KindInt:
			return "BIGINT"
		case models.KindFloat:
			return "DOUBLE PRECISION"
		case models.KindDate:
			return "DATE"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func createTableSQL(name string, table *models.CleanTable) string {
	defs := make([]string, 0, len(table.Columns)+1)
	defs = append(defs, rowIDColumn+" BIGSERIAL PRIMARY KEY")
	for j, col := range table.Columns {
		defs = append(defs, pq.QuoteIdentifier(col)+" "+columnSQLType(table.Rows, j))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)",
		pq.QuoteIdentifier(name), strings.Join(defs, ",\n\t"))
}

func selectAllSQL(name string) string {
	return "SELECT * FROM " + pq.QuoteIdentifier(name) + " ORDER BY " + rowIDColumn
}

func insertBatchSQL(name string, columns []string, batch [][]models.Value) (string, []interface{}) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}

	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*len(columns))
	placeholders := make([]string, len(columns))

	for idx, row := range batch {
		base := idx * len(columns)
		for j := range columns {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
			valueArgs = append(valueArgs, sqlArg(row[j]))
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		pq.QuoteIdentifier(name), strings.Join(quoted, ","), strings.Join(valueStrings, ","))
	return query, valueArgs
}

// sqlArg converts a cell for the driver; dates are sent as UTC midnight.
func sqlArg(v models.Value) interface{} {
	if v.Kind == models.KindDate {
		return v.Time.UTC().Truncate(24 * time.Hour)
	}
	return v.Interface()
}
