package notes

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultNoteCategory is the MIMIC category of discharge summaries
const DefaultNoteCategory = "Discharge summary"

// Querier is the subset of *pgxpool.Pool used by PostgresSource
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource streams notes from a MIMIC noteevents table
type PostgresSource struct {
	db       Querier
	Table    string
	Category string
	Limit    int
}

// NewPostgresSource creates a source reading discharge summaries from noteevents
func NewPostgresSource(db Querier, limit int) *PostgresSource {
	return &PostgresSource{
		db:       db,
		Table:    "noteevents",
		Category: DefaultNoteCategory,
		Limit:    limit,
	}
}

// NewPool opens a connection pool and checks it is reachable
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// query builds the SELECT for the configured table, category and limit
func (ps *PostgresSource) query() (string, []any) {
	sql := "SELECT row_id, subject_id, hadm_id, category, text FROM " +
		pgx.Identifier{ps.Table}.Sanitize() +
		" WHERE category = $1 ORDER BY row_id"
	args := []any{ps.Category}

	if ps.Limit > 0 {
		sql += " LIMIT $2"
		args = append(args, ps.Limit)
	}
	return sql, args
}

// Each implements Source
func (ps *PostgresSource) Each(ctx context.Context, fn HandlerFunc) error {
	sql, args := ps.query()

	rows, err := ps.db.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	source := ps.Table
	for rows.Next() {
		var (
			rowID     int64
			subjectID int64
			hadmID    *int64
			category  *string
			text      *string
		)

		if err := rows.Scan(&rowID, &subjectID, &hadmID, &category, &text); err != nil {
			if err := fn(Note{Source: source}, &RecordError{Source: source, Reason: "failed to scan note row", Err: err}); err != nil {
				return err
			}
			continue
		}

		note := Note{
			RowID:     rowID,
			SubjectID: subjectID,
			Source:    source + ":" + strconv.FormatInt(rowID, 10),
		}
		if hadmID != nil {
			note.HadmID = *hadmID
		}
		if category != nil {
			note.Category = *category
		}

		var recErr error
		if text == nil {
			recErr = &RecordError{RowID: rowID, Source: note.Source, Reason: "text is NULL"}
		} else {
			note.Text = *text
		}

		if err := fn(note, recErr); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("read notes: %w", err)
	}
	return nil
}
