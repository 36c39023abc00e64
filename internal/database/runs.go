package database

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// CreateRun inserts a new run log in running status and returns it.
func (db *DB) CreateRun(source *string) (*IngestionRun, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO ingestion_runs (id, source) VALUES (?, ?)", id, source,
	)
	if err != nil {
		return nil, fmt.Errorf("creating run log: %w", err)
	}
	return db.GetRun(id)
}

// UpdateRun applies a partial update to a run log. Nil fields are skipped.
func (db *DB) UpdateRun(id string, upd RunUpdate) error {
	q := sq.Update("ingestion_runs").Where(sq.Eq{"id": id})
	set := false
	if upd.CompletedAt != nil {
		q = q.Set("completed_at", *upd.CompletedAt)
		set = true
	}
	if upd.ItemsFetched != nil {
		q = q.Set("items_fetched", *upd.ItemsFetched)
		set = true
	}
	if upd.ItemsNew != nil {
		q = q.Set("items_new", *upd.ItemsNew)
		set = true
	}
	if upd.ItemsDuplicate != nil {
		q = q.Set("items_duplicate", *upd.ItemsDuplicate)
		set = true
	}
	if upd.ItemsFailed != nil {
		q = q.Set("items_failed", *upd.ItemsFailed)
		set = true
	}
	if upd.Status != nil {
		q = q.Set("status", *upd.Status)
		set = true
	}
	if upd.ErrorMessage != nil {
		q = q.Set("error_message", *upd.ErrorMessage)
		set = true
	}
	if !set {
		return nil
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building run update: %w", err)
	}
	res, err := db.conn.Exec(sqlStr, args...)
	if err != nil {
		return fmt.Errorf("updating run log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun returns a run log by ID, or ErrNotFound.
func (db *DB) GetRun(id string) (*IngestionRun, error) {
	row := db.conn.QueryRow(
		`SELECT id, source, started_at, completed_at, items_fetched, items_new,
		items_duplicate, items_failed, status, error_message
		FROM ingestion_runs WHERE id = ?`, id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent run logs, newest first.
func (db *DB) ListRuns(limit int) ([]IngestionRun, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	rows, err := db.conn.Query(
		`SELECT id, source, started_at, completed_at, items_fetched, items_new,
		items_duplicate, items_failed, status, error_message
		FROM ingestion_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []IngestionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*IngestionRun, error) {
	var r IngestionRun
	err := row.Scan(&r.ID, &r.Source, &r.StartedAt, &r.CompletedAt, &r.ItemsFetched,
		&r.ItemsNew, &r.ItemsDuplicate, &r.ItemsFailed, &r.Status, &r.ErrorMessage)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
