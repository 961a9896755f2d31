// Package sqlite provides a SQLite-backed dashboard store for local runs
// and tests. It mirrors the Firestore store's semantics.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/GregMSThompson/dashboard-backend/internal/errs"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
)

//go:embed schema.sql
var schema string

// Store persists dashboards in SQLite.
type Store struct {
	sqlDB    *sql.DB
	clockNow func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, clockNow: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type encoded struct {
	layout, charts, data []byte
}

func encode(d *models.Dashboard) (encoded, error) {
	var (
		out encoded
		err error
	)
	layout := d.Layout
	if layout == nil {
		layout = []models.LayoutCell{}
	}
	if out.layout, err = json.Marshal(layout); err != nil {
		return out, fmt.Errorf("encode layout: %w", err)
	}
	charts := d.Config.Charts
	if charts == nil {
		charts = models.ChartSet{}
	}
	if out.charts, err = json.Marshal(charts); err != nil {
		return out, fmt.Errorf("encode charts: %w", err)
	}
	data := d.Config.Data
	if data == nil {
		data = []models.Row{}
	}
	if out.data, err = json.Marshal(data); err != nil {
		return out, fmt.Errorf("encode data: %w", err)
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, d *models.Dashboard) error {
	now := s.clockNow().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.Version = 1

	enc, err := encode(d)
	if err != nil {
		return errs.NewDatabaseError("create", "failed to encode dashboard", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO dashboards (
		   id, name, description, owner_id, layout, charts, data,
		   chart_count, version, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Description, d.OwnerID,
		string(enc.layout), string(enc.charts), string(enc.data),
		len(d.Config.Charts), d.Version, toMillis(d.CreatedAt), toMillis(d.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.NewValidationError("dashboard id already in use")
		}
		return errs.NewDatabaseError("create", "failed to create dashboard", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Get(ctx context.Context, id string) (*models.Dashboard, error) {
	return get(ctx, s.sqlDB, id)
}

func get(ctx context.Context, q queryer, id string) (*models.Dashboard, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, description, owner_id, layout, charts, data,
		        version, created_at, updated_at
		   FROM dashboards
		  WHERE id = ?`, id)

	var (
		d                    models.Dashboard
		layout, charts, data string
		createdAt, updatedAt int64
	)
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.OwnerID,
		&layout, &charts, &data, &d.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFoundError("dashboard not found")
		}
		return nil, errs.NewDatabaseError("read", "failed to get dashboard", err)
	}
	if err := json.Unmarshal([]byte(layout), &d.Layout); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to decode layout", err)
	}
	if err := json.Unmarshal([]byte(charts), &d.Config.Charts); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to decode charts", err)
	}
	if err := json.Unmarshal([]byte(data), &d.Config.Data); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to decode data", err)
	}
	d.CreatedAt = fromMillis(createdAt)
	d.UpdatedAt = fromMillis(updatedAt)
	return &d, nil
}

func (s *Store) List(ctx context.Context) ([]models.DashboardSummary, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, description, chart_count, version, created_at, updated_at
		   FROM dashboards
		  ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list dashboards", err)
	}
	defer rows.Close()

	out := []models.DashboardSummary{}
	for rows.Next() {
		var (
			sum                  models.DashboardSummary
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Description, &sum.ChartCount,
			&sum.Version, &createdAt, &updatedAt); err != nil {
			return nil, errs.NewDatabaseError("read", "failed to scan dashboard summary", err)
		}
		sum.CreatedAt = fromMillis(createdAt)
		sum.UpdatedAt = fromMillis(updatedAt)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list dashboards", err)
	}
	return out, nil
}

// Update applies patch in one transaction. A non-zero expectedVersion must
// match the stored version.
func (s *Store) Update(ctx context.Context, id string, patch models.DashboardPatch, expectedVersion int64) (*models.Dashboard, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.NewDatabaseError("update", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	d, err := get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && d.Version != expectedVersion {
		return nil, errs.NewConflictError(expectedVersion, d.Version)
	}
	d.Apply(patch)
	prev := d.Version
	d.Version++
	d.UpdatedAt = s.clockNow().UTC()

	enc, err := encode(d)
	if err != nil {
		return nil, errs.NewDatabaseError("update", "failed to encode dashboard", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE dashboards
		    SET name = ?, description = ?, layout = ?, charts = ?, data = ?,
		        chart_count = ?, version = ?, updated_at = ?
		  WHERE id = ? AND version = ?`,
		d.Name, d.Description, string(enc.layout), string(enc.charts), string(enc.data),
		len(d.Config.Charts), d.Version, toMillis(d.UpdatedAt), id, prev,
	)
	if err != nil {
		return nil, errs.NewDatabaseError("update", "failed to update dashboard", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, errs.NewConflictError(prev, prev+1)
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.NewDatabaseError("update", "failed to commit dashboard update", err)
	}
	return d, nil
}

func (s *Store) Delete(ctx context.Context, id string, expectedVersion int64) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewDatabaseError("delete", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM dashboards WHERE id = ?`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NewNotFoundError("dashboard not found")
		}
		return errs.NewDatabaseError("delete", "failed to read dashboard version", err)
	}
	if expectedVersion != 0 && version != expectedVersion {
		return errs.NewConflictError(expectedVersion, version)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dashboards WHERE id = ?`, id); err != nil {
		return errs.NewDatabaseError("delete", "failed to delete dashboard", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.NewDatabaseError("delete", "failed to commit dashboard delete", err)
	}
	return nil
}

// ListFields returns the field catalog in position order.
func (s *Store) ListFields(ctx context.Context) ([]models.Field, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, label, type FROM dashboard_fields ORDER BY position, name`)
	if err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list fields", err)
	}
	defer rows.Close()

	out := []models.Field{}
	for rows.Next() {
		var f models.Field
		if err := rows.Scan(&f.Name, &f.Label, &f.Type); err != nil {
			return nil, errs.NewDatabaseError("read", "failed to scan field", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDatabaseError("read", "failed to list fields", err)
	}
	return out, nil
}

// PutFields replaces the field catalog.
func (s *Store) PutFields(ctx context.Context, fields []models.Field) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewDatabaseError("update", "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dashboard_fields`); err != nil {
		return errs.NewDatabaseError("update", "failed to clear fields", err)
	}
	for i, f := range fields {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dashboard_fields (name, label, type, position) VALUES (?, ?, ?, ?)`,
			f.Name, f.Label, f.Type, i)
		if err != nil {
			if isUniqueViolation(err) {
				return errs.NewValidationError(fmt.Sprintf("duplicate field %q", f.Name))
			}
			return errs.NewDatabaseError("update", "failed to insert field", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.NewDatabaseError("update", "failed to commit fields", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}
