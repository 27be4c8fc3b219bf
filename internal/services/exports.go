package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HerbHall/ihttstats/internal/store"
	"github.com/HerbHall/ihttstats/pkg/models"
	"github.com/google/uuid"
)

// ExportMigrations create the export history schema.
var ExportMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create export history",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE export_history (
					id          TEXT PRIMARY KEY,
					resource    TEXT NOT NULL,
					format      TEXT NOT NULL,
					source      TEXT NOT NULL,
					rows_in     INTEGER NOT NULL DEFAULT 0,
					rows_out    INTEGER NOT NULL DEFAULT 0,
					duplicates  INTEGER NOT NULL DEFAULT 0,
					parameters  TEXT NOT NULL DEFAULT '',
					requester   TEXT NOT NULL DEFAULT '',
					created_at  TEXT NOT NULL
				)`)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `CREATE INDEX idx_export_history_created ON export_history(created_at)`)
			return err
		},
	},
}

// ExportRepository stores the history of generated exports.
type ExportRepository interface {
	// Get returns a single entry by ID.
	Get(ctx context.Context, id string) (*models.ExportEntry, error)

	// List returns entries, newest first unless SortOrder is "asc".
	List(ctx context.Context, opts ListOptions) (*ListResult[models.ExportEntry], error)

	// Create inserts an entry. Empty ID and zero CreatedAt are filled in.
	Create(ctx context.Context, e *models.ExportEntry) error
}

// Compile-time interface guard.
var _ ExportRepository = (*SQLiteExportRepository)(nil)

// SQLiteExportRepository implements ExportRepository using SQLite.
type SQLiteExportRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteExportRepository creates an ExportRepository. The export_history
// table must already exist (see ExportMigrations).
func NewSQLiteExportRepository(db *sql.DB) *SQLiteExportRepository {
	return &SQLiteExportRepository{db: db, now: time.Now}
}

// createdLayout is fixed-width so created_at sorts chronologically as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

const exportColumns = `id, resource, format, source, rows_in, rows_out, duplicates, parameters, requester, created_at`

func (r *SQLiteExportRepository) Get(ctx context.Context, id string) (*models.ExportEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+exportColumns+` FROM export_history WHERE id = ?`, id)
	e, err := scanExport(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get export %q: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteExportRepository) List(ctx context.Context, opts ListOptions) (*ListResult[models.ExportEntry], error) {
	opts = normalizeListOptions(opts)

	where := ""
	args := []any{}
	if opts.Resource != "" {
		where = " WHERE resource = ?"
		args = append(args, opts.Resource)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM export_history`+where, args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count exports: %w", err)
	}

	orderDir := "DESC"
	if opts.SortOrder == "asc" {
		orderDir = "ASC"
	}

	//nolint:gosec // where and orderDir are built from constants above
	q := fmt.Sprintf(`SELECT %s FROM export_history%s ORDER BY created_at %s, id %s LIMIT ? OFFSET ?`,
		exportColumns, where, orderDir, orderDir)
	rows, err := r.db.QueryContext(ctx, q, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	entries := []models.ExportEntry{}
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}

	return &ListResult[models.ExportEntry]{Items: entries, Total: total}, nil
}

func (r *SQLiteExportRepository) Create(ctx context.Context, e *models.ExportEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_history (`+exportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Resource, e.Format, e.Source, e.RowsIn, e.RowsOut, e.Duplicates,
		e.Parameters, e.Requester, e.CreatedAt.UTC().Format(createdLayout),
	)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExport(s rowScanner) (*models.ExportEntry, error) {
	var e models.ExportEntry
	var created string
	if err := s.Scan(&e.ID, &e.Resource, &e.Format, &e.Source, &e.RowsIn, &e.RowsOut,
		&e.Duplicates, &e.Parameters, &e.Requester, &created); err != nil {
		return nil, err
	}
	t, err := time.Parse(createdLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	e.CreatedAt = t
	return &e, nil
}
