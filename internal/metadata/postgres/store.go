// Package postgres provides the PostgreSQL-backed PathRecord store: one row
// per project and one row per stored file path.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/novacode/novacode/pkg/logging"
)

// ErrNotFound is returned when a project or file row does not exist.
var ErrNotFound = errors.New("not found")

// Store is a PostgreSQL PathRecord store.
type Store struct {
	db *sql.DB
}

// Project maps to the projects table.
type Project struct {
	ID           string
	Name         string
	Description  string
	Organization string
	CreatedAt    time.Time
}

// FileRow maps to the project_files table. Path is relative to the project
// root, slash separated, without a leading slash.
type FileRow struct {
	ProjectID string
	Path      string
	Size      int64
	Hash      string
	ObjectKey string
	UpdatedAt time.Time
}

// New opens a store. driver is "postgres" (lib/pq) or "pgx" (pgx stdlib).
func New(driver, databaseURL string) (*Store, error) {
	if driver == "" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate runs the *.up.sql files in migrationsDir in name order.
func (s *Store) Migrate(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range files {
		logging.Info("running migration", logging.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}

	return nil
}

// CreateProject inserts a project row.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO projects (id, name, description, organization)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		p.ID, p.Name, p.Description, p.Organization).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject returns one project.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, organization, created_at
		 FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Organization, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	return &p, nil
}

// UpsertFile inserts or updates a file row.
func (s *Store) UpsertFile(ctx context.Context, f *FileRow) error {
	f.Path = normalizePath(f.Path)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_files (project_id, path, size, hash, object_key, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (project_id, path) DO UPDATE SET
			size = EXCLUDED.size,
			hash = EXCLUDED.hash,
			object_key = EXCLUDED.object_key,
			updated_at = NOW()`,
		f.ProjectID, f.Path, f.Size, f.Hash, f.ObjectKey)
	if err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}
	return nil
}

// GetFile returns the row for one path of a project.
func (s *Store) GetFile(ctx context.Context, projectID, path string) (*FileRow, error) {
	path = normalizePath(path)
	var f FileRow
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, path, size, hash, object_key, updated_at
		 FROM project_files WHERE project_id = $1 AND path = $2`, projectID, path).
		Scan(&f.ProjectID, &f.Path, &f.Size, &f.Hash, &f.ObjectKey, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s/%s: %w", projectID, path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query file: %w", err)
	}
	return &f, nil
}

// ListPaths returns every stored path of a project in path order. An
// unknown project has no paths.
func (s *Store) ListPaths(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM project_files WHERE project_id = $1 ORDER BY path`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return paths, nil
}

// DeleteFile removes one file row.
func (s *Store) DeleteFile(ctx context.Context, projectID, path string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM project_files WHERE project_id = $1 AND path = $2`, projectID, normalizePath(path))
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("file %s/%s: %w", projectID, path, ErrNotFound)
	}
	return nil
}

// normalizePath converts backslashes and strips leading and trailing slashes.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.Trim(p, "/")
}
