package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"den/internal/annotation"
	"den/internal/index"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS files (
			path TEXT PRIMARY KEY,
			content_hash TEXT,
			fatal JSON,
			err TEXT,
			scanned_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS regions (
			id TEXT PRIMARY KEY,
			path TEXT,
			ordinal INTEGER,
			name TEXT,
			call_line INTEGER,
			attributes INTEGER,
			items INTEGER,
			start_line INTEGER,
			output INTEGER,
			end_line INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS warnings (
			path TEXT,
			line INTEGER,
			kind TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_regions_file ON regions(path);`,
		`CREATE INDEX IF NOT EXISTS idx_warnings_file ON warnings(path);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

const (
	upsertFileSQL = `
		INSERT INTO files (path, content_hash, fatal, err, scanned_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash=excluded.content_hash,
			fatal=excluded.fatal,
			err=excluded.err,
			scanned_at=excluded.scanned_at
	`
	upsertRegionSQL = `
		INSERT INTO regions (id, path, ordinal, name, call_line, attributes, items, start_line, output, end_line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path=excluded.path,
			ordinal=excluded.ordinal,
			name=excluded.name,
			call_line=excluded.call_line,
			attributes=excluded.attributes,
			items=excluded.items,
			start_line=excluded.start_line,
			output=excluded.output,
			end_line=excluded.end_line
	`
	insertWarningSQL = `INSERT INTO warnings (path, line, kind) VALUES (?, ?, ?)`

	selectRegionColumns = `SELECT id, path, ordinal, name, call_line, attributes, items, start_line, output, end_line FROM regions`
)

// statements groups the prepared statements of one write transaction.
type statements struct {
	file, region, warning *sql.Stmt
}

func prepare(ctx context.Context, tx *sql.Tx) (*statements, error) {
	file, err := tx.PrepareContext(ctx, upsertFileSQL)
	if err != nil {
		return nil, err
	}
	region, err := tx.PrepareContext(ctx, upsertRegionSQL)
	if err != nil {
		file.Close()
		return nil, err
	}
	warning, err := tx.PrepareContext(ctx, insertWarningSQL)
	if err != nil {
		file.Close()
		region.Close()
		return nil, err
	}
	return &statements{file: file, region: region, warning: warning}, nil
}

func (st *statements) Close() {
	st.file.Close()
	st.region.Close()
	st.warning.Close()
}

func (st *statements) writeFile(ctx context.Context, f *index.FileResult, now int64) error {
	var fatal []byte
	if f.Fatal != nil {
		var err error
		if fatal, err = json.Marshal(f.Fatal); err != nil {
			return fmt.Errorf("failed to encode fatal error for %s: %w", f.Path, err)
		}
	}
	if _, err := st.file.ExecContext(ctx, f.Path, f.ContentHash, fatal, f.Err, now); err != nil {
		return err
	}

	for _, r := range f.Regions {
		if _, err := st.region.ExecContext(ctx,
			r.ID, f.Path, r.Ordinal, r.Name, r.Call,
			nullLine(r.Attributes), nullLine(r.Items), nullLine(r.Start), nullLine(r.Output), nullLine(r.End),
		); err != nil {
			return err
		}
	}

	for _, w := range f.Warnings {
		if _, err := st.warning.ExecContext(ctx, f.Path, w.Line, w.Kind.String()); err != nil {
			return err
		}
	}
	return nil
}

// --- IndexStore Implementation ---

// SaveIndex performs a snapshot sync: rows of files no longer in x are
// removed.
func (s *SQLiteStore) SaveIndex(ctx context.Context, x *index.Index) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM warnings", "DELETE FROM regions", "DELETE FROM files"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}

	st, err := prepare(ctx, tx)
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now().Unix()
	for _, f := range x.Files {
		if err := st.writeFile(ctx, f, now); err != nil {
			return fmt.Errorf("failed to save %s: %w", f.Path, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) SaveFile(ctx context.Context, f *index.FileResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteFileRows(ctx, tx, f.Path, false); err != nil {
		return err
	}

	st, err := prepare(ctx, tx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.writeFile(ctx, f, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save %s: %w", f.Path, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteFile(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteFileRows(ctx, tx, path, true); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteFileRows(ctx context.Context, tx *sql.Tx, path string, withFile bool) error {
	queries := []string{
		"DELETE FROM warnings WHERE path = ?",
		"DELETE FROM regions WHERE path = ?",
	}
	if withFile {
		queries = append(queries, "DELETE FROM files WHERE path = ?")
	}
	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q, path); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) LoadIndex(ctx context.Context, root string) (*index.Index, error) {
	x := index.NewIndex(root)
	files := make(map[string]*index.FileResult)

	// 1. Load Files
	rows, err := s.db.QueryContext(ctx, "SELECT path, content_hash, fatal, err FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		f := &index.FileResult{Regions: []index.RegionRecord{}, Warnings: []annotation.Warning{}}
		var fatal []byte
		var errText sql.NullString
		if err := rows.Scan(&f.Path, &f.ContentHash, &fatal, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.Err = errText.String
		if len(fatal) > 0 {
			f.Fatal = &index.Fatal{}
			if err := json.Unmarshal(fatal, f.Fatal); err != nil {
				return nil, fmt.Errorf("failed to decode fatal error for %s: %w", f.Path, err)
			}
		}
		files[f.Path] = f
		x.Files = append(x.Files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 2. Load Regions
	regions, err := s.queryRegions(ctx, selectRegionColumns+" ORDER BY path, ordinal")
	if err != nil {
		return nil, err
	}
	for _, r := range regions {
		if f, ok := files[r.Path]; ok {
			f.Regions = append(f.Regions, r)
		}
	}

	// 3. Load Warnings
	wrows, err := s.db.QueryContext(ctx, "SELECT path, line, kind FROM warnings ORDER BY path, rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings: %w", err)
	}
	defer wrows.Close()

	for wrows.Next() {
		var path, kind string
		var w annotation.Warning
		if err := wrows.Scan(&path, &w.Line, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan warning: %w", err)
		}
		k, ok := annotation.ParseWarningKind(kind)
		if !ok {
			continue
		}
		w.Kind = k
		if f, ok := files[path]; ok {
			f.Warnings = append(f.Warnings, w)
		}
	}
	if err := wrows.Err(); err != nil {
		return nil, err
	}

	x.RebuildIndices()
	return x, nil
}

func (s *SQLiteStore) FindRegionsByFile(ctx context.Context, path string) ([]index.RegionRecord, error) {
	return s.queryRegions(ctx, selectRegionColumns+" WHERE path = ? ORDER BY ordinal", path)
}

func (s *SQLiteStore) FileHash(ctx context.Context, path string) (string, bool, error) {
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT content_hash FROM files WHERE path = ?", path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash.String, true, nil
}

func (s *SQLiteStore) queryRegions(ctx context.Context, query string, args ...any) ([]index.RegionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query regions: %w", err)
	}
	defer rows.Close()

	var out []index.RegionRecord
	for rows.Next() {
		var r index.RegionRecord
		var attrs, items, start, output, end sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Path, &r.Ordinal, &r.Name, &r.Call, &attrs, &items, &start, &output, &end); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		r.Attributes = lineMark(attrs)
		r.Items = lineMark(items)
		r.Start = lineMark(start)
		r.Output = lineMark(output)
		r.End = lineMark(end)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullLine(m annotation.LineMark) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(m.Line), Valid: m.Valid}
}

func lineMark(n sql.NullInt64) annotation.LineMark {
	if !n.Valid {
		return annotation.LineMark{}
	}
	return annotation.At(int(n.Int64))
}
