package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Catalog persists published snapshots to sqlite so a restarted process
// can warm-start from the last published index instead of rescanning.
// The in-memory store stays authoritative; catalog failures never fail
// a job.
type Catalog struct {
	db *sql.DB
}

// NewCatalog opens (or creates) the catalog database.
func NewCatalog(ctx context.Context, dbPath string) (*Catalog, error) {
	// WAL mode allows readers alongside the single writer.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// SQLite doesn't support multiple writers well.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		workspace_id  TEXT NOT NULL,
		version       INTEGER NOT NULL,
		started_at    INTEGER NOT NULL,
		duration_ms   INTEGER NOT NULL,
		file_count    INTEGER NOT NULL,
		symbol_count  INTEGER NOT NULL,
		total_bytes   INTEGER NOT NULL,
		warning_count INTEGER NOT NULL,
		saved_at      INTEGER NOT NULL,
		PRIMARY KEY (workspace_id, version)
	);

	CREATE TABLE IF NOT EXISTS files (
		workspace_id TEXT NOT NULL,
		version      INTEGER NOT NULL,
		path         TEXT NOT NULL,
		lang         TEXT NOT NULL,
		hash         TEXT NOT NULL,
		size_bytes   INTEGER NOT NULL,
		mtime_unix   INTEGER NOT NULL,
		PRIMARY KEY (workspace_id, version, path)
	);

	CREATE TABLE IF NOT EXISTS symbols (
		workspace_id TEXT NOT NULL,
		version      INTEGER NOT NULL,
		path         TEXT NOT NULL,
		position     INTEGER NOT NULL,
		name         TEXT NOT NULL,
		kind         TEXT NOT NULL,
		start_line   INTEGER NOT NULL,
		end_line     INTEGER NOT NULL,
		signature    TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (workspace_id, version, path, position)
	);
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return nil
}

// SaveSnapshot writes a published snapshot, replacing any previous
// versions for the workspace.
func (c *Catalog) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin catalog tx: %w", err)
	}
	defer tx.Rollback()

	// Only the latest published version is retained.
	for _, table := range []string{"snapshots", "files", "symbols"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE workspace_id = ?", snap.workspaceID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	meta := snap.meta
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (workspace_id, version, started_at, duration_ms, file_count, symbol_count, total_bytes, warning_count, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.workspaceID, snap.version, meta.StartedAt.Unix(), meta.Duration.Milliseconds(),
		meta.FileCount, meta.SymbolCount, meta.TotalBytes, meta.WarningCount, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert snapshot row: %w", err)
	}

	fileStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (workspace_id, version, path, lang, hash, size_bytes, mtime_unix) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer fileStmt.Close()

	symStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO symbols (workspace_id, version, path, position, name, kind, start_line, end_line, signature) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare symbol insert: %w", err)
	}
	defer symStmt.Close()

	for i := range snap.files {
		file := &snap.files[i]
		if _, err := fileStmt.ExecContext(ctx, snap.workspaceID, snap.version,
			file.Path, string(file.Lang), file.Hash, file.SizeBytes, file.MtimeUnix); err != nil {
			return fmt.Errorf("failed to insert file %s: %w", file.Path, err)
		}
		for j := range file.Symbols {
			sym := &file.Symbols[j]
			if _, err := symStmt.ExecContext(ctx, snap.workspaceID, snap.version,
				file.Path, j, sym.Name, string(sym.Kind), sym.StartLine, sym.EndLine, sym.Signature); err != nil {
				return fmt.Errorf("failed to insert symbol %s: %w", sym.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog tx: %w", err)
	}
	return nil
}

// LatestVersion returns the newest saved version for a workspace, or 0.
func (c *Catalog) LatestVersion(ctx context.Context, workspaceID string) (uint64, error) {
	var version sql.NullInt64
	err := c.db.QueryRowContext(ctx,
		"SELECT MAX(version) FROM snapshots WHERE workspace_id = ?", workspaceID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query latest version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return uint64(version.Int64), nil
}

// LoadLatest reads the newest saved snapshot's files and metadata for a
// workspace. Returns version 0 when nothing is saved.
func (c *Catalog) LoadLatest(ctx context.Context, workspaceID string) ([]SourceFile, BuildMeta, uint64, error) {
	version, err := c.LatestVersion(ctx, workspaceID)
	if err != nil || version == 0 {
		return nil, BuildMeta{}, 0, err
	}

	var meta BuildMeta
	var startedAt, durationMs int64
	err = c.db.QueryRowContext(ctx,
		`SELECT started_at, duration_ms, file_count, symbol_count, total_bytes, warning_count
		 FROM snapshots WHERE workspace_id = ? AND version = ?`, workspaceID, version).
		Scan(&startedAt, &durationMs, &meta.FileCount, &meta.SymbolCount, &meta.TotalBytes, &meta.WarningCount)
	if err != nil {
		return nil, BuildMeta{}, 0, fmt.Errorf("failed to load snapshot row: %w", err)
	}
	meta.StartedAt = time.Unix(startedAt, 0)
	meta.Duration = time.Duration(durationMs) * time.Millisecond

	rows, err := c.db.QueryContext(ctx,
		`SELECT path, lang, hash, size_bytes, mtime_unix FROM files
		 WHERE workspace_id = ? AND version = ? ORDER BY path`, workspaceID, version)
	if err != nil {
		return nil, BuildMeta{}, 0, fmt.Errorf("failed to load files: %w", err)
	}
	defer rows.Close()

	var files []SourceFile
	byPath := make(map[string]int)
	for rows.Next() {
		var f SourceFile
		var lang string
		if err := rows.Scan(&f.Path, &lang, &f.Hash, &f.SizeBytes, &f.MtimeUnix); err != nil {
			return nil, BuildMeta{}, 0, fmt.Errorf("failed to scan file row: %w", err)
		}
		f.Lang = Language(lang)
		byPath[f.Path] = len(files)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, BuildMeta{}, 0, fmt.Errorf("failed to iterate files: %w", err)
	}

	symRows, err := c.db.QueryContext(ctx,
		`SELECT path, name, kind, start_line, end_line, signature FROM symbols
		 WHERE workspace_id = ? AND version = ? ORDER BY path, position`, workspaceID, version)
	if err != nil {
		return nil, BuildMeta{}, 0, fmt.Errorf("failed to load symbols: %w", err)
	}
	defer symRows.Close()

	for symRows.Next() {
		var path, kind string
		var sym Symbol
		if err := symRows.Scan(&path, &sym.Name, &kind, &sym.StartLine, &sym.EndLine, &sym.Signature); err != nil {
			return nil, BuildMeta{}, 0, fmt.Errorf("failed to scan symbol row: %w", err)
		}
		sym.Kind = SymbolKind(kind)
		sym.FilePath = path
		idx, ok := byPath[path]
		if !ok {
			continue
		}
		files[idx].Symbols = append(files[idx].Symbols, sym)
	}
	if err := symRows.Err(); err != nil {
		return nil, BuildMeta{}, 0, fmt.Errorf("failed to iterate symbols: %w", err)
	}

	return files, meta, version, nil
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
