package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/lakerun/lakerun/internal/engine"
	"github.com/lakerun/lakerun/internal/evidence"
)

const mode = "local"

type Config struct {
	Database    string
	DataDir     string
	ParquetGlob string
}

// Engine executes statements against an embedded in-memory DuckDB. Every
// Submit is synchronous: the statement runs to completion and the returned
// handle is already terminal, so callers never enter a polling loop.
//
// Instead of running table DDL, the engine registers one view per dataset
// directory under DataDir, so the same query text works against the cloud
// catalog and the local parquet files.
type Engine struct {
	cfg      Config
	evidence *evidence.Store
	logger   *slog.Logger

	mu        sync.Mutex
	sequence  int
	artifacts map[string]engine.Artifact
}

func NewEngine(cfg Config, ev *evidence.Store, logger *slog.Logger) (*Engine, error) {
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, fmt.Errorf("database is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if cfg.ParquetGlob == "" {
		cfg.ParquetGlob = "year=*/*.parquet"
	}
	return &Engine{
		cfg:       cfg,
		evidence:  ev,
		logger:    logger,
		artifacts: map[string]engine.Artifact{},
	}, nil
}

func (e *Engine) Submit(ctx context.Context, stmt engine.Statement) (engine.Handle, error) {
	if strings.TrimSpace(stmt.SQL) == "" {
		return engine.Handle{}, fmt.Errorf("sql is required")
	}

	handle := engine.Handle{
		ID:     e.nextID(),
		Name:   stmt.Name,
		DDL:    stmt.DDL,
		Status: engine.StatusSucceeded,
	}

	// Table DDL targets the cloud catalog; locally the dataset views stand
	// in for the external tables, so DDL statements succeed without work.
	if stmt.DDL {
		if e.logger != nil {
			e.logger.DebugContext(ctx, "ddl skipped in local mode", slog.String("statement", stmt.Name))
		}
		e.storeArtifact(handle.ID, engine.Artifact{RowCount: -1})
		return handle, nil
	}

	start := time.Now()
	artifact, err := e.runQuery(ctx, stmt)
	if err != nil {
		return engine.Handle{}, &engine.ExecutionError{
			Query:      stmt.Name,
			Mode:       mode,
			State:      engine.StatusFailed,
			Diagnostic: err.Error(),
		}
	}
	e.storeArtifact(handle.ID, artifact)

	if e.logger != nil {
		e.logger.InfoContext(ctx, "local query executed",
			slog.String("query", stmt.Name),
			slog.Int64("rows", artifact.RowCount),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return handle, nil
}

// Poll never observes an in-flight execution; every handle issued by Submit
// is already terminal.
func (e *Engine) Poll(_ context.Context, handle engine.Handle) (engine.Status, error) {
	if !handle.Status.Terminal() {
		return "", fmt.Errorf("unknown local execution %q", handle.ID)
	}
	return handle.Status, nil
}

func (e *Engine) Fetch(_ context.Context, handle engine.Handle) (engine.Artifact, error) {
	e.mu.Lock()
	artifact, ok := e.artifacts[handle.ID]
	e.mu.Unlock()
	if !ok {
		return engine.Artifact{}, fmt.Errorf("unknown local execution %q", handle.ID)
	}
	return artifact, nil
}

func (e *Engine) runQuery(ctx context.Context, stmt engine.Statement) (engine.Artifact, error) {
	datasets, err := e.discoverDatasets()
	if err != nil {
		return engine.Artifact{}, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return engine.Artifact{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	schemaSQL := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdent(e.cfg.Database))
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return engine.Artifact{}, fmt.Errorf("create schema %q: %w", e.cfg.Database, err)
	}

	for _, dataset := range datasets {
		pattern := filepath.ToSlash(filepath.Join(e.cfg.DataDir, dataset, e.cfg.ParquetGlob))
		viewSQL := fmt.Sprintf(
			`CREATE OR REPLACE VIEW %s.%s AS SELECT * FROM read_parquet(%s, hive_partitioning = true)`,
			quoteIdent(e.cfg.Database), quoteIdent(dataset), quoteString(pattern),
		)
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			return engine.Artifact{}, fmt.Errorf("create view for dataset %q: %w", dataset, err)
		}
	}

	sqlText := stripTrailingSemicolons(stmt.SQL)
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return engine.Artifact{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return engine.Artifact{}, fmt.Errorf("query columns: %w", err)
	}

	records := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return engine.Artifact{}, fmt.Errorf("scan row: %w", err)
		}
		record := make(map[string]any, len(columns))
		for i, column := range columns {
			record[column] = normalizeValue(values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return engine.Artifact{}, fmt.Errorf("iterate rows: %w", err)
	}

	artifact := engine.Artifact{RowCount: int64(len(records))}
	if e.evidence != nil {
		location, err := e.evidence.WriteJSON("duckdb", stmt.Name, records)
		if err != nil {
			return engine.Artifact{}, err
		}
		artifact.Location = location
	}
	return artifact, nil
}

// discoverDatasets treats every directory under DataDir as one dataset. A
// missing DataDir is not an error; queries that reference no dataset views
// can still run.
func (e *Engine) discoverDatasets() ([]string, error) {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data directory %q: %w", e.cfg.DataDir, err)
	}
	datasets := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			datasets = append(datasets, entry.Name())
		}
	}
	return datasets, nil
}

func (e *Engine) nextID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sequence++
	return fmt.Sprintf("local-%05d", e.sequence)
}

func (e *Engine) storeArtifact(id string, artifact engine.Artifact) {
	e.mu.Lock()
	e.artifacts[id] = artifact
	e.mu.Unlock()
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
