package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store provides PostgreSQL persistence for scan results.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// SaveScan persists a complete scan result in a single transaction: the scan
// row, the per-file outcomes, and every finding.
func (s *Store) SaveScan(ctx context.Context, result *schemas.ScanResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// errors.Is catches pgx.ErrTxClosed even when wrapped, so Rollback
		// after a successful Commit stays quiet.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	sqlInsertScan := `
        INSERT INTO scans (id, started_at, completed_at)
        VALUES ($1, $2, $3);
    `
	if _, err := tx.Exec(ctx, sqlInsertScan,
		result.ScanID, result.StartedAt.UTC(), result.CompletedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert scan %s: %w", result.ScanID, err)
	}

	if len(result.Files) > 0 {
		if err := s.persistFiles(ctx, tx, result.ScanID, result.Files); err != nil {
			return err
		}
	}

	findings := collectFindings(result)
	if len(findings) > 0 {
		if err := s.persistFindings(ctx, tx, result.ScanID, findings); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// collectFindings flattens per-file findings into a single slice for bulk insertion.
func collectFindings(result *schemas.ScanResult) []schemas.Finding {
	var findings []schemas.Finding
	for _, file := range result.Files {
		findings = append(findings, file.Findings...)
	}
	return findings
}

func (s *Store) persistFiles(ctx context.Context, tx pgx.Tx, scanID string, files []schemas.FileResult) error {
	rows := make([][]interface{}, len(files))
	for i, f := range files {
		// Empty slices instead of nil keep the array columns NOT NULL.
		violated := f.ViolatedPatterns
		if violated == nil {
			violated = []string{}
		}
		sanitizers := f.SanitizersApplied
		if sanitizers == nil {
			sanitizers = []string{}
		}

		rows[i] = []interface{}{
			scanID, f.Target, f.Vulnerable, violated, sanitizers, f.Error,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"scan_files"},
		[]string{"scan_id", "target", "vulnerable", "violated_patterns", "sanitizers_applied", "error"},
		pgx.CopyFromRows(rows),
	)

	if err != nil {
		return fmt.Errorf("failed to copy file results: %w", err)
	}
	if int(copyCount) != len(files) {
		return fmt.Errorf("mismatch in copied file count: expected %d, got %d", len(files), copyCount)
	}

	return nil
}

func (s *Store) persistFindings(ctx context.Context, tx pgx.Tx, scanID string, findings []schemas.Finding) error {
	rows := make([][]interface{}, len(findings))
	for i, f := range findings {
		// Timestamps go in as UTC to prevent ambiguity.
		observedAtUTC := f.ObservedAt.UTC()

		cwe := f.CWE
		if cwe == nil {
			cwe = []string{}
		}

		rows[i] = []interface{}{
			f.ID, scanID,
			f.Target, f.Module, f.VulnerabilityName,
			string(f.Severity), f.Description,
			f.Sink, f.Variable, f.Line,
			f.Recommendation, cwe,
			observedAtUTC,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"findings"},
		[]string{"id", "scan_id", "target", "module", "vulnerability_name", "severity", "description", "sink", "variable", "line", "recommendation", "cwe", "observed_at"},
		pgx.CopyFromRows(rows),
	)

	if err != nil {
		return fmt.Errorf("failed to copy findings: %w", err)
	}
	if int(copyCount) != len(findings) {
		return fmt.Errorf("mismatch in copied findings count: expected %d, got %d", len(findings), copyCount)
	}

	return nil
}

// GetScan reassembles a full scan result: the scan row, its file outcomes, and
// each file's findings.
func (s *Store) GetScan(ctx context.Context, scanID string) (*schemas.ScanResult, error) {
	result := &schemas.ScanResult{ScanID: scanID}

	sqlGetScan := `
        SELECT started_at, completed_at
        FROM scans
        WHERE id = $1;
    `
	scanRows, err := s.pool.Query(ctx, sqlGetScan, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan: %w", err)
	}
	defer scanRows.Close()

	if !scanRows.Next() {
		if err := scanRows.Err(); err != nil {
			return nil, fmt.Errorf("error during scan row iteration: %w", err)
		}
		return nil, fmt.Errorf("scan %s not found", scanID)
	}
	if err := scanRows.Scan(&result.StartedAt, &result.CompletedAt); err != nil {
		return nil, fmt.Errorf("failed to scan scan row: %w", err)
	}
	scanRows.Close()

	files, err := s.getFiles(ctx, scanID)
	if err != nil {
		return nil, err
	}

	findings, err := s.GetFindingsByScanID(ctx, scanID)
	if err != nil {
		return nil, err
	}

	// Reattach findings to their file by target.
	byTarget := make(map[string]int, len(files))
	for i, f := range files {
		byTarget[f.Target] = i
	}
	for _, finding := range findings {
		if i, ok := byTarget[finding.Target]; ok {
			files[i].Findings = append(files[i].Findings, finding)
		} else {
			s.log.Warn("Finding references an unknown target; dropping from file grouping",
				zap.String("scan_id", scanID),
				zap.String("target", finding.Target),
			)
		}
	}

	result.Files = files
	return result, nil
}

func (s *Store) getFiles(ctx context.Context, scanID string) ([]schemas.FileResult, error) {
	query := `
        SELECT target, vulnerable, violated_patterns, sanitizers_applied, error
        FROM scan_files
        WHERE scan_id = $1
        ORDER BY target ASC;
    `
	rows, err := s.pool.Query(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query file results: %w", err)
	}
	defer rows.Close()

	var files []schemas.FileResult
	for rows.Next() {
		var f schemas.FileResult
		if err := rows.Scan(&f.Target, &f.Vulnerable, &f.ViolatedPatterns, &f.SanitizersApplied, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan file result row: %w", err)
		}
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return files, nil
}

// GetFindingsByScanID returns every finding recorded for a scan, oldest first.
func (s *Store) GetFindingsByScanID(ctx context.Context, scanID string) ([]schemas.Finding, error) {
	query := `
        SELECT id, observed_at, target, module, vulnerability_name, severity, description, sink, variable, line, recommendation, cwe
        FROM findings
        WHERE scan_id = $1
        ORDER BY observed_at ASC;
    `
	rows, err := s.pool.Query(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []schemas.Finding
	for rows.Next() {
		var f schemas.Finding
		var severityStr string

		err := rows.Scan(
			&f.ID, &f.ObservedAt, &f.Target, &f.Module,
			&f.VulnerabilityName,
			&severityStr,
			&f.Description, &f.Sink, &f.Variable, &f.Line,
			&f.Recommendation, &f.CWE,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}

		f.Severity = schemas.Severity(severityStr)
		f.ScanID = scanID
		findings = append(findings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return findings, nil
}
