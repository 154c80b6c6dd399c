package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// utcTime matches any time.Time that was normalized to UTC before insertion.
var utcTime = ArgumentMatcherFunc(func(v interface{}) bool {
	ts, ok := v.(time.Time)
	return ok && ts.Location() == time.UTC
})

const (
	sqlInsertScan = `
        INSERT INTO scans (id, started_at, completed_at)
        VALUES ($1, $2, $3);
    `
	sqlGetScan = `
        SELECT started_at, completed_at
        FROM scans
        WHERE id = $1;
    `
	sqlGetFiles = `
        SELECT target, vulnerable, violated_patterns, sanitizers_applied, error
        FROM scan_files
        WHERE scan_id = $1
        ORDER BY target ASC;
    `
	sqlGetFindings = `
        SELECT id, observed_at, target, module, vulnerability_name, severity, description, sink, variable, line, recommendation, cwe
        FROM findings
        WHERE scan_id = $1
        ORDER BY observed_at ASC;
    `
)

var (
	fileColumns = []string{"scan_id", "target", "vulnerable", "violated_patterns", "sanitizers_applied", "error"}

	findingColumns = []string{"id", "scan_id", "target", "module", "vulnerability_name", "severity", "description", "sink", "variable", "line", "recommendation", "cwe", "observed_at"}
)

// sampleScanResult builds a two-file result with one finding for persistence tests.
func sampleScanResult(scanID string) *schemas.ScanResult {
	started := time.Date(2025, 11, 20, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))
	return &schemas.ScanResult{
		ScanID:      scanID,
		StartedAt:   started,
		CompletedAt: started.Add(3 * time.Second),
		Files: []schemas.FileResult{
			{
				Target:            "app/login.php",
				Vulnerable:        true,
				ViolatedPatterns:  []string{"SQL Injection"},
				SanitizersApplied: []string{"mysql_real_escape_string"},
				Findings: []schemas.Finding{{
					ID:                "finding-1",
					ScanID:            scanID,
					ObservedAt:        started.Add(time.Second),
					Target:            "app/login.php",
					Module:            "php_taint",
					VulnerabilityName: "SQL Injection",
					Severity:          schemas.SeverityCritical,
					Description:       "Tainted input reaches a SQL sink.",
					Sink:              "mysql_query",
					Variable:          "q",
					Line:              3,
					Recommendation:    "Use parameterized queries.",
					CWE:               []string{"CWE-89"},
				}},
			},
			{Target: "app/safe.php"},
		},
	}
}

// -- Test Cases --

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveScan(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist a full scan successfully without rollback errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		observedLogger := zap.New(observedZapCore)

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, observedLogger)
		require.NoError(t, err)

		scanID := uuid.NewString()
		result := sampleScanResult(scanID)

		mockPool.ExpectBegin()

		// Scan row goes in first; timestamps must arrive as UTC.
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertScan)).
			WithArgs(scanID, utcTime, utcTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		// File outcomes and findings use CopyFrom.
		mockPool.ExpectCopyFrom(pgx.Identifier{"scan_files"}, fileColumns).
			WillReturnResult(2)
		mockPool.ExpectCopyFrom(pgx.Identifier{"findings"}, findingColumns).
			WillReturnResult(1)

		// Expect Commit AND the subsequent Rollback (which returns ErrTxClosed).
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.SaveScan(ctx, result))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should skip bulk inserts for an empty scan", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		scanID := uuid.NewString()
		result := &schemas.ScanResult{
			ScanID:      scanID,
			StartedAt:   time.Now(),
			CompletedAt: time.Now(),
		}

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertScan)).
			WithArgs(scanID, utcTime, utcTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		// No CopyFrom expectations: nothing else should be written.
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.SaveScan(ctx, result))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should handle transaction begin failure", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		beginErr := errors.New("cannot begin tx")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err = store.SaveScan(ctx, &schemas.ScanResult{ScanID: "s"})
		require.Error(t, err)
		assert.ErrorIs(t, err, beginErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should rollback if the scan insert fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		insertErr := errors.New("duplicate key")
		scanID := uuid.NewString()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertScan)).
			WithArgs(scanID, utcTime, utcTime).
			WillReturnError(insertErr)
		mockPool.ExpectRollback()

		err = store.SaveScan(ctx, &schemas.ScanResult{ScanID: scanID})
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should rollback if persisting findings fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		copyErr := errors.New("copy from failed")
		scanID := uuid.NewString()
		result := sampleScanResult(scanID)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertScan)).
			WithArgs(scanID, utcTime, utcTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"scan_files"}, fileColumns).
			WillReturnResult(2)
		mockPool.ExpectCopyFrom(pgx.Identifier{"findings"}, findingColumns).
			WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err = store.SaveScan(ctx, result)
		require.Error(t, err)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetScan(t *testing.T) {
	ctx := context.Background()

	t.Run("should reassemble files and findings", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		scanID := uuid.NewString()
		started := time.Date(2025, 11, 20, 15, 0, 0, 0, time.UTC)
		completed := started.Add(5 * time.Second)
		observed := started.Add(time.Second)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetScan)).
			WithArgs(scanID).
			WillReturnRows(pgxmock.NewRows([]string{"started_at", "completed_at"}).
				AddRow(started, completed))

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetFiles)).
			WithArgs(scanID).
			WillReturnRows(pgxmock.NewRows([]string{"target", "vulnerable", "violated_patterns", "sanitizers_applied", "error"}).
				AddRow("app/login.php", true, []string{"SQL Injection"}, []string{}, "").
				AddRow("app/safe.php", false, []string{}, []string{}, ""))

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetFindings)).
			WithArgs(scanID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "observed_at", "target", "module", "vulnerability_name", "severity", "description", "sink", "variable", "line", "recommendation", "cwe"}).
				AddRow("finding-1", observed, "app/login.php", "php_taint", "SQL Injection", "critical", "desc", "mysql_query", "q", 3, "reco", []string{"CWE-89"}))

		result, err := store.GetScan(ctx, scanID)
		require.NoError(t, err)

		assert.Equal(t, scanID, result.ScanID)
		assert.True(t, result.StartedAt.Equal(started))
		assert.True(t, result.CompletedAt.Equal(completed))

		require.Len(t, result.Files, 2)
		assert.Equal(t, "app/login.php", result.Files[0].Target)
		assert.True(t, result.Files[0].Vulnerable)
		require.Len(t, result.Files[0].Findings, 1)

		finding := result.Files[0].Findings[0]
		assert.Equal(t, "finding-1", finding.ID)
		assert.Equal(t, scanID, finding.ScanID)
		assert.Equal(t, schemas.SeverityCritical, finding.Severity)
		assert.Equal(t, "mysql_query", finding.Sink)
		assert.Equal(t, 3, finding.Line)

		// The clean file carries no findings.
		assert.Empty(t, result.Files[1].Findings)

		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report an unknown scan ID", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		scanID := uuid.NewString()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetScan)).
			WithArgs(scanID).
			WillReturnRows(pgxmock.NewRows([]string{"started_at", "completed_at"}))

		result, err := store.GetScan(ctx, scanID)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "not found")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetFindingsByScanID(t *testing.T) {
	ctx := context.Background()

	t.Run("should retrieve findings successfully", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		scanID := uuid.NewString()
		now := time.Now().UTC()

		columns := []string{"id", "observed_at", "target", "module", "vulnerability_name", "severity", "description", "sink", "variable", "line", "recommendation", "cwe"}
		rows := pgxmock.NewRows(columns).
			AddRow("finding-123", now, "app/login.php", "php_taint", "SQL Injection", "critical", "desc", "mysql_query", "q", 12, "reco", []string{"CWE-89"})

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetFindings)).
			WithArgs(scanID).
			WillReturnRows(rows)

		findings, err := store.GetFindingsByScanID(ctx, scanID)
		require.NoError(t, err)
		require.Len(t, findings, 1)

		assert.Equal(t, "finding-123", findings[0].ID)
		assert.Equal(t, scanID, findings[0].ScanID)
		assert.Equal(t, "SQL Injection", findings[0].VulnerabilityName)
		assert.Equal(t, schemas.SeverityCritical, findings[0].Severity)
		assert.Equal(t, 12, findings[0].Line)
		assert.Equal(t, []string{"CWE-89"}, findings[0].CWE)
		assert.True(t, findings[0].ObservedAt.Equal(now))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate query errors", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := New(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		queryErr := errors.New("connection reset")
		scanID := uuid.NewString()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetFindings)).
			WithArgs(scanID).
			WillReturnError(queryErr)

		findings, err := store.GetFindingsByScanID(ctx, scanID)
		require.Error(t, err)
		assert.Nil(t, findings)
		assert.ErrorIs(t, err, queryErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
