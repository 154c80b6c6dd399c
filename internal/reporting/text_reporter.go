// internal/reporting/text_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
)

// TextReporter renders a human-readable summary of a scan. It is thread safe.
type TextReporter struct {
	writer io.WriteCloser
	logger *zap.Logger

	mu sync.Mutex
}

// NewTextReporter creates a reporter that writes a plain-text summary.
// The reporter takes ownership of the writer.
func NewTextReporter(writer io.WriteCloser, logger *zap.Logger) *TextReporter {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &TextReporter{
		writer: writer,
		logger: logger.Named("text_reporter"),
	}
}

// Write renders the scan result immediately. Unlike the buffered formats,
// text output streams so partial results survive an interrupted run.
func (r *TextReporter) Write(result *schemas.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	duration := result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond)
	if _, err := fmt.Fprintf(r.writer, "Scan %s (%d files, %s)\n\n", result.ScanID, len(result.Files), duration); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}

	vulnerableFiles := 0
	for _, file := range result.Files {
		if err := r.writeFile(file); err != nil {
			return err
		}
		if file.Vulnerable {
			vulnerableFiles++
		}
	}

	summary := "\nNo taint flows detected.\n"
	if vulnerableFiles > 0 {
		summary = fmt.Sprintf("\n%d finding(s) across %d vulnerable file(s).\n",
			result.FindingCount(), vulnerableFiles)
	}
	if _, err := io.WriteString(r.writer, summary); err != nil {
		return fmt.Errorf("failed to write report summary: %w", err)
	}
	return nil
}

func (r *TextReporter) writeFile(file schemas.FileResult) error {
	status := "  OK "
	switch {
	case file.Error != "":
		status = " FAIL"
	case file.Vulnerable:
		status = " VULN"
	}

	if _, err := fmt.Fprintf(r.writer, "[%s] %s\n", status, file.Target); err != nil {
		return fmt.Errorf("failed to write file result: %w", err)
	}

	if file.Error != "" {
		if _, err := fmt.Fprintf(r.writer, "        %s\n", file.Error); err != nil {
			return err
		}
		return nil
	}

	for _, finding := range file.Findings {
		evidence := finding.Sink
		if finding.Variable != "" {
			evidence = fmt.Sprintf("$%s reaches %s", finding.Variable, finding.Sink)
		}
		if finding.Line > 0 {
			evidence = fmt.Sprintf("%s (line %d)", evidence, finding.Line)
		}
		if _, err := fmt.Fprintf(r.writer, "        %s [%s]: %s\n",
			finding.VulnerabilityName, finding.Severity, evidence); err != nil {
			return err
		}
	}

	for _, sanitizer := range file.SanitizersApplied {
		if _, err := fmt.Fprintf(r.writer, "        sanitized by %s\n", sanitizer); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the underlying writer.
func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
