// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
)

// JSONReporter writes the scan result verbatim as pretty-printed JSON.
// It is thread safe.
type JSONReporter struct {
	writer io.WriteCloser
	logger *zap.Logger

	mu     sync.Mutex
	result *schemas.ScanResult
}

// NewJSONReporter creates a reporter that emits the raw scan result as JSON.
// The reporter takes ownership of the writer.
func NewJSONReporter(writer io.WriteCloser, logger *zap.Logger) *JSONReporter {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &JSONReporter{
		writer: writer,
		logger: logger.Named("json_reporter"),
	}
}

// Write buffers the scan result; the JSON document is emitted on Close.
// A second Write replaces the buffered result.
func (r *JSONReporter) Write(result *schemas.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.result != nil {
		r.logger.Warn("Replacing previously buffered scan result", zap.String("scan_id", result.ScanID))
	}
	r.result = result
	return nil
}

// Close serializes the buffered result and closes the writer.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var encodeErr error
	if r.result != nil {
		encoder := json.NewEncoder(r.writer)
		encoder.SetIndent("", "  ")
		encodeErr = encoder.Encode(r.result)
	}

	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode scan result to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode JSON output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
