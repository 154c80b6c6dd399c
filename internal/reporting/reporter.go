// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
)

// Reporter defines the interface for writing scan results to an output.
type Reporter interface {
	// Write processes a single scan result.
	Write(result *schemas.ScanResult) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty or "stdout" path writes to standard output. The reporter takes
// ownership of the underlying writer; callers must Close it.
func New(format, outputPath string, logger *zap.Logger, toolVersion string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	// Closes the file handle when the format switch rejects the request.
	cleanup := func() {
		if !isStdOut {
			writer.Close()
		}
	}

	switch format {
	case "sarif":
		return NewSARIFReporter(writer, logger, toolVersion), nil
	case "json":
		return NewJSONReporter(writer, logger), nil
	case "text", "":
		return NewTextReporter(writer, logger), nil
	default:
		cleanup()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
