package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/json-iterator/go"
)

// recordDelimiter separates pattern records in the textual catalog format.
const recordDelimiter = "-"

// Load parses the textual catalog format: records of exactly four field
// lines (name, entry-point CSV, sanitizer CSV, sink CSV) each closed by a
// lone "-" line. Blank lines between records are tolerated; a record missing
// its delimiter is an error.
func Load(r io.Reader) ([]*Pattern, error) {
	scanner := bufio.NewScanner(r)

	var patterns []*Pattern
	var fields []string
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == recordDelimiter {
			if len(fields) != 4 {
				return nil, fmt.Errorf("pattern record ending at line %d has %d field lines, want 4", lineNo, len(fields))
			}
			patterns = append(patterns, New(
				strings.TrimSpace(fields[0]),
				splitList(fields[1]),
				splitList(fields[2]),
				splitList(fields[3]),
			))
			fields = fields[:0]
			continue
		}
		if strings.TrimSpace(line) == "" && len(fields) == 0 {
			continue
		}
		fields = append(fields, line)
		if len(fields) > 4 {
			return nil, fmt.Errorf("pattern record at line %d exceeds 4 field lines without a %q delimiter", lineNo, recordDelimiter)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pattern catalog: %w", err)
	}
	if len(fields) != 0 {
		return nil, fmt.Errorf("pattern catalog ends mid-record, missing %q delimiter", recordDelimiter)
	}
	return patterns, nil
}

// LoadFile loads a textual catalog from disk.
func LoadFile(path string) ([]*Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern catalog: %w", err)
	}
	defer f.Close()

	patterns, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return patterns, nil
}

// LoadJSON parses a catalog serialized as a JSON array of pattern objects.
func LoadJSON(r io.Reader) ([]*Pattern, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern catalog: %w", err)
	}
	var patterns []*Pattern
	if err := json.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("failed to decode pattern catalog: %w", err)
	}
	for _, p := range patterns {
		p.index()
	}
	return patterns, nil
}

// splitList splits a comma-separated field line, trimming whitespace and
// dropping empty elements, so a blank line yields an empty list.
func splitList(line string) []string {
	parts := strings.Split(line, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
