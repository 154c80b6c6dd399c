// File: internal/scan/severity.go
package scan

import "github.com/xkilldash9x/lancet-cli/api/schemas"

// patternMetadata carries the reporting attributes attached to findings of
// a known pattern name.
type patternMetadata struct {
	Severity       schemas.Severity
	Recommendation string
	CWE            []string
}

// metadataByPattern maps the built-in catalog's pattern names onto report
// metadata. Custom catalog patterns outside this table get defaultMetadata.
var metadataByPattern = map[string]patternMetadata{
	"SQL Injection": {
		Severity:       schemas.SeverityCritical,
		Recommendation: "Use parameterized queries or prepared statements instead of building SQL from request data.",
		CWE:            []string{"CWE-89"},
	},
	"Cross Site Scripting": {
		Severity:       schemas.SeverityHigh,
		Recommendation: "Encode output with htmlspecialchars or an equivalent context-aware encoder before rendering request data.",
		CWE:            []string{"CWE-79"},
	},
}

// defaultMetadata is the fallback for patterns the table does not know.
var defaultMetadata = patternMetadata{
	Severity:       schemas.SeverityMedium,
	Recommendation: "Route request data through a sanitizer appropriate for the sink before it is consumed.",
	CWE:            []string{"CWE-20"},
}

func metadataFor(pattern string) patternMetadata {
	if meta, ok := metadataByPattern[pattern]; ok {
		return meta
	}
	return defaultMetadata
}
