package schemas

import (
	"time"
)

// -- Finding Schemas --

// Severity represents the severity level of a security finding, ranging from
// critical to informational. The values are lowercase to align with database ENUMs.
type Severity string

// Constants defining the standard severity levels for findings.
const (
	SeverityCritical Severity = "critical" // Represents a critical vulnerability.
	SeverityHigh     Severity = "high"     // Represents a high-severity vulnerability.
	SeverityMedium   Severity = "medium"   // Represents a medium-severity vulnerability.
	SeverityLow      Severity = "low"      // Represents a low-severity vulnerability.
	SeverityInfo     Severity = "info"     // Represents an informational finding.
)

// Finding encapsulates all the details of a single taint flow identified by
// a scan: the pattern it violated, where the flow ended, and the evidence
// needed to locate it in the source. This struct maps directly to the
// `findings` table in the database.
type Finding struct {
	ID     string `json:"id"`      // Unique identifier for the finding.
	ScanID string `json:"scan_id"` // The ID of the scan that produced this finding.

	// ObservedAt is the timestamp when the finding was discovered.
	ObservedAt time.Time `json:"observed_at"`

	Target string `json:"target"` // The file or slice the flow was found in.
	Module string `json:"module"` // The name of the analysis module that reported the finding.

	// VulnerabilityName is the violated pattern's name (e.g., "SQL Injection").
	VulnerabilityName string `json:"vulnerability_name"`

	Severity    Severity `json:"severity"`    // The severity level of the finding.
	Description string   `json:"description"` // A detailed description of the flow.

	Sink     string `json:"sink"`               // The sink the tainted data reached.
	Variable string `json:"variable,omitempty"` // The tainted variable at the sink, if any.
	Line     int    `json:"line,omitempty"`     // The 1-based source line of the sink.

	Recommendation string   `json:"recommendation"` // Suggested steps for remediation.
	CWE            []string `json:"cwe,omitempty"`  // A list of relevant Common Weakness Enumeration (CWE) identifiers.
}

// FileResult is the complete analysis outcome for one target file.
type FileResult struct {
	Target string `json:"target"` // The analyzed file, or "-" for stdin.

	Vulnerable bool `json:"vulnerable"` // Whether any taint flow reached a sink.

	// ViolatedPatterns lists the pattern name once per detected flow, in
	// detection order. Repeats are intentional.
	ViolatedPatterns []string `json:"violated_patterns"`

	// SanitizersApplied lists each sanitizer application observed during
	// the run, in application order.
	SanitizersApplied []string `json:"sanitizers_applied"`

	Findings []Finding `json:"findings,omitempty"` // The individual flows.

	// Error carries the per-file failure when the target could not be
	// analyzed at all; the scan continues past it.
	Error string `json:"error,omitempty"`
}

// ScanResult aggregates the file results of one scan invocation.
type ScanResult struct {
	ScanID      string       `json:"scan_id"`      // Unique identifier for the scan.
	StartedAt   time.Time    `json:"started_at"`   // When the scan began.
	CompletedAt time.Time    `json:"completed_at"` // When the scan finished.
	Files       []FileResult `json:"files"`        // Per-target outcomes, ordered by target.
}

// Vulnerable reports whether any file in the scan produced a flow.
func (r *ScanResult) Vulnerable() bool {
	for _, file := range r.Files {
		if file.Vulnerable {
			return true
		}
	}
	return false
}

// FindingCount returns the total number of findings across all files.
func (r *ScanResult) FindingCount() int {
	count := 0
	for _, file := range r.Files {
		count += len(file.Findings)
	}
	return count
}
