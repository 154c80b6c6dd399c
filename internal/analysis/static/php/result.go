package php

// Verdict is the engine's primary answer. Vulnerable is monotone within a
// run: once raised it never reverts. ViolatedPatterns lists pattern names in
// the order their sinks fired and is deliberately NOT deduplicated; a
// pattern hit twice appears twice. SanitizersApplied lists sanitizer callees
// in the order they fired, per matching pattern.
type Verdict struct {
	Vulnerable        bool     `json:"vulnerable"`
	ViolatedPatterns  []string `json:"violated_patterns,omitempty"`
	SanitizersApplied []string `json:"sanitizers_applied,omitempty"`
}

// Finding records one sink violation with enough context for reporting.
type Finding struct {
	Pattern  string `json:"pattern"`
	Callee   string `json:"callee"`
	Variable string `json:"variable,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// Diagnostics counts the degradation paths taken during a run. Each counter
// corresponds to a deliberate safe-default decision, observable so tests can
// assert that malformed input degrades instead of silently vanishing.
type Diagnostics struct {
	// SkippedStatements counts statement nodes of unrecognized kind.
	SkippedStatements int `json:"skipped_statements,omitempty"`
	// DefaultedExpressions counts expression nodes of unrecognized kind
	// that evaluated to the untainted default.
	DefaultedExpressions int `json:"defaulted_expressions,omitempty"`
	// MalformedNodes counts recognized nodes missing an expected field.
	MalformedNodes int `json:"malformed_nodes,omitempty"`
}

// Result is the full outcome of analyzing one slice.
type Result struct {
	Verdict
	Findings    []Finding   `json:"findings,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics,omitempty"`
}
