// internal/reporting/sarif_reporter.go
package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
	"github.com/xkilldash9x/lancet-cli/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "Lancet CLI"
	ToolInfoURI  = "https://github.com/xkilldash9x/lancet-cli"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// ruleIDSanitizer replaces characters not allowed in SARIF Rule IDs. We allow
// alphanumeric, underscore, and dot; everything else collapses to a single hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// RuleFingerprint uniquely identifies a rule definition based on its content.
type RuleFingerprint string

// calculateFingerprint generates a hash over the defining characteristics of a
// finding so identical rule definitions share one SARIF rule.
func calculateFingerprint(finding schemas.Finding) RuleFingerprint {
	// Sort CWEs to ensure consistent hashing regardless of input order.
	sortedCWEs := append([]string(nil), finding.CWE...)
	sort.Strings(sortedCWEs)

	data := struct {
		Name           string
		Description    string
		Recommendation string
		CWEs           []string
	}{
		Name:           finding.VulnerabilityName,
		Description:    finding.Description,
		Recommendation: finding.Recommendation,
		CWEs:           sortedCWEs,
	}

	h := sha1.New()
	// Encoding errors are highly unlikely for this simple struct.
	_ = json.NewEncoder(h).Encode(data)
	return RuleFingerprint(hex.EncodeToString(h.Sum(nil)))
}

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the maps.
	mu sync.Mutex
	// rulesByFingerprint maps a content fingerprint to the generated Rule ID.
	rulesByFingerprint map[RuleFingerprint]string
	// ruleIDUsage tracks how many times a base Rule ID has been used, to handle collisions.
	ruleIDUsage map[string]int
}

// NewSARIFReporter creates a reporter that buffers SARIF output and flushes it
// on Close. The reporter takes ownership of the writer.
func NewSARIFReporter(writer io.WriteCloser, logger *zap.Logger, toolVersion string) *SARIFReporter {
	if logger == nil {
		logger = observability.GetLogger()
	}
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						// Initialize empty slices (not nil) for proper JSON marshalling.
						Rules: []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:             writer,
		logger:             logger.Named("sarif_reporter"),
		log:                log,
		rulesByFingerprint: make(map[RuleFingerprint]string),
		ruleIDUsage:        make(map[string]int),
	}
}

// Write converts a scan result into SARIF results and adds them to the log.
func (r *SARIFReporter) Write(result *schemas.ScanResult) error {
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	findingsCount := 0

	for _, file := range result.Files {
		for _, finding := range file.Findings {
			ruleID := r.ensureRule(finding)

			messageText := finding.Description
			if messageText == "" {
				messageText = finding.VulnerabilityName
			}

			sarifResult := &sarif.Result{
				RuleID:    ruleID,
				Message:   &sarif.Message{Text: pString(messageText)},
				Level:     sarif.Level(mapSeverityToSARIFLevel(finding.Severity)),
				Locations: r.createLocations(finding),
			}
			run.Results = append(run.Results, sarifResult)
			findingsCount++
		}
	}

	if findingsCount > 0 {
		r.logger.Debug("Wrote findings to SARIF buffer",
			zap.Int("findings_count", findingsCount),
			zap.Duration("duration_ms", time.Since(startTime)),
		)
	}

	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var resultsCount, rulesCount int
	if len(r.log.Runs) > 0 && r.log.Runs[0] != nil {
		resultsCount = len(r.log.Runs[0].Results)
		if r.log.Runs[0].Tool != nil && r.log.Runs[0].Tool.Driver != nil {
			rulesCount = len(r.log.Runs[0].Tool.Driver.Rules)
		}
	}

	r.logger.Info("Finalizing SARIF report",
		zap.Int("total_results", resultsCount),
		zap.Int("total_rules", rulesCount),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ") // Pretty print

	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		// The encoding error wins as it indicates corrupted output.
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}

	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}

	r.logger.Debug("Successfully wrote SARIF report",
		zap.Duration("duration_ms", time.Since(startTime)),
	)

	return nil
}

// sanitizeRuleName creates a standardized base name for the rule ID.
func (r *SARIFReporter) sanitizeRuleName(name string) string {
	if name == "" {
		return "UNNAMED-VULNERABILITY"
	}

	sanitizedName := strings.ToUpper(name)
	sanitizedName = ruleIDSanitizer.ReplaceAllString(sanitizedName, "-")
	sanitizedName = strings.Trim(sanitizedName, "-")

	// Fallback for names that were nothing but symbols.
	if sanitizedName == "" {
		return "UNKNOWN-VULNERABILITY"
	}
	return sanitizedName
}

// ensureRule ensures a unique rule definition exists for the finding and
// returns its ID. Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(finding schemas.Finding) string {
	// Reuse the rule if we have already seen this exact definition.
	fingerprint := calculateFingerprint(finding)
	if ruleID, exists := r.rulesByFingerprint[fingerprint]; exists {
		return ruleID
	}

	baseName := r.sanitizeRuleName(finding.VulnerabilityName)
	baseRuleID := "LANCET-" + baseName

	// Track usage to generate suffixes when two distinct definitions share a name.
	usageCount := r.ruleIDUsage[baseRuleID]
	r.ruleIDUsage[baseRuleID] = usageCount + 1

	finalRuleID := baseRuleID
	if usageCount > 0 {
		finalRuleID = fmt.Sprintf("%s-%d", baseRuleID, usageCount)
		r.logger.Debug("Rule ID collision detected, generated new ID with suffix",
			zap.String("base_id", baseRuleID),
			zap.String("final_id", finalRuleID),
		)
	}

	r.logger.Debug("Registering new SARIF rule definition", zap.String("rule_id", finalRuleID))

	driver := r.log.Runs[0].Tool.Driver

	markdownHelp := fmt.Sprintf("**Vulnerability:** %s\n\n**Description:**\n%s\n\n**Recommendation:**\n%s",
		finding.VulnerabilityName, finding.Description, finding.Recommendation)

	newRule := &sarif.ReportingDescriptor{
		ID:               finalRuleID,
		Name:             pString(finding.VulnerabilityName),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(finding.VulnerabilityName)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(finding.Description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(finding.Recommendation),
			Markdown: pString(markdownHelp),
		},
		Properties: &sarif.PropertyBag{
			"tags":      []string{"security", "taint-flow"},
			"precision": "high",
			// The conversion stores []string in map[string]interface{}.
			"CWE": finding.CWE,
		},
	}
	driver.Rules = append(driver.Rules, newRule)
	r.rulesByFingerprint[fingerprint] = finalRuleID
	return finalRuleID
}

// createLocations converts finding details into SARIF location objects.
func (r *SARIFReporter) createLocations(finding schemas.Finding) []*sarif.Location {
	msgText := fmt.Sprintf("Tainted data reaches %q", finding.Sink)
	if finding.Variable != "" {
		msgText = fmt.Sprintf("Tainted variable $%s reaches %q", finding.Variable, finding.Sink)
	}

	location := &sarif.Location{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{
				URI: pString(finding.Target),
			},
		},
		Message: &sarif.Message{
			Text: pString(msgText),
		},
	}

	if finding.Line > 0 {
		line := finding.Line
		location.PhysicalLocation.Region = &sarif.Region{StartLine: &line}
	}

	return []*sarif.Location{location}
}

// mapSeverityToSARIFLevel converts Lancet's severity to the SARIF standard.
func mapSeverityToSARIFLevel(severity schemas.Severity) string {
	switch strings.ToLower(string(severity)) {
	case "critical", "high":
		return string(sarif.LevelError)
	case "medium":
		return string(sarif.LevelWarning)
	case "low", "info":
		return string(sarif.LevelNote)
	default:
		return string(sarif.LevelNote)
	}
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
