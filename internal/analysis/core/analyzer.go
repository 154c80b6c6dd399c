package core

import (
	"go.uber.org/zap"
)

// AnalyzerType classifies analysis modules by how they obtain their input.
type AnalyzerType string

const (
	// TypeStatic analyzers operate on parsed artifacts without executing
	// or contacting anything.
	TypeStatic AnalyzerType = "STATIC"
)

// Analyzer is the metadata contract every analysis module implements, used
// for registry listings and startup logging. Engines expose their concrete
// Analyze entry points with typed results.
type Analyzer interface {
	Name() string
	Description() string
	Type() AnalyzerType
}

// BaseAnalyzer carries the common identity fields. It is intended to be
// embedded by concrete engines to satisfy the Analyzer interface.
type BaseAnalyzer struct {
	name         string
	description  string
	analyzerType AnalyzerType
	Logger       *zap.Logger // Exposed for use by the embedding engine.
}

// NewBaseAnalyzer builds the embeddable base, deriving a named sub-logger
// for the engine.
func NewBaseAnalyzer(name, description string, analyzerType AnalyzerType, logger *zap.Logger) *BaseAnalyzer {
	return &BaseAnalyzer{
		name:         name,
		description:  description,
		analyzerType: analyzerType,
		Logger:       logger.Named(name),
	}
}

// Name returns the analyzer's name.
func (b *BaseAnalyzer) Name() string {
	return b.name
}

// Description returns the analyzer's description.
func (b *BaseAnalyzer) Description() string {
	return b.description
}

// Type returns the analyzer's classification.
func (b *BaseAnalyzer) Type() AnalyzerType {
	return b.analyzerType
}
