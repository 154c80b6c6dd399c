// File: cmd/patterns.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/lancet-cli/internal/catalog"
	"github.com/xkilldash9x/lancet-cli/internal/config"
)

// newPatternsCmd creates the `patterns` command, which loads the active
// catalog, validates it, and prints what the analyzer would match against.
func newPatternsCmd() *cobra.Command {
	patternsCmd := &cobra.Command{
		Use:   "patterns",
		Short: "Lists and validates the active vulnerability pattern catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if file, _ := cmd.Flags().GetString("patterns"); file != "" {
				cfg.Analysis.PatternsFile = file
			}

			patterns, err := loadPatterns(cfg.Analysis)
			if err != nil {
				return fmt.Errorf("failed to load pattern catalog: %w", err)
			}
			for _, p := range patterns {
				if err := p.Validate(); err != nil {
					return fmt.Errorf("invalid pattern catalog: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			source := cfg.Analysis.PatternsFile
			if source == "" {
				source = "built-in"
			}
			fmt.Fprintf(out, "%d pattern(s) loaded from %s\n", len(patterns), source)
			for _, p := range patterns {
				fmt.Fprintf(out, "\n%s\n", p.Name)
				fmt.Fprintf(out, "  entry points: %s\n", strings.Join(p.EntryPoints, ", "))
				fmt.Fprintf(out, "  sanitizers:   %s\n", strings.Join(p.Sanitizers, ", "))
				fmt.Fprintf(out, "  sinks:        %s\n", strings.Join(p.Sinks, ", "))
			}
			return nil
		},
	}

	patternsCmd.Flags().StringP("patterns", "p", "", "Pattern catalog file to inspect instead of the configured one.")

	return patternsCmd
}

// loadPatterns resolves the pattern catalog for a run: a configured file is
// loaded in its configured or extension-inferred format, otherwise the
// built-in catalog applies.
func loadPatterns(cfg config.AnalysisConfig) ([]*catalog.Pattern, error) {
	if cfg.PatternsFile == "" {
		return catalog.Default(), nil
	}

	format := cfg.PatternsFormat
	if format == "" {
		if strings.EqualFold(filepath.Ext(cfg.PatternsFile), ".json") {
			format = "json"
		} else {
			format = "text"
		}
	}

	if format == "json" {
		f, err := os.Open(cfg.PatternsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open pattern catalog: %w", err)
		}
		defer f.Close()

		patterns, err := catalog.LoadJSON(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.PatternsFile, err)
		}
		return patterns, nil
	}
	return catalog.LoadFile(cfg.PatternsFile)
}
