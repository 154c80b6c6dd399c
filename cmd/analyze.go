package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/config"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
	"github.com/xkilldash9x/lancet-cli/internal/reporting"
	"github.com/xkilldash9x/lancet-cli/internal/scan"
	"github.com/xkilldash9x/lancet-cli/internal/store"
)

// newAnalyzeCmd creates and configures the `analyze` command.
func newAnalyzeCmd(v *viper.Viper) *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze [targets...]",
		Short: "Runs taint analysis against PHP files, directories or stdin",
		Long: `Analyzes each target for taint flows from entry points to sinks.
Targets are PHP files, directories (walked for .php and .json entries),
pre-parsed .json slice trees, or "-" to read a slice from stdin.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment with the right precedence.
			bindings := map[string]string{
				"analysis.concurrency":     "concurrency",
				"analysis.block_strategy":  "block-strategy",
				"analysis.patterns_file":   "patterns",
				"analysis.patterns_format": "patterns-format",
				"report.format":            "format",
				"report.output":            "output",
			}
			for key, flag := range bindings {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			// Re-unmarshal now that PreRunE bound the flags, so overrides
			// land with the right precedence.
			if err := v.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			// Populate the ScanConfig from command line arguments and final
			// config values.
			cfg.Scan.Targets = args
			cfg.Scan.Output = cfg.Report.Output
			cfg.Scan.Format = cfg.Report.Format
			cfg.Scan.Concurrency = cfg.Analysis.Concurrency
			cfg.Scan.FailOnFindings, _ = cmd.Flags().GetBool("fail-on-findings")
			forceAST, _ := cmd.Flags().GetBool("ast")
			persist, _ := cmd.Flags().GetBool("store")

			scanID := uuid.NewString()
			logger.Info("Starting new analysis",
				zap.String("scan_id", scanID),
				zap.Strings("targets", cfg.Scan.Targets),
				zap.Int("concurrency", cfg.Scan.Concurrency),
				zap.String("block_strategy", cfg.Analysis.BlockStrategy),
				zap.Bool("force_ast", forceAST),
			)

			patterns, err := loadPatterns(cfg.Analysis)
			if err != nil {
				return fmt.Errorf("failed to load pattern catalog: %w", err)
			}

			runner, err := scan.NewRunner(cfg.Analysis, patterns, logger, scan.WithForceAST(forceAST))
			if err != nil {
				return fmt.Errorf("failed to initialize analysis engine: %w", err)
			}

			result, err := runner.Run(ctx, scanID, cfg.Scan.Targets)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Analysis aborted gracefully", zap.String("scan_id", scanID))
					return fmt.Errorf("analysis aborted by user signal: %w", err)
				}
				logger.Error("Analysis failed", zap.Error(err), zap.String("scan_id", scanID))
				return err
			}

			if persist {
				if err := persistScan(ctx, cfg, result, logger); err != nil {
					return err
				}
			}

			if err := writeScanReport(result, cfg.Scan.Format, cfg.Scan.Output, logger); err != nil {
				return err
			}

			if cfg.Scan.Output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nAnalysis complete. Scan ID: %s. Report written to %s\n", scanID, cfg.Scan.Output)
			}

			if cfg.Scan.FailOnFindings && result.Vulnerable() {
				return fmt.Errorf("analysis reported %d finding(s)", result.FindingCount())
			}
			return nil
		},
	}

	// Reporting flags
	analyzeCmd.Flags().StringP("output", "o", "", "Report file path. If unset, the report prints to stdout.")
	analyzeCmd.Flags().StringP("format", "f", "text", "Report format ('text', 'json', 'sarif').")

	// Catalog flags
	analyzeCmd.Flags().StringP("patterns", "p", "", "Pattern catalog file. If unset, the built-in catalog applies.")
	analyzeCmd.Flags().String("patterns-format", "", "Catalog format ('text' or 'json'). Inferred from the extension when unset.")

	// Analysis override flags
	analyzeCmd.Flags().IntP("concurrency", "j", 0, "Number of files analyzed in parallel. (Overrides config/env)")
	analyzeCmd.Flags().String("block-strategy", "", "Branch modeling strategy ('first-match' or 'all'). (Overrides config/env)")
	analyzeCmd.Flags().Bool("ast", false, "Treat every target as a pre-parsed JSON slice tree.")

	// Outcome flags
	analyzeCmd.Flags().Bool("store", false, "Persist the scan to the configured database.")
	analyzeCmd.Flags().Bool("fail-on-findings", false, "Exit non-zero when any finding is reported.")

	return analyzeCmd
}

// persistScan stores the completed scan in PostgreSQL. The database URL must
// be configured when persistence is requested.
func persistScan(ctx context.Context, cfg *config.Config, result *schemas.ScanResult, logger *zap.Logger) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("persistence requested but the database URL is not configured (LANCET_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	dbStore, err := store.New(ctx, pool, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database store: %w", err)
	}
	if err := dbStore.SaveScan(ctx, result); err != nil {
		return fmt.Errorf("failed to persist scan: %w", err)
	}

	logger.Info("Scan persisted",
		zap.String("scan_id", result.ScanID),
		zap.Int("findings", result.FindingCount()),
	)
	return nil
}

// writeScanReport renders the result through the reporting module. Close is
// part of the happy path: the buffered formats emit their document there.
func writeScanReport(result *schemas.ScanResult, format, outputPath string, logger *zap.Logger) error {
	reporter, err := reporting.New(format, outputPath, logger, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}

	if err := reporter.Write(result); err != nil {
		if closeErr := reporter.Close(); closeErr != nil {
			logger.Warn("Failed to close reporter after write error", zap.Error(closeErr))
		}
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}

	if outputPath != "" {
		logger.Info("Report generated", zap.String("path", outputPath), zap.String("format", format))
	}
	return nil
}
