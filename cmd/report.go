// File: cmd/report.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/config"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
	"github.com/xkilldash9x/lancet-cli/internal/reporting"
	"github.com/xkilldash9x/lancet-cli/internal/store"
)

// scanStore is the slice of the store the report command consumes.
type scanStore interface {
	GetScan(ctx context.Context, scanID string) (*schemas.ScanResult, error)
}

// storeProvider abstracts store construction so tests can inject a mock
// instead of a live database connection.
type storeProvider interface {
	// Create initializes a scanStore and returns it with a cleanup function
	// to release resources.
	Create(ctx context.Context, cfg *config.Config) (scanStore, func(), error)
}

// defaultStoreProvider is the production storeProvider: it connects to the
// PostgreSQL database named by the configuration.
type defaultStoreProvider struct{}

// NewStoreProvider creates the production store provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to PostgreSQL, initializes the store, and returns it with
// a cleanup function that closes the connection pool.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg *config.Config) (scanStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (LANCET_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed")
	}
	return storeService, cleanup, nil
}

// newReportCmd creates and configures the `report` command.
func newReportCmd(provider storeProvider) *cobra.Command {
	var scanID string
	var outputPath string
	var format string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Re-renders a stored scan as a report",
		Long: `Loads a persisted scan from the database by its ID and renders it in
any supported report format, without re-running the analysis.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			// Delegate to the testable core logic function.
			return runReport(ctx, logger, cfg, scanID, outputPath, format, provider)
		},
	}

	reportCmd.Flags().StringVar(&scanID, "scan-id", "", "The ID of the scan to render (required)")
	_ = reportCmd.MarkFlagRequired("scan-id")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Report file path. If unset, the report prints to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", "text", "Report format ('text', 'json', 'sarif').")

	return reportCmd
}

// runReport contains the core, testable logic for rendering a stored scan.
func runReport(
	ctx context.Context,
	logger *zap.Logger,
	cfg *config.Config,
	scanID, outputPath, format string,
	provider storeProvider,
) error {
	logger.Info("Starting report generation", zap.String("scan_id", scanID))

	storeService, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	// Mocks may omit the cleanup.
	if cleanup != nil {
		defer cleanup()
	}

	result, err := storeService.GetScan(ctx, scanID)
	if err != nil {
		logger.Error("Failed to load scan", zap.Error(err), zap.String("scan_id", scanID))
		return fmt.Errorf("failed to load scan: %w", err)
	}

	if err := writeScanReport(result, format, outputPath, logger); err != nil {
		return err
	}

	if outputPath != "" {
		logger.Info("Report successfully written to file", zap.String("path", outputPath))
	}
	return nil
}
