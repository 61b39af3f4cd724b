// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/browser"
	"github.com/avasilev/shopbridge/internal/config"
	"github.com/avasilev/shopbridge/internal/observability"
	"github.com/avasilev/shopbridge/internal/reporting"
	"github.com/avasilev/shopbridge/internal/scenario"
	"github.com/avasilev/shopbridge/internal/shopapi"
	"github.com/avasilev/shopbridge/internal/store"
)

const shutdownTimeout = 15 * time.Second

// historyStore is the part of the run history database the CLI uses.
type historyStore interface {
	schemas.RunStore
	RecentRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	Close()
}

// Function variables so tests can replace the browser and the database.
var (
	newLauncher = browser.NewLauncher
	openStore   = func(ctx context.Context, url string, logger *zap.Logger) (historyStore, error) {
		s, err := store.Open(ctx, url, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run the end-to-end scenarios against the shop",
		Long: `Runs the selected scenarios (all of them by default) in their declared order.
Each scenario gets its own browser session. The exit code is 1 when any scenario fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Scenario.Include = args
			}
			return runScenarios(cmd, cfg)
		},
	}

	flags := runCmd.Flags()
	flags.StringP("format", "f", "text", "report format: text, json or junit")
	flags.StringP("output", "o", "stdout", "report destination file")
	flags.String("base-url", "", "shop base URL")
	flags.String("driver", "chromedp", "browser driver: chromedp or playwright")
	flags.IntP("concurrency", "j", 1, "number of scenarios run at once")
	flags.Bool("headless", true, "run the browser without a window")
	flags.Bool("reset-browser", true, "use a fresh browser session for the cart removal check")
	flagFor(runCmd, "format", "report.format")
	flagFor(runCmd, "output", "report.output")
	flagFor(runCmd, "base-url", "shop.base_url")
	flagFor(runCmd, "driver", "browser.driver")
	flagFor(runCmd, "concurrency", "browser.concurrency")
	flagFor(runCmd, "headless", "browser.headless")
	flagFor(runCmd, "reset-browser", "scenario.reset_browser")
	return runCmd
}

func runScenarios(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	scenarios, err := scenario.DefaultRegistry().Select(cfg.Scenario.Include)
	if err != nil {
		return err
	}

	var reporter reporting.Reporter
	if cfg.Report.Output == "" || cfg.Report.Output == "stdout" {
		reporter, err = reporting.NewToWriter(cfg.Report.Format, cmd.OutOrStdout())
	} else {
		reporter, err = reporting.New(cfg.Report.Format, cfg.Report.Output)
	}
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}
	defer func() {
		if cerr := reporter.Close(); cerr != nil {
			logger.Warn("Failed to close report", zap.Error(cerr))
		}
	}()

	api, err := shopapi.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create shop client: %w", err)
	}

	launcher, err := newLauncher(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create browser launcher: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if serr := launcher.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("Error during browser shutdown", zap.Error(serr))
		}
	}()

	// Run history is optional; a database that cannot be reached only costs the history.
	var runStore schemas.RunStore
	if cfg.Database.URL != "" {
		st, err := openStore(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Warn("Run history disabled: database unavailable", zap.Error(err))
		} else {
			defer st.Close()
			runStore = st
		}
	}

	logger.Info("Running scenarios",
		zap.Int("count", len(scenarios)),
		zap.String("base_url", cfg.Shop.BaseURL),
		zap.String("driver", cfg.Browser.Driver))

	run, runErr := scenario.NewRunner(cfg, api, launcher, runStore, logger).Run(ctx, scenarios)
	if err := reporter.Write(run); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if runErr != nil {
		return runErr
	}
	if run.Failed() {
		return ErrScenariosFailed
	}
	return nil
}
