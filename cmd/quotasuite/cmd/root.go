package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/streamhouse/quotasuite/internal/common"
	"github.com/streamhouse/quotasuite/internal/quotasuite"
	"github.com/streamhouse/quotasuite/internal/quotasuite/configuration"
	"github.com/streamhouse/quotasuite/internal/quotasuite/scenario"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quotasuite",
		Short: "quotasuite validates throughput quota enforcement of a cluster.",
		Long: `quotasuite validates throughput quota enforcement of a cluster.

It runs producers and consumers with different client identities against a
cluster configured with default and per-identity byte-rate quotas, scrapes
client- and broker-side metrics while the workload runs, and checks that no
observed rate exceeds its quota by more than the configured tolerance.

Cluster connection details, quota configuration, and the tolerance bands are
read from a config file; pass its directory with --config.`,
	}

	cmd.PersistentFlags().String("config", ".", "Directory containing the suite config file.")

	cmd.AddCommand(
		versionCmd(quotasuite.New()),
		runCmd(quotasuite.New()),
	)

	return cmd
}

// Print version info and exit.
func versionCmd(app *quotasuite.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Version()
		},
	}
	return cmd
}

// Run the quota scenarios and report a verdict for each.
func runCmd(app *quotasuite.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run quota-compliance scenarios against the cluster.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, app)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarioFilesPattern, err := cmd.Flags().GetString("scenarios")
			if err != nil {
				return err
			}
			scenarios, err := collectScenarios(scenarioFilesPattern)
			if err != nil {
				return err
			}

			// Create a context that is cancelled on SIGINT/SIGTERM.
			// Ensures in-flight workloads are stopped on ctrl-C.
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			stopSignal := make(chan os.Signal, 1)
			signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				select {
				case <-ctx.Done():
					return
				case <-stopSignal:
					cancel()
				}
			}()

			return app.Run(ctx, scenarios)
		},
	}

	cmd.Flags().String("scenarios", "", "Scenario file pattern, e.g., './scenarios/*.yaml'. Defaults to the built-in calibration set.")

	return cmd
}

// collectScenarios resolves the --scenarios flag. An empty pattern selects
// the built-in calibration set; a pattern matching no files is an error
// rather than a silently empty suite.
func collectScenarios(pattern string) ([]scenario.Scenario, error) {
	if pattern == "" {
		return scenario.DefaultScenarios(), nil
	}
	scenarioFiles, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(scenarioFiles) == 0 {
		return nil, errors.Errorf("no scenario files match %q", pattern)
	}
	var scenarios []scenario.Scenario
	for _, scenarioFile := range scenarioFiles {
		fromFile, err := scenario.ScenariosFromFile(scenarioFile)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, fromFile...)
	}
	return scenarios, nil
}

func initParams(cmd *cobra.Command, app *quotasuite.App) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	config := &configuration.SuiteConfig{}
	common.LoadConfig(config, configPath)
	app.Params.Config = config
	return nil
}
