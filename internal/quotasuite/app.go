// Package quotasuite verifies that a cluster's per-client throughput
// quotas provide the expected functionality: it runs producers and
// consumers with different client identities against a cluster brought up
// with default and overridden quota configuration, and checks that the
// observed throughput stays close to the values we expect.
package quotasuite

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/streamhouse/quotasuite/internal/common/suitemetrics"
	"github.com/streamhouse/quotasuite/internal/quotasuite/build"
	"github.com/streamhouse/quotasuite/internal/quotasuite/cluster"
	"github.com/streamhouse/quotasuite/internal/quotasuite/configuration"
	"github.com/streamhouse/quotasuite/internal/quotasuite/scenario"
	"github.com/streamhouse/quotasuite/internal/quotasuite/workload"
)

type App struct {
	// Parameters passed to the CLI by the user.
	Params *Params
	// Out is used to write the output. Defaults to standard out,
	// but can be overridden in tests to make assertions on the application's output.
	Out io.Writer
	// Source of randomness for record payloads. Tests can use a mocked
	// random source in order to provide deterministic behavior.
	Random io.Reader
}

// Params struct holds all user-customizable parameters.
type Params struct {
	Config *configuration.SuiteConfig
}

// New instantiates an App with default parameters, including standard output
// and cryptographically secure random source.
func New() *App {
	return &App{
		Params: &Params{},
		Out:    os.Stdout,
		Random: rand.Reader,
	}
}

func (a *App) validateParams() error {
	if a.Params.Config == nil {
		return errors.New("no configuration provided")
	}
	return a.Params.Config.Validate()
}

// Version prints build information (e.g., current git commit) to the app output.
func (a *App) Version() error {
	w := tabwriter.NewWriter(a.Out, 1, 1, 1, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "Version:\t%s\n", build.ReleaseVersion)
	fmt.Fprintf(w, "Commit:\t%s\n", build.GitCommit)
	fmt.Fprintf(w, "Go version:\t%s\n", build.GoVersion)
	fmt.Fprintf(w, "Built:\t%s\n", build.BuildTime)
	return nil
}

// Run brings the cluster to the state every scenario assumes (quotas
// applied, topic present) and then executes the scenarios sequentially.
// Scenarios are independent test cases: a failing one never aborts the
// rest. Returns an error if any scenario failed.
func (a *App) Run(ctx context.Context, scenarios []scenario.Scenario) error {
	if err := a.validateParams(); err != nil {
		return err
	}
	config := a.Params.Config

	a.serveMetrics(ctx)

	admin := cluster.NewAdminClient(&config.Cluster)
	if err := admin.AwaitReady(ctx); err != nil {
		return err
	}
	if err := admin.ApplyQuotas(ctx, &config.Quotas); err != nil {
		return err
	}
	if err := admin.EnsureTopic(ctx, config.Workload.Topic, config.Workload.Partitions); err != nil {
		return err
	}

	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL: config.Cluster.ServiceURL,
	})
	if err != nil {
		return errors.WithMessage(err, "error connecting to cluster")
	}
	defer client.Close()
	drivers := &workload.PulsarDrivers{Client: client, Random: a.Random}

	numFailures := 0
	for _, s := range scenarios {
		runner := &scenario.Runner{
			Scenario: s,
			Config:   config,
			Cluster:  admin,
			Drivers:  drivers,
			Out:      a.Out,
		}
		report := runner.Run(ctx)
		suitemetrics.ScenariosRun.Inc()
		if report.Failed() {
			numFailures++
			suitemetrics.ScenariosFailed.Inc()
		} else {
			suitemetrics.ScenariosPassed.Inc()
		}
		a.printReport(report)

		// A cancelled context means the user stopped the suite, not that
		// the remaining scenarios failed.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	fmt.Fprintf(a.Out, "\n======= SUMMARY =======\n")
	fmt.Fprintf(a.Out, "Ran %d scenario(s)\n", len(scenarios))
	fmt.Fprintf(a.Out, "Successes: %d\n", len(scenarios)-numFailures)
	fmt.Fprintf(a.Out, "Failures: %d\n", numFailures)
	if numFailures > 0 {
		return errors.Errorf("%d of %d scenarios failed", numFailures, len(scenarios))
	}
	return nil
}

func (a *App) printReport(report *scenario.Report) {
	if !report.Failed() {
		fmt.Fprintf(a.Out, "SCENARIO PASSED: %s (%s)\n", report.Scenario.Name, report.Duration)
		return
	}
	fmt.Fprintf(a.Out, "SCENARIO FAILED: %s (%s)\n", report.Scenario.Name, report.Duration)
	if report.Err != nil {
		fmt.Fprintf(a.Out, "  infrastructure failure: %s\n", report.Err)
	}
	if report.Verdict != nil {
		for _, violation := range report.Verdict.Violations() {
			fmt.Fprintf(a.Out, "  quota violation: %s\n", violation)
		}
	}
}

// serveMetrics exposes the harness's own prometheus metrics for the
// duration of the suite, if a port is configured.
func (a *App) serveMetrics(ctx context.Context) {
	port := a.Params.Config.MetricsPort
	if port == 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
}
