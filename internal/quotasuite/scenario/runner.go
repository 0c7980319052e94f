package scenario

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/streamhouse/quotasuite/internal/common/suiteerrors"
	"github.com/streamhouse/quotasuite/internal/quotasuite/cluster"
	"github.com/streamhouse/quotasuite/internal/quotasuite/configuration"
	"github.com/streamhouse/quotasuite/internal/quotasuite/metrics"
	"github.com/streamhouse/quotasuite/internal/quotasuite/validator"
	"github.com/streamhouse/quotasuite/internal/quotasuite/workload"
)

// Report is the outcome of one scenario. Verdict failures (quota not
// enforced) and Err (the harness itself failed: configuration, missing
// metric, zero traffic, workload or cluster error) are reported
// distinctly: only the former says anything about enforcement.
type Report struct {
	Scenario Scenario
	Verdict  *validator.Verdict
	Err      error
	Duration time.Duration
}

func (r *Report) Failed() bool {
	return r.Err != nil || (r.Verdict != nil && !r.Verdict.Success())
}

// Runner executes a single scenario: open the broker metric window, run the
// producer to completion, drain with the consumers, close and freeze the
// window, then hand everything to the validator. Scenarios are independent;
// the caller decides whether to keep going after a failure.
type Runner struct {
	Scenario Scenario
	Config   *configuration.SuiteConfig
	Cluster  cluster.Controller
	Drivers  workload.Drivers
	// Out is used to write per-scenario progress. Defaults to standard out,
	// but can be overridden in tests to make assertions on the output.
	Out io.Writer
}

func (srv *Runner) Run(ctx context.Context) *Report {
	start := time.Now()
	report := &Report{Scenario: srv.Scenario}
	defer func() { report.Duration = time.Since(start) }()

	out := srv.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "starting scenario %s\n", srv.Scenario.Name)
	if err := srv.Scenario.Validate(); err != nil {
		report.Err = err
		return report
	}

	// Broker metric polling covers the whole run window.
	brokerMetrics := metrics.NewSnapshot()
	poller := metrics.NewPoller(
		srv.Cluster.MetricTargets(),
		srv.brokerAttributes(),
		srv.pollInterval(),
		brokerMetrics,
	)
	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()
	pollDone := make(chan error, 1)
	go func() { pollDone <- poller.Run(pollCtx) }()

	// Produce all records.
	producer := srv.Drivers.NewProducer(workload.ProducerSpec{
		ClientId:   srv.Scenario.ProducerId,
		Topic:      srv.Config.Workload.Topic,
		NumRecords: srv.Config.Workload.NumRecords,
		RecordSize: srv.Config.Workload.RecordSize,
		Throughput: srv.Config.Workload.Throughput,
		Instances:  srv.Scenario.ProducerInstances,
	})
	producerResult, err := producer.Run(ctx)
	if err != nil {
		report.Err = errors.WithMessage(err, "producer workload failed")
		return report
	}

	// Consume all messages.
	consumer := srv.Drivers.NewConsumer(workload.ConsumerSpec{
		ClientId:  srv.Scenario.ConsumerId,
		Topic:     srv.Config.Workload.Topic,
		Timeout:   srv.Config.Workload.ConsumerTimeout,
		Instances: srv.Scenario.ConsumerInstances,
	})
	consumerResult, err := consumer.Run(ctx)
	if err != nil {
		report.Err = errors.WithMessage(err, "consumer workload failed")
		return report
	}

	// The run window ends here; validation only ever sees settled snapshots.
	stopPolling()
	if err := <-pollDone; err != nil && !errors.Is(err, context.Canceled) {
		report.Err = multierror.Append(report.Err, errors.WithMessage(err, "metric poller failed"))
	}
	producerResult.Metrics.Freeze()
	consumerResult.Metrics.Freeze()
	brokerMetrics.Freeze()

	// A consumer instance that saw nothing before its timeout means the
	// workload never observed traffic; that's a harness failure, not a
	// delivery-count violation.
	for instance, count := range consumerResult.Counts() {
		if count == 0 {
			report.Err = multierror.Append(report.Err, errors.WithStack(&suiteerrors.ErrZeroTraffic{
				ClientId: srv.Scenario.ConsumerId,
				Instance: instance,
				Timeout:  srv.Config.Workload.ConsumerTimeout,
			}))
		}
	}
	if report.Err != nil {
		return report
	}

	verdict, err := validator.Validate(validator.Inputs{
		Quotas:           &srv.Config.Quotas,
		Tolerance:        srv.Config.Tolerance,
		ProducerClientId: srv.Scenario.ProducerId,
		ConsumerClientId: srv.Scenario.ConsumerId,
		RecordsProduced:  producerResult.RecordsProduced,
		MessagesConsumed: consumerResult.Counts(),
		ProducerMetrics:  producerResult.Metrics,
		ConsumerMetrics:  consumerResult.Metrics,
		BrokerMetrics:    brokerMetrics,
	})
	if err != nil {
		report.Err = err
		return report
	}
	report.Verdict = verdict
	return report
}

func (srv *Runner) pollInterval() time.Duration {
	if srv.Config.MetricPollInterval > 0 {
		return srv.Config.MetricPollInterval
	}
	return time.Second
}

func (srv *Runner) brokerAttributes() map[string]metrics.AttributeKey {
	bytesIn := srv.Config.Cluster.BytesInMetric
	if bytesIn == "" {
		bytesIn = configuration.DefaultBytesInMetric
	}
	bytesOut := srv.Config.Cluster.BytesOutMetric
	if bytesOut == "" {
		bytesOut = configuration.DefaultBytesOutMetric
	}
	return map[string]metrics.AttributeKey{
		bytesIn:  metrics.BrokerBytesInKey(),
		bytesOut: metrics.BrokerBytesOutKey(),
	}
}
