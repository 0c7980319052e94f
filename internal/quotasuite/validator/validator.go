// Package validator decides whether a run's observed throughput shows the
// cluster enforcing its byte-rate quotas. It is the single source of truth
// for pass/fail: five independent checks, all evaluated on every run so a
// failing run surfaces every misbehaving boundary, not just the first.
package validator

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/streamhouse/quotasuite/internal/quotasuite/configuration"
	"github.com/streamhouse/quotasuite/internal/quotasuite/metrics"
)

// CheckKind identifies one of the five boundaries validated per run.
type CheckKind int

const (
	// Every produced record was consumed exactly once.
	CheckDelivery CheckKind = iota
	// Producer's own maximum byte rate stayed within quota plus the client band.
	CheckProducerClient
	// Broker byte-in rate stayed within the producer quota plus the broker band.
	CheckProducerBroker
	// Consumer's own maximum byte rate stayed within quota plus the client band.
	CheckConsumerClient
	// Broker byte-out rate stayed within the consumer quota plus the broker band.
	CheckConsumerBroker
)

func (k CheckKind) String() string {
	switch k {
	case CheckDelivery:
		return "delivery"
	case CheckProducerClient:
		return "producer-client"
	case CheckProducerBroker:
		return "broker-byte-in"
	case CheckConsumerClient:
		return "consumer-client"
	case CheckConsumerBroker:
		return "broker-byte-out"
	}
	return fmt.Sprintf("unknown check %d", int(k))
}

// CheckResult is the outcome of one check, kept as data so verdicts are
// inspectable and testable beyond their formatted messages.
type CheckResult struct {
	Kind CheckKind
	// For rate checks, bytes/second; for the delivery check, message counts.
	Observed float64
	Allowed  float64
	// Rate checks only: the resolved quota and the tolerance applied to it.
	Quota               float64
	DeviationPercentage float64
	Passed              bool
}

// Violation renders the diagnostic for a failed check, with observed and
// allowed values. Callers should only render results that failed.
func (r CheckResult) Violation() string {
	if r.Kind == CheckDelivery {
		return fmt.Sprintf(
			"number of produced messages %d doesn't equal number of consumed messages %d",
			int64(r.Allowed), int64(r.Observed),
		)
	}
	return fmt.Sprintf(
		"maximum %s %.2f bps exceeded %s quota %.2f bps by more than %.1f%% (allowed %.2f bps)",
		r.Kind.boundary(), r.Observed, r.Kind.role(), r.Quota, r.DeviationPercentage, r.Allowed,
	)
}

func (k CheckKind) boundary() string {
	switch k {
	case CheckProducerClient:
		return "producer throughput"
	case CheckProducerBroker:
		return "broker byte-in rate"
	case CheckConsumerClient:
		return "consumer throughput"
	case CheckConsumerBroker:
		return "broker byte-out rate"
	}
	return k.String()
}

func (k CheckKind) role() string {
	switch k {
	case CheckProducerClient, CheckProducerBroker:
		return "producer"
	default:
		return "consumer"
	}
}

// Verdict is the validator's decision for one run. Built once, never mutated
// after return.
type Verdict struct {
	Checks []CheckResult
}

// Success is the logical AND of all checks.
func (v *Verdict) Success() bool {
	for _, check := range v.Checks {
		if !check.Passed {
			return false
		}
	}
	return true
}

// Violations returns one diagnostic per failed check, in check order.
func (v *Verdict) Violations() []string {
	var violations []string
	for _, check := range v.Checks {
		if !check.Passed {
			violations = append(violations, check.Violation())
		}
	}
	return violations
}

// Inputs carries everything the validator reads. Snapshots are read-only and
// not retained past the call.
type Inputs struct {
	Quotas    *configuration.QuotaConfig
	Tolerance configuration.ToleranceBand

	ProducerClientId string
	ConsumerClientId string

	RecordsProduced int
	// Message counts per consumer instance; summed before the delivery check.
	MessagesConsumed []int

	ProducerMetrics *metrics.Snapshot
	ConsumerMetrics *metrics.Snapshot
	BrokerMetrics   *metrics.Snapshot
}

// Validate runs the five checks:
//
//  1. number of consumed messages equals number of produced messages
//  2. maximum producer throughput <= producer_quota * (1 + client_deviation/100)
//  3. maximum broker byte-in rate <= producer_quota * (1 + broker_deviation/100)
//  4. maximum consumer throughput <= consumer_quota * (1 + client_deviation/100)
//  5. maximum broker byte-out rate <= consumer_quota * (1 + broker_deviation/100)
//
// A metric attribute with no sample is a measurement failure and returns a
// *suiteerrors.ErrMissingMetric, never a violation.
func Validate(inputs Inputs) (*Verdict, error) {
	producerQuota := inputs.Quotas.ProducerQuota(inputs.ProducerClientId)
	consumerQuota := inputs.Quotas.ConsumerQuota(inputs.ConsumerClientId)

	producerMax, err := inputs.ProducerMetrics.MaxValue(metrics.ProducerByteRateKey(inputs.ProducerClientId))
	if err != nil {
		return nil, err
	}
	consumerMax, err := inputs.ConsumerMetrics.MaxValue(metrics.ConsumerByteRateKey(inputs.ConsumerClientId))
	if err != nil {
		return nil, err
	}
	brokerBytesIn, err := inputs.BrokerMetrics.MaxValue(metrics.BrokerBytesInKey())
	if err != nil {
		return nil, err
	}
	brokerBytesOut, err := inputs.BrokerMetrics.MaxValue(metrics.BrokerBytesOutKey())
	if err != nil {
		return nil, err
	}

	consumedCount := 0
	for _, n := range inputs.MessagesConsumed {
		consumedCount += n
	}
	log.Infof("producer produced %d messages", inputs.RecordsProduced)
	log.Infof("consumer consumed %d messages", consumedCount)
	log.Infof("producer has maximum throughput %.2f bps with producer quota %.2f bps", producerMax, producerQuota)
	log.Infof("broker has maximum byte-in rate %.2f bps with producer quota %.2f bps", brokerBytesIn, producerQuota)
	log.Infof("consumer has maximum throughput %.2f bps with consumer quota %.2f bps", consumerMax, consumerQuota)
	log.Infof("broker has maximum byte-out rate %.2f bps with consumer quota %.2f bps", brokerBytesOut, consumerQuota)

	clientDeviation := inputs.Tolerance.MaxClientDeviationPercentage
	brokerDeviation := inputs.Tolerance.MaxBrokerDeviationPercentage
	return &Verdict{
		Checks: []CheckResult{
			deliveryCheck(inputs.RecordsProduced, consumedCount),
			rateCheck(CheckProducerClient, producerMax, producerQuota, clientDeviation),
			rateCheck(CheckProducerBroker, brokerBytesIn, producerQuota, brokerDeviation),
			rateCheck(CheckConsumerClient, consumerMax, consumerQuota, clientDeviation),
			rateCheck(CheckConsumerBroker, brokerBytesOut, consumerQuota, brokerDeviation),
		},
	}, nil
}

// deliveryCheck is exact equality. Message loss or duplication is a
// correctness bug, not a throughput-tolerance matter; no band applies.
func deliveryCheck(produced, consumed int) CheckResult {
	return CheckResult{
		Kind:     CheckDelivery,
		Observed: float64(consumed),
		Allowed:  float64(produced),
		Passed:   produced == consumed,
	}
}

func rateCheck(kind CheckKind, observed, quota, deviationPercentage float64) CheckResult {
	allowed := quota * (1 + deviationPercentage/100)
	return CheckResult{
		Kind:                kind,
		Observed:            observed,
		Allowed:             allowed,
		Quota:               quota,
		DeviationPercentage: deviationPercentage,
		Passed:              observed <= allowed,
	}
}
