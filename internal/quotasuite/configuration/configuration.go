package configuration

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/streamhouse/quotasuite/internal/common/suiteerrors"
)

// SuiteConfig is the root configuration object loaded from the config file.
type SuiteConfig struct {
	Quotas    QuotaConfig
	Tolerance ToleranceBand
	Workload  WorkloadConfig
	Cluster   ClusterConfig
	// Interval between broker metric scrapes during a run window.
	MetricPollInterval time.Duration
	// If non-zero, the harness serves its own prometheus metrics on this port.
	MetricsPort uint16
}

// QuotaConfig mirrors the broker-side byte-rate quota settings the cluster
// is brought up with. Overrides take precedence over the role default; a
// client identity absent from the override table falls back to the default.
//
// In config files the override tables are written using the broker's flat
// grammar, e.g. "overridden_id=3750000"; a decode hook parses them into
// maps at load time so they are never re-parsed per lookup.
type QuotaConfig struct {
	ProducerDefaultBps float64
	ConsumerDefaultBps float64
	ProducerOverrides  map[string]float64
	ConsumerOverrides  map[string]float64
}

// ProducerQuota resolves the effective producer byte-rate quota for clientId.
func (c *QuotaConfig) ProducerQuota(clientId string) float64 {
	if quota, ok := c.ProducerOverrides[clientId]; ok {
		return quota
	}
	return c.ProducerDefaultBps
}

// ConsumerQuota resolves the effective consumer byte-rate quota for clientId.
func (c *QuotaConfig) ConsumerQuota(clientId string) float64 {
	if quota, ok := c.ConsumerOverrides[clientId]; ok {
		return quota
	}
	return c.ConsumerDefaultBps
}

func (c *QuotaConfig) Validate() error {
	if c.ProducerDefaultBps < 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "ProducerDefaultBps",
			Value:   c.ProducerDefaultBps,
			Message: "quota must be non-negative",
		})
	}
	if c.ConsumerDefaultBps < 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "ConsumerDefaultBps",
			Value:   c.ConsumerDefaultBps,
			Message: "quota must be non-negative",
		})
	}
	for id, quota := range c.ProducerOverrides {
		if err := validateOverride("ProducerOverrides", id, quota); err != nil {
			return err
		}
	}
	for id, quota := range c.ConsumerOverrides {
		if err := validateOverride("ConsumerOverrides", id, quota); err != nil {
			return err
		}
	}
	return nil
}

func validateOverride(field, id string, quota float64) error {
	if strings.TrimSpace(id) == "" {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    field,
			Value:   id,
			Message: "override key must be a non-empty client identity",
		})
	}
	if quota < 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    field,
			Value:   quota,
			Message: "override quota must be non-negative",
		})
	}
	return nil
}

// ParseQuotaOverrides parses a flat override table of the form
// "identity=value[,identity=value...]" into a map. The empty string parses
// to an empty table. Any malformed entry fails the whole parse.
func ParseQuotaOverrides(s string) (map[string]float64, error) {
	overrides := make(map[string]float64)
	if strings.TrimSpace(s) == "" {
		return overrides, nil
	}
	for _, entry := range strings.Split(s, ",") {
		id, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, errors.WithStack(&suiteerrors.ErrInvalidQuotaOverride{
				Entry:   entry,
				Message: "expected identity=value",
			})
		}
		quota, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, errors.WithStack(&suiteerrors.ErrInvalidQuotaOverride{
				Entry:   entry,
				Message: "value is not numeric",
			})
		}
		if quota < 0 {
			return nil, errors.WithStack(&suiteerrors.ErrInvalidQuotaOverride{
				Entry:   entry,
				Message: "value must be non-negative",
			})
		}
		overrides[strings.TrimSpace(id)] = quota
	}
	return overrides, nil
}

// FormatQuotaOverrides renders an override table back into the broker's
// flat grammar, with identities in lexical order. Inverse of
// ParseQuotaOverrides for well-formed tables.
func FormatQuotaOverrides(overrides map[string]float64) string {
	ids := make([]string, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	entries := make([]string, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, fmt.Sprintf("%s=%s", id, strconv.FormatFloat(overrides[id], 'f', -1, 64)))
	}
	return strings.Join(entries, ",")
}

// ToleranceBand holds the allowed percentage overshoots above quota. The
// client band is typically much wider than the broker band: per-instance
// client measurement is noisy, while the broker aggregates over a steadier
// window. Both are independent inputs; the harness never derives one from
// the other.
type ToleranceBand struct {
	MaxClientDeviationPercentage float64
	MaxBrokerDeviationPercentage float64
}

func (b ToleranceBand) Validate() error {
	if b.MaxClientDeviationPercentage < 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "MaxClientDeviationPercentage",
			Value:   b.MaxClientDeviationPercentage,
			Message: "deviation percentage must be non-negative",
		})
	}
	if b.MaxBrokerDeviationPercentage < 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "MaxBrokerDeviationPercentage",
			Value:   b.MaxBrokerDeviationPercentage,
			Message: "deviation percentage must be non-negative",
		})
	}
	return nil
}

// WorkloadConfig describes the produce/consume cycle run for every scenario.
type WorkloadConfig struct {
	Topic      string
	Partitions int
	// Number of records the producer emits per scenario.
	NumRecords int
	// Payload size of each record, in bytes.
	RecordSize int
	// Producer throughput cap in records per second. Zero or negative
	// means unlimited: quota enforcement is what's under test.
	Throughput float64
	// How long a consumer instance waits without receiving a message
	// before concluding the run.
	ConsumerTimeout time.Duration
}

func (c *WorkloadConfig) Validate() error {
	if c.Topic == "" {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "Topic",
			Value:   c.Topic,
			Message: "not provided",
		})
	}
	if c.NumRecords <= 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "NumRecords",
			Value:   c.NumRecords,
			Message: "number of records must be positive",
		})
	}
	if c.RecordSize <= 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "RecordSize",
			Value:   c.RecordSize,
			Message: "record size must be positive",
		})
	}
	if c.ConsumerTimeout <= 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "ConsumerTimeout",
			Value:   c.ConsumerTimeout,
			Message: "consumer timeout must be positive",
		})
	}
	return nil
}

// ClusterConfig holds the connection details of the cluster under test.
type ClusterConfig struct {
	// Broker service URL used by the workload drivers, e.g. pulsar://host:6650.
	ServiceURL string
	// Admin API endpoints, one per broker, used to push quota configuration.
	AdminURLs []string
	// Metric endpoints, one per broker, scraped during run windows.
	MetricsURLs []string
	// Names under which the brokers expose their byte-in and byte-out
	// rates. Defaults match Pulsar's exposition.
	BytesInMetric  string
	BytesOutMetric string
	// Timeout applied to individual admin requests.
	RequestTimeout time.Duration
}

// Broker metric names scraped when the config doesn't name others.
const (
	DefaultBytesInMetric  = "pulsar_throughput_in"
	DefaultBytesOutMetric = "pulsar_throughput_out"
)

func (c *ClusterConfig) Validate() error {
	if c.ServiceURL == "" {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "ServiceURL",
			Value:   c.ServiceURL,
			Message: "not provided",
		})
	}
	if len(c.AdminURLs) == 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "AdminURLs",
			Value:   c.AdminURLs,
			Message: "at least one admin endpoint is required",
		})
	}
	if len(c.MetricsURLs) == 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "MetricsURLs",
			Value:   c.MetricsURLs,
			Message: "at least one metric endpoint is required",
		})
	}
	return nil
}

func (c *SuiteConfig) Validate() error {
	if err := c.Quotas.Validate(); err != nil {
		return err
	}
	if err := c.Tolerance.Validate(); err != nil {
		return err
	}
	if err := c.Workload.Validate(); err != nil {
		return err
	}
	return c.Cluster.Validate()
}
