// Package cluster is the harness's view of the cluster under test. The
// suite only needs a narrow surface: push quota configuration, make sure
// the test topic exists, wait for the brokers to come up, and know where
// to scrape broker metrics from. Broker lifecycle itself is owned by
// whatever deployed the cluster.
package cluster

import (
	"context"

	"github.com/streamhouse/quotasuite/internal/quotasuite/configuration"
)

type Controller interface {
	// AwaitReady blocks until every broker answers its health probe.
	AwaitReady(ctx context.Context) error
	// ApplyQuotas pushes default and per-identity byte-rate quotas.
	ApplyQuotas(ctx context.Context, quotas *configuration.QuotaConfig) error
	// EnsureTopic creates the topic if it doesn't already exist.
	EnsureTopic(ctx context.Context, topic string, partitions int) error
	// MetricTargets returns the broker metric endpoints to scrape.
	MetricTargets() []string
}
