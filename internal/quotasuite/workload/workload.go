// Package workload contains the load-generating drivers run against the
// cluster under test: a producer that emits a fixed number of fixed-size
// records under a client identity, and a set of consumer instances that
// read until an inactivity timeout. Each driver reports per-run counts and
// publishes its own maximum observed byte rate through a metric snapshot.
package workload

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/streamhouse/quotasuite/internal/quotasuite/metrics"
)

// ProducerSpec parametrizes one producer run. Each instance emits
// NumRecords records; instances share the client identity, so the broker
// attributes all of their traffic to one quota.
type ProducerSpec struct {
	ClientId   string
	Topic      string
	NumRecords int
	RecordSize int
	// Records per second per instance. Zero or negative means unlimited.
	Throughput float64
	Instances  int
}

// ProducerResult is produced once, at the end of a run, and read-only afterward.
type ProducerResult struct {
	ClientId        string
	RecordsProduced int
	// Client-side metrics sampled during the run, keyed by
	// metrics.ProducerByteRateKey(ClientId).
	Metrics *metrics.Snapshot
}

// ConsumerSpec parametrizes one consumer run of one or more instances
// sharing a client identity and subscription.
type ConsumerSpec struct {
	ClientId string
	Topic    string
	// Inactivity timeout after which an instance concludes the run.
	Timeout   time.Duration
	Instances int
}

// ConsumerResult holds, per instance index, the ids of the messages that
// instance consumed. Counts are what validation uses.
type ConsumerResult struct {
	ClientId         string
	MessagesConsumed [][]string
	// Client-side metrics sampled during the run, keyed by
	// metrics.ConsumerByteRateKey(ClientId).
	Metrics *metrics.Snapshot
}

// Counts returns the number of messages consumed per instance.
func (r *ConsumerResult) Counts() []int {
	counts := make([]int, len(r.MessagesConsumed))
	for i, messages := range r.MessagesConsumed {
		counts[i] = len(messages)
	}
	return counts
}

type Producer interface {
	Run(ctx context.Context) (*ProducerResult, error)
}

type Consumer interface {
	Run(ctx context.Context) (*ConsumerResult, error)
}

// Drivers constructs the workload drivers for a scenario. The scenario
// runner depends on this narrow interface; tests substitute stubs.
type Drivers interface {
	NewProducer(spec ProducerSpec) Producer
	NewConsumer(spec ConsumerSpec) Consumer
}

// paceInterval converts a records-per-second cap into a send interval,
// clamped so extreme caps never yield a zero ticker period.
func paceInterval(throughput float64) time.Duration {
	interval := time.Duration(float64(time.Second) / throughput)
	if interval <= 0 {
		return time.Nanosecond
	}
	return interval
}

// rateMeter tracks bytes moved and samples the resulting rate into a
// snapshot once per second. The snapshot's max reducer extracts the peak.
type rateMeter struct {
	key      metrics.AttributeKey
	snapshot *metrics.Snapshot
	bytes    int64
}

func (m *rateMeter) add(n int) {
	atomic.AddInt64(&m.bytes, int64(n))
}

func (m *rateMeter) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			window := now.Sub(last).Seconds()
			moved := atomic.SwapInt64(&m.bytes, 0)
			if window > 0 {
				// Only fails once the snapshot is frozen, i.e. after the
				// run window; safe to drop.
				_ = m.snapshot.Observe(m.key, float64(moved)/window)
			}
			last = now
		}
	}
}
