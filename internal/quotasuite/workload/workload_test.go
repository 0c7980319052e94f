package workload

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/quotasuite/internal/quotasuite/metrics"
)

func TestConsumerResultCounts(t *testing.T) {
	result := &ConsumerResult{
		ClientId: "default_id",
		MessagesConsumed: [][]string{
			{"a", "b", "c"},
			{"d"},
			nil,
		},
	}
	assert.Equal(t, []int{3, 1, 0}, result.Counts())

	empty := &ConsumerResult{ClientId: "default_id"}
	assert.Empty(t, empty.Counts())
}

func TestPaceInterval(t *testing.T) {
	assert.Equal(t, time.Second, paceInterval(1))
	assert.Equal(t, 10*time.Millisecond, paceInterval(100))
	// Caps beyond one record per nanosecond still yield a valid ticker period.
	assert.Equal(t, time.Nanosecond, paceInterval(1e12))
	assert.Equal(t, time.Nanosecond, paceInterval(math.Inf(1)))
}

func TestRateMeterSamplesIntoSnapshot(t *testing.T) {
	snapshot := metrics.NewSnapshot()
	key := metrics.ProducerByteRateKey("default_id")
	meter := &rateMeter{key: key, snapshot: snapshot}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		meter.run(ctx)
		close(done)
	}()

	meter.add(1000)
	meter.add(500)

	// The meter samples on a one-second cadence.
	require.Eventually(t, func() bool {
		rate, err := snapshot.MaxValue(key)
		return err == nil && rate > 0
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	<-done

	rate, err := snapshot.MaxValue(key)
	require.NoError(t, err)
	// 1500 bytes over a roughly one-second window.
	assert.InDelta(t, 1500, rate, 300)
}

var _ Drivers = &PulsarDrivers{}
