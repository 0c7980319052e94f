package workload

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/streamhouse/quotasuite/internal/quotasuite/metrics"
)

// PulsarDrivers builds workload drivers backed by a Pulsar client.
type PulsarDrivers struct {
	Client pulsar.Client
	// Source of payload bytes. Defaults to crypto/rand in the App; tests
	// can provide a deterministic reader.
	Random io.Reader
}

func (d *PulsarDrivers) NewProducer(spec ProducerSpec) Producer {
	return &pulsarProducer{client: d.Client, random: d.Random, spec: spec}
}

func (d *PulsarDrivers) NewConsumer(spec ConsumerSpec) Consumer {
	return &pulsarConsumer{client: d.Client, spec: spec}
}

type pulsarProducer struct {
	client pulsar.Client
	random io.Reader
	spec   ProducerSpec
}

func (srv *pulsarProducer) Run(ctx context.Context) (*ProducerResult, error) {
	payload := make([]byte, srv.spec.RecordSize)
	if _, err := io.ReadFull(srv.random, payload); err != nil {
		return nil, errors.WithMessage(err, "error generating record payload")
	}

	snapshot := metrics.NewSnapshot()
	meter := &rateMeter{key: metrics.ProducerByteRateKey(srv.spec.ClientId), snapshot: snapshot}
	meterCtx, stopMeter := context.WithCancel(ctx)
	defer stopMeter()
	go meter.run(meterCtx)

	instances := srv.spec.Instances
	if instances <= 0 {
		instances = 1
	}

	var produced int64
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < instances; i++ {
		i := i
		g.Go(func() error {
			return srv.runInstance(ctx, i, payload, meter, &produced)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ProducerResult{
		ClientId:        srv.spec.ClientId,
		RecordsProduced: int(atomic.LoadInt64(&produced)),
		Metrics:         snapshot,
	}, nil
}

func (srv *pulsarProducer) runInstance(ctx context.Context, instance int, payload []byte, meter *rateMeter, produced *int64) error {
	producer, err := srv.client.CreateProducer(pulsar.ProducerOptions{
		Topic: srv.spec.Topic,
		Name:  fmt.Sprintf("%s-%d", srv.spec.ClientId, instance),
		Properties: map[string]string{
			"clientId": srv.spec.ClientId,
		},
	})
	if err != nil {
		return errors.WithMessagef(err, "error creating producer %d", instance)
	}
	defer producer.Close()

	// Create a closed ticker channel; receiving on tickerCh returns immediately.
	C := make(chan time.Time)
	close(C)
	tickerCh := (<-chan time.Time)(C)

	// If a throughput cap is set, replace tickerCh with one that paces sends.
	if srv.spec.Throughput > 0 {
		ticker := time.NewTicker(paceInterval(srv.spec.Throughput))
		defer ticker.Stop()
		tickerCh = ticker.C
	}

	for i := 0; i < srv.spec.NumRecords; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tickerCh:
			if _, err := producer.Send(ctx, &pulsar.ProducerMessage{Payload: payload}); err != nil {
				return errors.WithMessagef(err, "error producing record %d on producer %d", i, instance)
			}
			atomic.AddInt64(produced, 1)
			meter.add(len(payload))
		}
	}
	return errors.WithMessagef(producer.Flush(), "error flushing producer %d", instance)
}

type pulsarConsumer struct {
	client pulsar.Client
	spec   ConsumerSpec
}

func (srv *pulsarConsumer) Run(ctx context.Context) (*ConsumerResult, error) {
	snapshot := metrics.NewSnapshot()
	meter := &rateMeter{key: metrics.ConsumerByteRateKey(srv.spec.ClientId), snapshot: snapshot}
	meterCtx, stopMeter := context.WithCancel(ctx)
	defer stopMeter()
	go meter.run(meterCtx)

	// All instances join the same shared subscription so they split the
	// topic's messages between them, like members of one consumer group.
	subscription := fmt.Sprintf("%s-%s", srv.spec.ClientId, uuid.NewString())

	result := &ConsumerResult{
		ClientId:         srv.spec.ClientId,
		MessagesConsumed: make([][]string, srv.spec.Instances),
		Metrics:          snapshot,
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < srv.spec.Instances; i++ {
		i := i
		g.Go(func() error {
			consumer, err := srv.client.Subscribe(pulsar.ConsumerOptions{
				Topic:                       srv.spec.Topic,
				SubscriptionName:            subscription,
				Type:                        pulsar.Shared,
				SubscriptionInitialPosition: pulsar.SubscriptionPositionEarliest,
				Name:                        fmt.Sprintf("%s-%d", srv.spec.ClientId, i),
			})
			if err != nil {
				return errors.WithMessagef(err, "error subscribing consumer %d", i)
			}
			defer consumer.Close()

			for {
				receiveCtx, cancel := context.WithTimeout(ctx, srv.spec.Timeout)
				msg, err := consumer.Receive(receiveCtx)
				cancel()
				if err != nil {
					// An inactivity timeout concludes this instance's run.
					if errors.Is(err, context.DeadlineExceeded) {
						return nil
					}
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return errors.WithMessagef(err, "error receiving on consumer %d", i)
				}
				consumer.Ack(msg)
				meter.add(len(msg.Payload()))
				result.MessagesConsumed[i] = append(result.MessagesConsumed[i], fmt.Sprintf("%v", msg.ID()))
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
