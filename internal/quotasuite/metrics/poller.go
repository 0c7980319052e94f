package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/streamhouse/quotasuite/internal/common/suitemetrics"
)

// Poller scrapes the metric endpoints of all broker nodes on a fixed
// interval for the duration of a run window, folding the samples into a
// Snapshot. Per tick, values for the same attribute are summed across nodes
// before the max reducer sees them, matching how byte rates aggregate over
// a cluster.
type Poller struct {
	// Metric endpoints, one per broker node.
	Targets []string
	// Exposed metric name to attribute key under which samples are recorded.
	Attributes map[string]AttributeKey
	// Time between scrapes.
	Interval time.Duration
	// Snapshot samples are folded into.
	Snapshot *Snapshot
	// Attempts per scrape before the tick is given up for that node.
	MaxRetries uint

	client *http.Client
}

func NewPoller(targets []string, attributes map[string]AttributeKey, interval time.Duration, snapshot *Snapshot) *Poller {
	return &Poller{
		Targets:    targets,
		Attributes: attributes,
		Interval:   interval,
		Snapshot:   snapshot,
		MaxRetries: 3,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Run polls until ctx is cancelled, which marks the end of the run window.
func (srv *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(srv.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			srv.poll(ctx)
		}
	}
}

func (srv *Poller) poll(ctx context.Context) {
	perNodeSamples := make([]map[string]float64, len(srv.Targets))
	g, ctx := errgroup.WithContext(ctx)
	for i, target := range srv.Targets {
		i, target := i, target
		g.Go(func() error {
			values, err := srv.scrape(ctx, target)
			if err != nil {
				// A failed scrape costs this node one tick; a node that never
				// yields a sample surfaces later as a missing metric.
				suitemetrics.ScrapeErrors.WithLabelValues(target).Inc()
				log.WithError(err).Warnf("failed to scrape metrics from %s", target)
				return nil
			}
			perNodeSamples[i] = values
			return nil
		})
	}
	_ = g.Wait()

	for name, key := range srv.Attributes {
		sampled := false
		perNodeValues := make([]float64, 0, len(perNodeSamples))
		for _, values := range perNodeSamples {
			// A node without a sample this tick contributes zero to the sum.
			perNodeValues = append(perNodeValues, values[name])
			if _, ok := values[name]; ok {
				sampled = true
			}
		}
		if !sampled {
			continue
		}
		if err := srv.Snapshot.ObserveSum(key, perNodeValues...); err != nil {
			log.WithError(err).Warn("observation after run window closed")
		}
	}
}

func (srv *Poller) scrape(ctx context.Context, target string) (map[string]float64, error) {
	var families map[string]*dto.MetricFamily
	err := retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return errors.WithStack(err)
			}
			resp, err := srv.client.Do(req)
			if err != nil {
				return errors.WithStack(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return errors.Errorf("unexpected status %s from %s", resp.Status, target)
			}
			var parser expfmt.TextParser
			families, err = parser.TextToMetricFamilies(resp.Body)
			return errors.WithStack(err)
		},
		retry.Attempts(srv.MaxRetries),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	values := make(map[string]float64)
	for name := range srv.Attributes {
		family, ok := families[name]
		if !ok {
			continue
		}
		var sum float64
		for _, metric := range family.GetMetric() {
			sum += sampleValue(metric)
		}
		values[name] = sum
	}
	return values, nil
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetUntyped() != nil:
		return m.GetUntyped().GetValue()
	}
	return 0
}
