package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/quotasuite/internal/quotasuite/configuration"
)

func newAdminClient(urls ...string) *AdminClient {
	client := NewAdminClient(&configuration.ClusterConfig{
		ServiceURL:     "pulsar://localhost:6650",
		AdminURLs:      urls,
		MetricsURLs:    []string{"http://localhost:8080/metrics"},
		RequestTimeout: time.Second,
	})
	client.MaxRetries = 1
	return client
}

func TestAwaitReady(t *testing.T) {
	var probes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/admin/v2/brokers/health", r.URL.Path)
		atomic.AddInt32(&probes, 1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, newAdminClient(srv.URL, srv.URL).AwaitReady(context.Background()))
	// Every broker gets its own probe.
	assert.Equal(t, int32(2), atomic.LoadInt32(&probes))
}

func TestAwaitReadyRetriesUntilHealthy(t *testing.T) {
	var probes int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&probes, 1) < 3 {
			http.Error(w, "still starting", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	client := newAdminClient(srv.URL)
	client.MaxRetries = 5
	require.NoError(t, client.AwaitReady(context.Background()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&probes))
}

func TestAwaitReadyUnhealthyBroker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	assert.Error(t, newAdminClient(srv.URL).AwaitReady(context.Background()))
}

func TestApplyQuotas(t *testing.T) {
	var bodies []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/admin/v2/broker-config/quotas", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	quotas := &configuration.QuotaConfig{
		ProducerDefaultBps: 2500000,
		ConsumerDefaultBps: 2000000,
		ProducerOverrides:  map[string]float64{"overridden_id": 3750000},
		ConsumerOverrides:  map[string]float64{"overridden_id": 3000000},
	}
	require.NoError(t, newAdminClient(srv.URL).ApplyQuotas(context.Background(), quotas))

	require.Len(t, bodies, 1)
	assert.Equal(t, 2500000.0, bodies[0]["quotaProducerDefault"])
	assert.Equal(t, 2000000.0, bodies[0]["quotaConsumerDefault"])
	// Override tables travel in the broker's flat grammar.
	assert.Equal(t, "overridden_id=3750000", bodies[0]["quotaProducerOverrides"])
	assert.Equal(t, "overridden_id=3000000", bodies[0]["quotaConsumerOverrides"])
}

func TestApplyQuotasPushesToEveryBroker(t *testing.T) {
	var requests int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNoContent)
	})
	first := httptest.NewServer(handler)
	t.Cleanup(first.Close)
	second := httptest.NewServer(handler)
	t.Cleanup(second.Close)

	quotas := &configuration.QuotaConfig{ProducerDefaultBps: 100, ConsumerDefaultBps: 100}
	require.NoError(t, newAdminClient(first.URL, second.URL).ApplyQuotas(context.Background(), quotas))
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestEnsureTopic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/admin/v2/persistent/public/default/quota-topic/partitions", r.URL.Path)
		var partitions int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&partitions))
		assert.Equal(t, 6, partitions)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, newAdminClient(srv.URL).EnsureTopic(context.Background(), "quota-topic", 6))
}

func TestEnsureTopicAlreadyExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic already exists", http.StatusConflict)
	}))
	t.Cleanup(srv.Close)

	// A topic surviving a previous run isn't an error.
	require.NoError(t, newAdminClient(srv.URL).EnsureTopic(context.Background(), "quota-topic", 1))
}

func TestEnsureTopicServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	assert.Error(t, newAdminClient(srv.URL).EnsureTopic(context.Background(), "quota-topic", 1))
}

func TestMetricTargets(t *testing.T) {
	client := NewAdminClient(&configuration.ClusterConfig{
		MetricsURLs: []string{"http://broker-1:8080/metrics", "http://broker-2:8080/metrics"},
	})
	assert.Equal(t, []string{"http://broker-1:8080/metrics", "http://broker-2:8080/metrics"}, client.MetricTargets())
}
