package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/streamhouse/quotasuite/internal/quotasuite/configuration"
)

// AdminClient talks to the brokers' admin REST API.
type AdminClient struct {
	Config *configuration.ClusterConfig
	// Attempts per admin call.
	MaxRetries uint

	client *http.Client
}

func NewAdminClient(config *configuration.ClusterConfig) *AdminClient {
	timeout := config.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &AdminClient{
		Config:     config,
		MaxRetries: 10,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *AdminClient) AwaitReady(ctx context.Context) error {
	for _, adminURL := range c.Config.AdminURLs {
		adminURL := adminURL
		err := retry.Do(
			func() error {
				return c.do(ctx, http.MethodGet, adminURL+"/admin/v2/brokers/health", nil)
			},
			retry.Attempts(c.MaxRetries),
			retry.Delay(time.Second),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return errors.WithMessagef(err, "broker %s not ready", adminURL)
		}
		log.Infof("broker %s is ready", adminURL)
	}
	return nil
}

// quotaSettings is the wire form of the broker's quota configuration.
// Override tables travel in the broker's flat identity=value grammar.
type quotaSettings struct {
	ProducerDefaultBps float64 `json:"quotaProducerDefault"`
	ConsumerDefaultBps float64 `json:"quotaConsumerDefault"`
	ProducerOverrides  string  `json:"quotaProducerOverrides"`
	ConsumerOverrides  string  `json:"quotaConsumerOverrides"`
}

func (c *AdminClient) ApplyQuotas(ctx context.Context, quotas *configuration.QuotaConfig) error {
	body, err := json.Marshal(quotaSettings{
		ProducerDefaultBps: quotas.ProducerDefaultBps,
		ConsumerDefaultBps: quotas.ConsumerDefaultBps,
		ProducerOverrides:  configuration.FormatQuotaOverrides(quotas.ProducerOverrides),
		ConsumerOverrides:  configuration.FormatQuotaOverrides(quotas.ConsumerOverrides),
	})
	if err != nil {
		return errors.WithStack(err)
	}
	// Quota configuration is cluster-wide; pushing to every broker keeps
	// the suite independent of config propagation between nodes.
	for _, adminURL := range c.Config.AdminURLs {
		adminURL := adminURL
		err := retry.Do(
			func() error {
				return c.do(ctx, http.MethodPut, adminURL+"/admin/v2/broker-config/quotas", body)
			},
			retry.Attempts(c.MaxRetries),
			retry.Delay(time.Second),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return errors.WithMessagef(err, "error applying quotas on broker %s", adminURL)
		}
	}
	return nil
}

func (c *AdminClient) EnsureTopic(ctx context.Context, topic string, partitions int) error {
	if partitions <= 0 {
		partitions = 1
	}
	body, err := json.Marshal(partitions)
	if err != nil {
		return errors.WithStack(err)
	}
	adminURL := c.Config.AdminURLs[0]
	url := fmt.Sprintf("%s/admin/v2/persistent/public/default/%s/partitions", adminURL, topic)
	err = retry.Do(
		func() error {
			err := c.do(ctx, http.MethodPut, url, body)
			// The topic surviving a previous run is fine.
			var statusErr *unexpectedStatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
				return nil
			}
			return err
		},
		retry.Attempts(c.MaxRetries),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	return errors.WithMessagef(err, "error ensuring topic %s", topic)
}

func (c *AdminClient) MetricTargets() []string {
	return c.Config.MetricsURLs
}

type unexpectedStatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (err *unexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status %s from %s", err.Status, err.URL)
}

func (c *AdminClient) do(ctx context.Context, method, url string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.WithStack(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.WithStack(&unexpectedStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        url,
		})
	}
	return nil
}
