package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/quotasuite/internal/quotasuite/configuration"
)

func decodeConfig(t *testing.T, document string, config *configuration.SuiteConfig) error {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(document)))
	return v.Unmarshal(config, CustomHooks...)
}

func TestCustomHooksDecodeSuiteConfig(t *testing.T) {
	config := &configuration.SuiteConfig{}
	err := decodeConfig(t, `
quotas:
  producerDefaultBps: 2500000
  consumerDefaultBps: 2000000
  producerOverrides: "overridden_id=3750000"
  consumerOverrides: "overridden_id=3000000"
workload:
  topic: quota-test
  numRecords: 100000
  recordSize: 3000
  consumerTimeout: 60s
cluster:
  serviceURL: pulsar://localhost:6650
  adminURLs: http://broker-1:8080,http://broker-2:8080
metricPollInterval: 1s
`, config)
	require.NoError(t, err)

	// Override tables arrive in the flat identity=value grammar and must be
	// parsed into maps at load time.
	assert.Equal(t, map[string]float64{"overridden_id": 3750000}, config.Quotas.ProducerOverrides)
	assert.Equal(t, map[string]float64{"overridden_id": 3000000}, config.Quotas.ConsumerOverrides)

	assert.Equal(t, time.Second, config.MetricPollInterval)
	assert.Equal(t, 60*time.Second, config.Workload.ConsumerTimeout)
	assert.Equal(t, []string{"http://broker-1:8080", "http://broker-2:8080"}, config.Cluster.AdminURLs)
}

func TestCustomHooksRejectMalformedOverrides(t *testing.T) {
	config := &configuration.SuiteConfig{}
	err := decodeConfig(t, `
quotas:
  producerOverrides: "overridden_id=abc"
`, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overridden_id=abc")
}
