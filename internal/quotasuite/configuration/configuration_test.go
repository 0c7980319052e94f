package configuration

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/quotasuite/internal/common/suiteerrors"
)

func testQuotaConfig() *QuotaConfig {
	return &QuotaConfig{
		ProducerDefaultBps: 2500000,
		ConsumerDefaultBps: 2000000,
		ProducerOverrides:  map[string]float64{"overridden_id": 3750000},
		ConsumerOverrides:  map[string]float64{"overridden_id": 3000000},
	}
}

func TestQuotaResolution(t *testing.T) {
	config := testQuotaConfig()

	assert.Equal(t, 2500000.0, config.ProducerQuota("default_id"))
	assert.Equal(t, 2000000.0, config.ConsumerQuota("default_id"))
	assert.Equal(t, 3750000.0, config.ProducerQuota("overridden_id"))
	assert.Equal(t, 3000000.0, config.ConsumerQuota("overridden_id"))

	// An identity absent from the overrides falls back to the default, exactly.
	assert.Equal(t, 2500000.0, config.ProducerQuota("some_other_id"))
	assert.Equal(t, 2000000.0, config.ConsumerQuota("some_other_id"))
}

func TestParseQuotaOverrides(t *testing.T) {
	overrides, err := ParseQuotaOverrides("a=100,b=200")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 100, "b": 200}, overrides)

	overrides, err = ParseQuotaOverrides("overridden_id=3750000")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"overridden_id": 3750000}, overrides)

	overrides, err = ParseQuotaOverrides("")
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestParseQuotaOverridesMalformed(t *testing.T) {
	for _, s := range []string{
		"a=,b=200",
		"a=100;b=200",
		"a=x",
		"=100",
		"a",
	} {
		_, err := ParseQuotaOverrides(s)
		require.Error(t, err, "expected %q to be rejected", s)
		var overrideErr *suiteerrors.ErrInvalidQuotaOverride
		assert.True(t, errors.As(err, &overrideErr), "expected ErrInvalidQuotaOverride for %q, got %v", s, err)
	}

	_, err := ParseQuotaOverrides("a=-5")
	require.Error(t, err)
}

func TestFormatQuotaOverridesRoundTrip(t *testing.T) {
	s := FormatQuotaOverrides(map[string]float64{"b": 200, "a": 100})
	assert.Equal(t, "a=100,b=200", s)

	parsed, err := ParseQuotaOverrides(s)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 100, "b": 200}, parsed)
}

func TestQuotaConfigValidate(t *testing.T) {
	require.NoError(t, testQuotaConfig().Validate())

	config := testQuotaConfig()
	config.ProducerDefaultBps = -1
	assert.Error(t, config.Validate())

	config = testQuotaConfig()
	config.ConsumerOverrides[""] = 100
	assert.Error(t, config.Validate())

	config = testQuotaConfig()
	config.ProducerOverrides["some_id"] = -100
	assert.Error(t, config.Validate())
}

func TestToleranceBandValidate(t *testing.T) {
	require.NoError(t, ToleranceBand{MaxClientDeviationPercentage: 100, MaxBrokerDeviationPercentage: 5}.Validate())
	assert.Error(t, ToleranceBand{MaxClientDeviationPercentage: -1}.Validate())
	assert.Error(t, ToleranceBand{MaxBrokerDeviationPercentage: -1}.Validate())
}
