package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/quotasuite/internal/common/suiteerrors"
)

func TestDefaultScenarios(t *testing.T) {
	scenarios := DefaultScenarios()
	require.Len(t, scenarios, 3)
	for _, s := range scenarios {
		s := s
		require.NoError(t, s.Validate())
	}

	assert.Equal(t, "default_id_1p_1c", scenarios[0].Name)
	assert.Equal(t, "default_id", scenarios[0].ProducerId)
	assert.Equal(t, "default_id", scenarios[0].ConsumerId)

	assert.Equal(t, "overridden_id_1p_1c", scenarios[1].Name)
	assert.Equal(t, "overridden_id", scenarios[1].ProducerId)

	assert.Equal(t, "overridden_id_1p_2c", scenarios[2].Name)
	assert.Equal(t, 1, scenarios[2].ProducerInstances)
	assert.Equal(t, 2, scenarios[2].ConsumerInstances)
}

func TestScenarioValidate(t *testing.T) {
	valid := Scenario{Name: "s", ProducerId: "p", ProducerInstances: 1, ConsumerId: "c", ConsumerInstances: 2}
	require.NoError(t, valid.Validate())

	for name, s := range map[string]Scenario{
		"missing producer id": {ConsumerId: "c", ProducerInstances: 1, ConsumerInstances: 1},
		"missing consumer id": {ProducerId: "p", ProducerInstances: 1, ConsumerInstances: 1},
		"zero producers":      {ProducerId: "p", ConsumerId: "c", ProducerInstances: 0, ConsumerInstances: 1},
		"negative consumers":  {ProducerId: "p", ConsumerId: "c", ProducerInstances: 1, ConsumerInstances: -1},
	} {
		s := s
		err := s.Validate()
		require.Error(t, err, name)
		var invalid *suiteerrors.ErrInvalidArgument
		assert.True(t, errors.As(err, &invalid), name)
	}
}

func writeScenarioFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestScenariosFromFile(t *testing.T) {
	path := writeScenarioFile(t, `
scenarios:
  - name: custom
    producerId: default_id
    producerInstances: 2
    consumerId: overridden_id
    consumerInstances: 3
  - producerId: overridden_id
    consumerId: overridden_id
`)
	scenarios, err := ScenariosFromFile(path)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	assert.Equal(t, Scenario{
		Name:              "custom",
		ProducerId:        "default_id",
		ProducerInstances: 2,
		ConsumerId:        "overridden_id",
		ConsumerInstances: 3,
	}, scenarios[0])

	// Instance counts default to 1 and the name is derived.
	assert.Equal(t, Scenario{
		Name:              "overridden_id_1p_overridden_id_1c",
		ProducerId:        "overridden_id",
		ProducerInstances: 1,
		ConsumerId:        "overridden_id",
		ConsumerInstances: 1,
	}, scenarios[1])
}

func TestScenariosFromFileRejectsUnknownFields(t *testing.T) {
	path := writeScenarioFile(t, `
scenarios:
  - producerId: p
    consumerId: c
    producrInstances: 2
`)
	_, err := ScenariosFromFile(path)
	assert.Error(t, err)
}

func TestScenariosFromFileEmpty(t *testing.T) {
	path := writeScenarioFile(t, "scenarios: []\n")
	_, err := ScenariosFromFile(path)
	require.Error(t, err)
	var invalid *suiteerrors.ErrInvalidArgument
	assert.True(t, errors.As(err, &invalid))
}

func TestScenariosFromFileInvalidScenario(t *testing.T) {
	path := writeScenarioFile(t, `
scenarios:
  - producerId: p
`)
	_, err := ScenariosFromFile(path)
	assert.Error(t, err)
}

func TestScenariosFromFileMissing(t *testing.T) {
	_, err := ScenariosFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
