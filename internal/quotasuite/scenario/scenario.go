// Package scenario enumerates and executes the test scenarios of a suite
// run: combinations of client identities and instance counts, each driven
// through one produce/consume cycle and judged by the compliance validator.
package scenario

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/streamhouse/quotasuite/internal/common/suiteerrors"
)

// Scenario is one parametrized combination exercised as an independent
// test case.
type Scenario struct {
	Name              string `yaml:"name"`
	ProducerId        string `yaml:"producerId"`
	ProducerInstances int    `yaml:"producerInstances"`
	ConsumerId        string `yaml:"consumerId"`
	ConsumerInstances int    `yaml:"consumerInstances"`
}

func (s *Scenario) Validate() error {
	if s.ProducerId == "" {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "ProducerId",
			Value:   s.ProducerId,
			Message: "not provided",
		})
	}
	if s.ConsumerId == "" {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "ConsumerId",
			Value:   s.ConsumerId,
			Message: "not provided",
		})
	}
	if s.ProducerInstances <= 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "ProducerInstances",
			Value:   s.ProducerInstances,
			Message: "instance count must be positive",
		})
	}
	if s.ConsumerInstances <= 0 {
		return errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "ConsumerInstances",
			Value:   s.ConsumerInstances,
			Message: "instance count must be positive",
		})
	}
	return nil
}

// DefaultScenarios is the calibration set: the default identity, an
// overridden identity, and the overridden identity with two consumer
// instances splitting the topic.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "default_id_1p_1c", ProducerId: "default_id", ProducerInstances: 1, ConsumerId: "default_id", ConsumerInstances: 1},
		{Name: "overridden_id_1p_1c", ProducerId: "overridden_id", ProducerInstances: 1, ConsumerId: "overridden_id", ConsumerInstances: 1},
		{Name: "overridden_id_1p_2c", ProducerId: "overridden_id", ProducerInstances: 1, ConsumerId: "overridden_id", ConsumerInstances: 2},
	}
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// ScenariosFromFile loads scenarios from a yaml file. Missing instance
// counts default to 1; a missing name is derived from the identities.
func ScenariosFromFile(path string) ([]Scenario, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var file scenarioFile
	if err := yaml.UnmarshalStrict(contents, &file); err != nil {
		return nil, errors.WithMessagef(err, "error unmarshalling scenarios from %s", path)
	}
	if len(file.Scenarios) == 0 {
		return nil, errors.WithStack(&suiteerrors.ErrInvalidArgument{
			Name:    "Scenarios",
			Value:   path,
			Message: "no scenarios in file",
		})
	}
	for i := range file.Scenarios {
		s := &file.Scenarios[i]
		if s.ProducerInstances == 0 {
			s.ProducerInstances = 1
		}
		if s.ConsumerInstances == 0 {
			s.ConsumerInstances = 1
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("%s_%dp_%s_%dc", s.ProducerId, s.ProducerInstances, s.ConsumerId, s.ConsumerInstances)
		}
		if err := s.Validate(); err != nil {
			return nil, errors.WithMessagef(err, "invalid scenario %q in %s", s.Name, path)
		}
	}
	return file.Scenarios, nil
}
