package metrics

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/streamhouse/quotasuite/internal/common/suiteerrors"
)

// Snapshot records, per attribute key, the maximum value observed during a
// run window. It starts empty, is populated incrementally while the workload
// runs (the max reducer is append-only and never decreases), and is frozen
// once the window ends so the validator only ever reads a settled view.
type Snapshot struct {
	mu     sync.Mutex
	maxima map[AttributeKey]float64
	frozen bool
}

func NewSnapshot() *Snapshot {
	return &Snapshot{maxima: make(map[AttributeKey]float64)}
}

// Observe folds value into the maximum for key.
func (s *Snapshot) Observe(key AttributeKey, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return errors.Errorf("snapshot is frozen; dropped observation %f for %q", value, key)
	}
	if current, ok := s.maxima[key]; !ok || value > current {
		s.maxima[key] = value
	}
	return nil
}

// ObserveSum sums per-node values for the same key before folding into the
// maximum. Byte rates aggregate across broker nodes by sum; a node that
// produced no sample this tick contributes zero.
func (s *Snapshot) ObserveSum(key AttributeKey, perNodeValues ...float64) error {
	var sum float64
	for _, v := range perNodeValues {
		sum += v
	}
	return s.Observe(key, sum)
}

// Freeze closes the run window. Later observations are rejected.
func (s *Snapshot) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// MaxValue returns the maximum observed value for key. A key with no sample
// yields *suiteerrors.ErrMissingMetric: the measurement harness failed, which
// must be distinguishable from a genuine quota breach.
func (s *Snapshot) MaxValue(key AttributeKey) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.maxima[key]
	if !ok {
		return 0, errors.WithStack(&suiteerrors.ErrMissingMetric{Key: string(key)})
	}
	return value, nil
}

// Keys returns the sampled attribute keys in lexical order.
func (s *Snapshot) Keys() []AttributeKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]AttributeKey, 0, len(s.maxima))
	for key := range s.maxima {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
