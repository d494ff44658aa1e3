package collector

import (
	"context"
	"fmt"
	"sync"

	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	"github.com/dev-mohitbeniwal/trackgate/model"
)

// PushSource buffers the latest pushed sample per pool. Each sample is
// handed out at most once; a newer push replaces an unread one.
type PushSource struct {
	mu      sync.Mutex
	pending map[string]model.UtilizationSample
}

func NewPushSource() *PushSource {
	return &PushSource{pending: make(map[string]model.UtilizationSample)}
}

func (s *PushSource) Name() string { return "push" }

// Offer stores a sample for its pool.
func (s *PushSource) Offer(sample model.UtilizationSample) error {
	if sample.PoolID == "" {
		return fmt.Errorf("%w: sample has no pool id", gate_errors.ErrSampleMalformed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.pending[sample.PoolID]; ok && sample.Timestamp.Before(cur.Timestamp) {
		return nil
	}
	s.pending[sample.PoolID] = sample
	return nil
}

func (s *PushSource) Sample(_ context.Context, poolID string) (*model.UtilizationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sample, ok := s.pending[poolID]
	if !ok {
		return nil, fmt.Errorf("%w: nothing pushed for pool %s", gate_errors.ErrSampleMissing, poolID)
	}
	delete(s.pending, poolID)
	return &sample, nil
}
