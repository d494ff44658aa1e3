package capacity

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dev-mohitbeniwal/trackgate/collector"
	gate_errors "github.com/dev-mohitbeniwal/trackgate/errors"
	"github.com/dev-mohitbeniwal/trackgate/model"
	"github.com/dev-mohitbeniwal/trackgate/util"
)

// Manager owns one loop per pool.
type Manager struct {
	loops map[string]*PoolLoop
	ids   []string
}

func NewManager(
	pools []model.PoolState,
	controller *Controller,
	source collector.Source,
	orchestrator Orchestrator,
	publisher util.Publisher,
	cfg LoopConfig,
) (*Manager, error) {
	m := &Manager{loops: make(map[string]*PoolLoop, len(pools))}
	for _, p := range pools {
		if _, dup := m.loops[p.PoolID]; dup {
			return nil, fmt.Errorf("%w: %s", gate_errors.ErrDuplicatePool, p.PoolID)
		}
		loop, err := NewPoolLoop(p, controller, source, orchestrator, publisher, cfg)
		if err != nil {
			return nil, err
		}
		m.loops[p.PoolID] = loop
		m.ids = append(m.ids, p.PoolID)
	}
	sort.Strings(m.ids)
	return m, nil
}

// Run starts every loop and blocks until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range m.ids {
		loop := m.loops[id]
		g.Go(func() error { return loop.Run(ctx) })
	}
	return g.Wait()
}

func (m *Manager) Loop(poolID string) (*PoolLoop, bool) {
	loop, ok := m.loops[poolID]
	return loop, ok
}

func (m *Manager) Snapshot(poolID string) (model.PoolState, error) {
	loop, ok := m.loops[poolID]
	if !ok {
		return model.PoolState{}, fmt.Errorf("%w: %s", gate_errors.ErrPoolNotFound, poolID)
	}
	return loop.Snapshot(), nil
}

// Pools returns snapshots of every pool ordered by id.
func (m *Manager) Pools() []model.PoolState {
	out := make([]model.PoolState, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.loops[id].Snapshot())
	}
	return out
}
