// model/pool.go
package model

import "time"

// Phase is the cooldown state of a pool.
type Phase string

const (
	PhaseStable         Phase = "Stable"
	PhaseCoolingDownOut Phase = "CoolingDownOut"
	PhaseCoolingDownIn  Phase = "CoolingDownIn"
)

// PoolState is the controller-owned view of a backend pool. CurrentSize is
// the desired worker count the orchestrator converges to.
type PoolState struct {
	PoolID       string    `json:"pool_id"`
	CurrentSize  int       `json:"current_size"`
	MinSize      int       `json:"min_size"`
	MaxSize      int       `json:"max_size"`
	Phase        Phase     `json:"phase"`
	PhaseSince   time.Time `json:"phase_since,omitempty"`
	LastScaleOut time.Time `json:"last_scale_out,omitempty"`
	LastScaleIn  time.Time `json:"last_scale_in,omitempty"`
}

// InBounds reports whether CurrentSize lies within [MinSize, MaxSize].
func (s *PoolState) InBounds() bool {
	return s.CurrentSize >= s.MinSize && s.CurrentSize <= s.MaxSize
}
