package capacity

import (
	"context"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/trackgate/logging"
	"github.com/dev-mohitbeniwal/trackgate/model"
	"github.com/dev-mohitbeniwal/trackgate/util"
)

// Orchestrator applies decisions to the real worker pool. The controller
// never touches workers itself.
type Orchestrator interface {
	Apply(ctx context.Context, state model.PoolState, decision model.ScaleDecision) error
}

// ScaleEvent is the payload of util.TopicPoolScaled.
type ScaleEvent struct {
	PoolID      string              `json:"pool_id"`
	Decision    model.ScaleDecision `json:"decision"`
	DesiredSize int                 `json:"desired_size"`
	At          time.Time           `json:"at"`
}

// EventOrchestrator publishes decisions on the event bus. The external
// orchestrator consumes them, or polls the pool state API.
type EventOrchestrator struct {
	publisher util.Publisher
}

func NewEventOrchestrator(publisher util.Publisher) *EventOrchestrator {
	return &EventOrchestrator{publisher: publisher}
}

func (o *EventOrchestrator) Apply(ctx context.Context, state model.PoolState, decision model.ScaleDecision) error {
	logger.Info("Scale decision",
		zap.String("pool", state.PoolID),
		zap.String("decision", decision.String()),
		zap.Int("desiredSize", state.CurrentSize))
	o.publisher.Publish(ctx, util.TopicPoolScaled, ScaleEvent{
		PoolID:      state.PoolID,
		Decision:    decision,
		DesiredSize: state.CurrentSize,
		At:          time.Now(),
	})
	return nil
}
