// util/event_bus.go

package util

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	logger "github.com/dev-mohitbeniwal/trackgate/logging"
)

// Event bus topics.
const (
	TopicPoolScaled = "pool.scaled"
	TopicEscalation = "capacity.escalation"
	TopicDenied     = "authorizer.denied"
)

// Event represents an event in the system
type Event struct {
	Type    string
	Payload interface{}
}

// EventHandler is a function that handles an event
type EventHandler func(context.Context, Event) error

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{})
}

// EventBus manages event subscriptions and publications. Handlers run on
// their own goroutines; Wait blocks until all in-flight handlers return.
type EventBus struct {
	subscribers map[string][]EventHandler
	limits      map[string]*semaphore.Weighted
	mu          sync.RWMutex
	errorChan   chan error
	inflight    sync.WaitGroup
	dropped     atomic.Int64
}

// NewEventBus creates a new EventBus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		limits:      make(map[string]*semaphore.Weighted),
		errorChan:   make(chan error, 100),
	}
}

// Limit caps the number of events of eventType being handled at once.
// Events published while the cap is reached are dropped.
func (eb *EventBus) Limit(eventType string, maxInFlight int) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if maxInFlight <= 0 {
		delete(eb.limits, eventType)
		return
	}
	eb.limits[eventType] = semaphore.NewWeighted(int64(maxInFlight))
}

// Dropped reports how many events were discarded by Limit.
func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Load()
}

// Subscribe adds a new subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], handler)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(ctx context.Context, eventType string, payload interface{}) {
	eb.mu.RLock()
	handlers := append([]EventHandler(nil), eb.subscribers[eventType]...)
	slots := eb.limits[eventType]
	eb.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}
	if slots != nil && !slots.TryAcquire(1) {
		if n := eb.dropped.Add(1); n%1000 == 1 {
			logger.Warn("Event dropped, too many in flight",
				zap.String("eventType", eventType),
				zap.Int64("droppedTotal", n))
		}
		return
	}
	// The slot is held until the last handler of this event returns.
	release := func() {}
	if slots != nil {
		var remaining atomic.Int32
		remaining.Store(int32(len(handlers)))
		release = func() {
			if remaining.Add(-1) == 0 {
				slots.Release(1)
			}
		}
	}

	event := Event{
		Type:    eventType,
		Payload: payload,
	}

	// Handlers outlive the publishing request or tick.
	ctx = context.WithoutCancel(ctx)
	for _, handler := range handlers {
		eb.inflight.Add(1)
		go func(h EventHandler) {
			defer eb.inflight.Done()
			defer release()
			defer func() {
				if r := recover(); r != nil {
					eb.report(eventType, fmt.Errorf("event handler panic: %v", r))
				}
			}()
			if err := h(ctx, event); err != nil {
				eb.report(eventType, fmt.Errorf("event handler error: %w", err))
			}
		}(handler)
	}
}

func (eb *EventBus) report(eventType string, err error) {
	select {
	case eb.errorChan <- err:
	default:
		logger.Error("Error channel full, logging event handler error",
			zap.Error(err),
			zap.String("eventType", eventType))
	}
}

// Start begins processing events and handling errors
func (eb *EventBus) Start(ctx context.Context) {
	go eb.processErrors(ctx)
}

// Wait blocks until every running handler has returned.
func (eb *EventBus) Wait() {
	eb.inflight.Wait()
}

// processErrors handles errors from event handlers
func (eb *EventBus) processErrors(ctx context.Context) {
	for {
		select {
		case err := <-eb.errorChan:
			logger.Error("Event handler error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

// DeniedRequest is the payload of TopicDenied.
type DeniedRequest struct {
	ClientIP string
	Path     string
	Reason   string
	At       time.Time
}
