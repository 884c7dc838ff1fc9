package streaming

import (
	"sync"
	"time"

	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/types"
)

// ValidatorsTopic is the observer bus topic validator events publish on.
const ValidatorsTopic = "stream.validators"

// ValidatorSubscriptionRequest is the field-exact validator subscription
// message.
type ValidatorSubscriptionRequest struct {
	ClientID         string
	UpdateIntervalMs int
	EventTypes       []string
	ValidatorIDs     []string
}

// ValidatorService is the validators streaming domain.
type ValidatorService struct {
	engine *Engine

	mu       sync.Mutex
	statuses map[string]*types.ValidatorStatus
	clock    func() time.Time
}

// NewValidatorService constructs a ValidatorService publishing on bus.
func NewValidatorService(bus *observer.Bus, queueCapacity int) *ValidatorService {
	return &ValidatorService{
		engine:   NewEngine(ValidatorsTopic, bus, queueCapacity, 0),
		statuses: make(map[string]*types.ValidatorStatus),
		clock:    time.Now,
	}
}

// UpdateStatus is the unary point the staking subsystem calls whenever a
// validator's active/stake state changes; it republishes the status to
// subscribers.
func (s *ValidatorService) UpdateStatus(status *types.ValidatorStatus) {
	status.LastSeenAt = s.clock()
	s.mu.Lock()
	s.statuses[status.ValidatorID] = status
	s.mu.Unlock()
	s.engine.Publish(status, status.ValidatorID)
}

// GetStatus is a unary point-in-time read.
func (s *ValidatorService) GetStatus(validatorID string) (*types.ValidatorStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[validatorID]
	return status, ok
}

// BatchRegister is the client-stream shape: take many validator IDs at
// once and return how many are currently known. The IDs are not stored.
func (s *ValidatorService) BatchRegister(validatorIDs []string) (known int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range validatorIDs {
		if _, ok := s.statuses[id]; ok {
			known++
		}
	}
	return known
}

func buildValidatorFilter(validatorIDs []string) observer.Predicate {
	if len(validatorIDs) == 0 {
		return nil // default filter: match all
	}
	allowed := make(map[string]bool, len(validatorIDs))
	for _, id := range validatorIDs {
		allowed[id] = true
	}
	return func(e *types.Event) bool {
		status, ok := e.Payload.(*types.ValidatorStatus)
		return ok && allowed[status.ValidatorID]
	}
}

// Subscribe is the server-stream shape: a filter scoped to the requested
// validatorIds (empty means match all).
func (s *ValidatorService) Subscribe(req ValidatorSubscriptionRequest) <-chan *types.Event {
	return s.engine.Subscribe(req.ClientID, buildValidatorFilter(req.ValidatorIDs))
}

// MonitorValidatorSet is the bidirectional shape: same underlying
// subscription as Subscribe, exposed as its own method to mirror the RPC
// surface's separate bidi call.
func (s *ValidatorService) MonitorValidatorSet(clientID string, validatorIDs []string) <-chan *types.Event {
	return s.engine.Subscribe(clientID, buildValidatorFilter(validatorIDs))
}

func (s *ValidatorService) snapshotAll() []*types.ValidatorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.ValidatorStatus, 0, len(s.statuses))
	for _, v := range s.statuses {
		out = append(out, v)
	}
	return out
}

// RunPeriodicSnapshot pushes the full validator set on every tick of
// interval until stop is closed, for subscribers that want a steady
// cadence rather than only change notifications (an updateIntervalMs
// periodic-update stream).
func (s *ValidatorService) RunPeriodicSnapshot(interval time.Duration, stop <-chan struct{}) {
	publisher := NewPeriodicPublisher(interval, func() (any, string) {
		return s.snapshotAll(), "validators-snapshot"
	})
	go func() {
		<-stop
		publisher.Stop()
	}()
	publisher.Run(func(payload any, eventID string) {
		s.engine.Publish(payload, eventID)
	})
}

// Unsubscribe removes subscriberID from the validators topic.
func (s *ValidatorService) Unsubscribe(subscriberID string) {
	s.engine.Unsubscribe(subscriberID)
}
