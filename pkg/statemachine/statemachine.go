// Package statemachine implements the fabric's Versioned State Machine: a
// small generic engine for declaring legal transitions, per-state
// timeouts, and entry/exit hooks, used for RAFT node roles.
package statemachine

import (
	"sync"
	"time"

	"github.com/cuemby/fabric/pkg/ferrors"
)

// Transition declares that From may move to To.
type Transition[S comparable] struct {
	From S
	To   S
}

// Hook is called with the state being entered or exited.
type Hook[S comparable] func(state S)

// Machine is a generic, thread-safe declarative state machine. Version
// increments on every successful transition, so callers can detect
// concurrent modification (optimistic concurrency) between a read and a
// later compare-and-transition.
type Machine[S comparable] struct {
	mu        sync.Mutex
	current   S
	version   uint64
	legal     map[S]map[S]bool
	timeouts  map[S]time.Duration
	onEntry   map[S]Hook[S]
	onExit    map[S]Hook[S]
	enteredAt time.Time
	clock     func() time.Time
}

// Option configures a Machine at construction.
type Option[S comparable] func(*Machine[S])

// WithTimeout declares that state s times out after d if no transition
// occurs.
func WithTimeout[S comparable](s S, d time.Duration) Option[S] {
	return func(m *Machine[S]) { m.timeouts[s] = d }
}

// WithOnEntry registers a hook run (synchronously, under no lock) when s
// is entered.
func WithOnEntry[S comparable](s S, h Hook[S]) Option[S] {
	return func(m *Machine[S]) { m.onEntry[s] = h }
}

// WithOnExit registers a hook run when s is exited.
func WithOnExit[S comparable](s S, h Hook[S]) Option[S] {
	return func(m *Machine[S]) { m.onExit[s] = h }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock[S comparable](clock func() time.Time) Option[S] {
	return func(m *Machine[S]) { m.clock = clock }
}

// New builds a Machine starting in initial, legal only along the given
// transitions.
func New[S comparable](initial S, transitions []Transition[S], opts ...Option[S]) *Machine[S] {
	m := &Machine[S]{
		current:  initial,
		legal:    make(map[S]map[S]bool),
		timeouts: make(map[S]time.Duration),
		onEntry:  make(map[S]Hook[S]),
		onExit:   make(map[S]Hook[S]),
		clock:    time.Now,
	}
	for _, t := range transitions {
		if m.legal[t.From] == nil {
			m.legal[t.From] = make(map[S]bool)
		}
		m.legal[t.From][t.To] = true
	}
	for _, opt := range opts {
		opt(m)
	}
	m.enteredAt = m.clock()
	return m
}

// Current returns the current state.
func (m *Machine[S]) Current() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Version returns the number of transitions applied so far.
func (m *Machine[S]) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// CanTransition reports whether moving from the current state to to is
// declared legal.
func (m *Machine[S]) CanTransition(to S) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.legal[m.current][to]
}

// Transition moves to the target state if legal, running exit/entry
// hooks and resetting the per-state timeout clock. Returns a
// *ferrors.Error of kind ferrors.InvalidTransition if the move is not
// declared legal.
func (m *Machine[S]) Transition(to S) error {
	m.mu.Lock()
	if !m.legal[m.current][to] {
		from := m.current
		m.mu.Unlock()
		return ferrors.InvalidTransitionf("illegal transition: %v -> %v", from, to)
	}
	from := m.current
	m.current = to
	m.version++
	m.enteredAt = m.clock()
	exitHook := m.onExit[from]
	entryHook := m.onEntry[to]
	m.mu.Unlock()

	if exitHook != nil {
		exitHook(from)
	}
	if entryHook != nil {
		entryHook(to)
	}
	return nil
}

// IsTimedOut reports whether the current state has exceeded its declared
// timeout. States with no declared timeout never time out.
func (m *Machine[S]) IsTimedOut() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.timeouts[m.current]
	if !ok {
		return false
	}
	return m.clock().Sub(m.enteredAt) >= d
}

// TimeInState returns how long the machine has been in its current
// state.
func (m *Machine[S]) TimeInState() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock().Sub(m.enteredAt)
}
