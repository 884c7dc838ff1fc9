package statemachine_test

import (
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/ferrors"
	"github.com/cuemby/fabric/pkg/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trafficState string

const (
	stateRed    trafficState = "red"
	stateGreen  trafficState = "green"
	stateYellow trafficState = "yellow"
)

func newTrafficMachine(clock func() time.Time, opts ...statemachine.Option[trafficState]) *statemachine.Machine[trafficState] {
	transitions := []statemachine.Transition[trafficState]{
		{From: stateRed, To: stateGreen},
		{From: stateGreen, To: stateYellow},
		{From: stateYellow, To: stateRed},
	}
	allOpts := append([]statemachine.Option[trafficState]{statemachine.WithClock[trafficState](clock)}, opts...)
	return statemachine.New(stateRed, transitions, allOpts...)
}

func TestTransitionLegalMove(t *testing.T) {
	m := newTrafficMachine(time.Now)
	require.True(t, m.CanTransition(stateGreen))
	require.NoError(t, m.Transition(stateGreen))
	assert.Equal(t, stateGreen, m.Current())
	assert.Equal(t, uint64(1), m.Version())
}

func TestTransitionIllegalMoveReturnsInvalidTransitionKind(t *testing.T) {
	m := newTrafficMachine(time.Now)
	err := m.Transition(stateYellow)
	require.Error(t, err)
	assert.True(t, ferrors.Is(err, ferrors.InvalidTransition))
	assert.Equal(t, stateRed, m.Current())
	assert.Equal(t, uint64(0), m.Version())
}

func TestEntryAndExitHooksRunInOrder(t *testing.T) {
	var seq []string
	m := newTrafficMachine(time.Now,
		statemachine.WithOnExit(stateRed, func(s trafficState) { seq = append(seq, "exit:"+string(s)) }),
		statemachine.WithOnEntry(stateGreen, func(s trafficState) { seq = append(seq, "enter:"+string(s)) }),
	)
	require.NoError(t, m.Transition(stateGreen))
	assert.Equal(t, []string{"exit:red", "enter:green"}, seq)
}

func TestIsTimedOut(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m := newTrafficMachine(clock, statemachine.WithTimeout(stateRed, 10*time.Second))

	assert.False(t, m.IsTimedOut())
	now = now.Add(11 * time.Second)
	assert.True(t, m.IsTimedOut())
}

func TestStateWithNoDeclaredTimeoutNeverTimesOut(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m := newTrafficMachine(clock)
	now = now.Add(24 * time.Hour)
	assert.False(t, m.IsTimedOut())
}

func TestTimeInState(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m := newTrafficMachine(clock)
	now = now.Add(5 * time.Second)
	assert.Equal(t, 5*time.Second, m.TimeInState())
}
