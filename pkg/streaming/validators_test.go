package streaming_test

import (
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/streaming"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestValidatorSubscribeFiltersByID(t *testing.T) {
	svc := streaming.NewValidatorService(observer.NewBus(), 10)
	ch := svc.Subscribe(streaming.ValidatorSubscriptionRequest{ClientID: "c1", ValidatorIDs: []string{"v2"}})

	svc.UpdateStatus(&types.ValidatorStatus{ValidatorID: "v1", Active: true})
	svc.UpdateStatus(&types.ValidatorStatus{ValidatorID: "v2", Active: true})

	select {
	case evt := <-ch:
		status, ok := evt.Payload.(*types.ValidatorStatus)
		require.True(t, ok)
		require.Equal(t, "v2", status.ValidatorID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for v2 status")
	}
}

func TestValidatorSubscribeEmptyIDsMatchesAll(t *testing.T) {
	svc := streaming.NewValidatorService(observer.NewBus(), 10)
	ch := svc.Subscribe(streaming.ValidatorSubscriptionRequest{ClientID: "c1"})

	svc.UpdateStatus(&types.ValidatorStatus{ValidatorID: "v1", Active: true})

	select {
	case evt := <-ch:
		status, ok := evt.Payload.(*types.ValidatorStatus)
		require.True(t, ok)
		require.Equal(t, "v1", status.ValidatorID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for v1 status")
	}
}

func TestBatchRegisterCountsKnownValidators(t *testing.T) {
	svc := streaming.NewValidatorService(observer.NewBus(), 10)
	svc.UpdateStatus(&types.ValidatorStatus{ValidatorID: "v1"})

	known := svc.BatchRegister([]string{"v1", "v2"})
	require.Equal(t, 1, known)
}

func TestRunPeriodicSnapshotPushesFullSet(t *testing.T) {
	svc := streaming.NewValidatorService(observer.NewBus(), 10)
	ch := svc.Subscribe(streaming.ValidatorSubscriptionRequest{ClientID: "c1"})
	svc.UpdateStatus(&types.ValidatorStatus{ValidatorID: "v1"})

	stop := make(chan struct{})
	go svc.RunPeriodicSnapshot(5*time.Millisecond, stop)
	defer close(stop)

	deadline := time.After(time.Second)
	for {
		select {
		case evt := <-ch:
			if snapshot, ok := evt.Payload.([]*types.ValidatorStatus); ok {
				require.Len(t, snapshot, 1)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for periodic snapshot")
		}
	}
}
