package bridge_test

import (
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/bridge"
	"github.com/cuemby/fabric/pkg/config"
	"github.com/cuemby/fabric/pkg/cryptopredicate"
	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/storage"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T) *bridge.Coordinator {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	verifier := cryptopredicate.NewHMACVerifier([]byte("test-key"))
	return bridge.New(store, observer.NewBus(), verifier, config.Default())
}

func fourOracleRequest(bridgeID string, timeoutSeconds int64) bridge.InitiateTransferRequest {
	return bridge.InitiateTransferRequest{
		BridgeID:       bridgeID,
		SourceChain:    "chain-a",
		DestChain:      "chain-b",
		AssetAddress:   "0xasset",
		Amount:         "1000",
		Recipient:      "0xrecipient",
		SourceTxHash:   "0xsourcetx",
		TimeoutSeconds: timeoutSeconds,
		OracleSet:      []string{"o1", "o2", "o3", "o4"},
	}
}

func TestInitiateTransferDerivesSupermajorityThreshold(t *testing.T) {
	c := newCoordinator(t)
	transfer, err := c.InitiateTransfer(fourOracleRequest("b1", 3600))
	require.NoError(t, err)
	require.Equal(t, 3, transfer.RequiredApprovals) // floor(2*4/3)+1 = 3
	require.Equal(t, types.BridgeStatusPending, transfer.Status)
}

func TestInitiateTransferRejectsDuplicateBridgeID(t *testing.T) {
	c := newCoordinator(t)
	_, err := c.InitiateTransfer(fourOracleRequest("b1", 3600))
	require.NoError(t, err)

	_, err = c.InitiateTransfer(fourOracleRequest("b1", 3600))
	require.Error(t, err)
}

func TestVerifyBridgeMessageReachesConsensusOnce(t *testing.T) {
	c := newCoordinator(t)
	_, err := c.InitiateTransfer(fourOracleRequest("b1", 3600))
	require.NoError(t, err)

	res, err := c.VerifyBridgeMessage("b1", "o1", true, "valid proof")
	require.NoError(t, err)
	require.Nil(t, res) // below threshold, no consensus event yet

	res, err = c.VerifyBridgeMessage("b1", "o2", true, "valid proof")
	require.NoError(t, err)
	require.Nil(t, res)

	res, err = c.VerifyBridgeMessage("b1", "o3", true, "valid proof")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.True(t, res.ConsensusReached)
	require.Equal(t, 3, res.ApprovedCount)

	transfer, err := c.GetBridgeTransferStatus("b1")
	require.NoError(t, err)
	require.Equal(t, types.BridgeStatusRelayed, transfer.Status)

	// A further vote must not re-fire consensus.
	res, err = c.VerifyBridgeMessage("b1", "o4", true, "valid proof")
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestExecuteBridgeCallbackSettlesAfterRelay(t *testing.T) {
	c := newCoordinator(t)
	_, err := c.InitiateTransfer(fourOracleRequest("b1", 3600))
	require.NoError(t, err)

	for _, oracle := range []string{"o1", "o2", "o3"} {
		_, err := c.VerifyBridgeMessage("b1", oracle, true, "valid proof")
		require.NoError(t, err)
	}

	for _, oracle := range []string{"o1", "o2"} {
		require.NoError(t, c.ExecuteBridgeCallback("b1", oracle, "0xdesttx"))
	}
	transfer, err := c.GetBridgeTransferStatus("b1")
	require.NoError(t, err)
	require.Equal(t, types.BridgeStatusExecuted, transfer.Status) // the shared round already holds 3 approvals from verification

	require.NoError(t, c.ExecuteBridgeCallback("b1", "o3", "0xdesttx"))
	transfer, err = c.GetBridgeTransferStatus("b1")
	require.NoError(t, err)
	require.Equal(t, types.BridgeStatusExecuted, transfer.Status)
	require.Equal(t, "0xdesttx", transfer.DestTxHash)
	require.True(t, transfer.Finalized)

	require.NoError(t, c.ConfirmDestination("b1"))
	transfer, err = c.GetBridgeTransferStatus("b1")
	require.NoError(t, err)
	require.Equal(t, types.BridgeStatusSettled, transfer.Status)
}

func TestGetBridgeTransferStatusLazilyRefundsOnTimeout(t *testing.T) {
	c := newCoordinator(t)
	_, err := c.InitiateTransfer(fourOracleRequest("b1", 1)) // one-second timeout; 0 would fall back to the configured default
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	transfer, err := c.GetBridgeTransferStatus("b1")
	require.NoError(t, err)
	require.Equal(t, types.BridgeStatusRefunded, transfer.Status)

	// Idempotent: a second call leaves it Refunded.
	transfer, err = c.GetBridgeTransferStatus("b1")
	require.NoError(t, err)
	require.Equal(t, types.BridgeStatusRefunded, transfer.Status)
}

func TestVerifyBridgeMessageIgnoresUnknownBridgeID(t *testing.T) {
	c := newCoordinator(t)
	res, err := c.VerifyBridgeMessage("does-not-exist", "o1", true, "proof")
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestBatchBridgeTransfersAccumulatesSummary(t *testing.T) {
	c := newCoordinator(t)
	_, err := c.InitiateTransfer(fourOracleRequest("dup", 3600))
	require.NoError(t, err)

	result := c.BatchBridgeTransfers([]bridge.InitiateTransferRequest{
		fourOracleRequest("b2", 3600),
		fourOracleRequest("dup", 3600), // already exists, should be rejected
		fourOracleRequest("b3", 3600),
	})
	require.Equal(t, 2, result.Accepted)
	require.Equal(t, 1, result.Rejected)
	require.Equal(t, []string{"dup"}, result.FailedIDs)
}

func TestStreamPendingBridgeTransfersFiltersBySourceChain(t *testing.T) {
	c := newCoordinator(t)
	req := fourOracleRequest("b1", 3600)
	req.SourceChain = "chain-x"
	_, err := c.InitiateTransfer(req)
	require.NoError(t, err)

	req2 := fourOracleRequest("b2", 3600)
	req2.SourceChain = "chain-y"
	_, err = c.InitiateTransfer(req2)
	require.NoError(t, err)

	done := make(chan struct{})
	defer close(done)
	ch := c.StreamPendingBridgeTransfers(done, "chain-y")

	select {
	case transfer := <-ch:
		require.Equal(t, "b2", transfer.BridgeID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered transfer")
	}
}

func TestMonitorCrossChainStatusReceivesStatusEvents(t *testing.T) {
	c := newCoordinator(t)
	events := c.MonitorCrossChainStatus("watcher-1")

	_, err := c.InitiateTransfer(fourOracleRequest("b1", 3600))
	require.NoError(t, err)

	select {
	case evt := <-events:
		transfer, ok := evt.Payload.(*types.BridgeTransfer)
		require.True(t, ok)
		require.Equal(t, "b1", transfer.BridgeID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status event")
	}
}
