package fabric_test

import (
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/config"
	"github.com/cuemby/fabric/pkg/fabric"
	"github.com/cuemby/fabric/pkg/raft"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ElectionTimeoutMinMs = 20
	cfg.ElectionTimeoutMaxMs = 40
	cfg.HeartbeatIntervalMs = 5
	cfg.WorkerPoolSize = 2
	cfg.SubscriptionQueueCapacity = 16
	return cfg
}

func TestNewNodeBootstrapsAndSelfElects(t *testing.T) {
	transport := raft.NewInMemoryTransport()
	node, err := fabric.NewNode(fabric.NodeConfig{
		NodeID:    "node-1",
		DataDir:   t.TempDir(),
		HMACKey:   []byte("test-key"),
		ModelName: "ordering-default",
		Fabric:    testConfig(),
	}, transport)
	require.NoError(t, err)
	defer node.Shutdown()

	require.NoError(t, node.Bootstrap())
	require.Eventually(t, node.IsLeader, time.Second, 5*time.Millisecond)
	require.Equal(t, "node-1", node.NodeID())
}

func TestNodeExposesAllCollaborators(t *testing.T) {
	transport := raft.NewInMemoryTransport()
	node, err := fabric.NewNode(fabric.NodeConfig{
		NodeID:    "node-1",
		DataDir:   t.TempDir(),
		HMACKey:   []byte("test-key"),
		ModelName: "ordering-default",
		Fabric:    testConfig(),
	}, transport)
	require.NoError(t, err)
	defer node.Shutdown()

	require.NotNil(t, node.Raft)
	require.NotNil(t, node.Bridge)
	require.NotNil(t, node.Learner)
	require.NotNil(t, node.Transactions)
	require.NotNil(t, node.Blocks)
	require.NotNil(t, node.Validators)
	require.NotNil(t, node.Webhooks)
}

func TestShutdownStopsRaftAndClosesStore(t *testing.T) {
	transport := raft.NewInMemoryTransport()
	node, err := fabric.NewNode(fabric.NodeConfig{
		NodeID:    "node-1",
		DataDir:   t.TempDir(),
		HMACKey:   []byte("test-key"),
		ModelName: "ordering-default",
		Fabric:    testConfig(),
	}, transport)
	require.NoError(t, err)
	require.NoError(t, node.Bootstrap())
	require.Eventually(t, node.IsLeader, time.Second, 5*time.Millisecond)

	require.NoError(t, node.Shutdown())
}

func TestMultiNodeClusterSharesTransportAndElectsOneLeader(t *testing.T) {
	transport := raft.NewInMemoryTransport()
	ids := []string{"node-1", "node-2", "node-3"}
	var nodes []*fabric.Node
	for _, id := range ids {
		var peers []string
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}
		n, err := fabric.NewNode(fabric.NodeConfig{
			NodeID:    id,
			Peers:     peers,
			DataDir:   t.TempDir(),
			HMACKey:   []byte("test-key"),
			ModelName: "ordering-default",
			Fabric:    testConfig(),
		}, transport)
		require.NoError(t, err)
		require.NoError(t, n.Bootstrap())
		nodes = append(nodes, n)
	}
	defer func() {
		for _, n := range nodes {
			n.Shutdown()
		}
	}()

	require.Eventually(t, func() bool {
		leaders := 0
		for _, n := range nodes {
			if n.IsLeader() {
				leaders++
			}
		}
		return leaders == 1
	}, 2*time.Second, 10*time.Millisecond)
}
