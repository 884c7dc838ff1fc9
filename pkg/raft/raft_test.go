package raft_test

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/config"
	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/raft"
	"github.com/cuemby/fabric/pkg/storage"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/stretchr/testify/require"
)

type recordingFSM struct {
	applied []types.LogEntry
}

func (f *recordingFSM) Apply(entry types.LogEntry) error {
	f.applied = append(f.applied, entry)
	return nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ElectionTimeoutMinMs = 20
	cfg.ElectionTimeoutMaxMs = 40
	cfg.HeartbeatIntervalMs = 5
	return cfg
}

func newTestNode(t *testing.T, id string, peers []string, transport *raft.InMemoryTransport) (*raft.Node, *recordingFSM) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fsm := &recordingFSM{}
	node, err := raft.New(id, peers, transport, store, fsm, testConfig(), observer.NewBus())
	require.NoError(t, err)
	transport.Register(node)
	return node, fsm
}

func TestSingleNodeElectsSelfAsLeader(t *testing.T) {
	transport := raft.NewInMemoryTransport()
	node, _ := newTestNode(t, "n1", nil, transport)

	go node.Run()
	defer node.Stop()

	require.Eventually(t, node.IsLeader, time.Second, 5*time.Millisecond)
	require.Equal(t, uint64(1), node.CurrentTerm())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err := node.ProposeValue(ctx, []byte{0, 'x'})
	require.NoError(t, err)
}

func TestFollowerRejectsProposeValue(t *testing.T) {
	transport := raft.NewInMemoryTransport()
	node, _ := newTestNode(t, "n1", []string{"n2"}, transport)
	newTestNode(t, "n2", []string{"n1"}, transport)

	termBefore := node.CurrentTerm()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := node.ProposeValue(ctx, []byte{0, 'y'})
	require.Error(t, err)
	require.Equal(t, termBefore, node.CurrentTerm())
}

func TestThreeNodeClusterElectsExactlyOneLeader(t *testing.T) {
	transport := raft.NewInMemoryTransport()
	ids := []string{"n1", "n2", "n3"}
	var nodes []*raft.Node
	for _, id := range ids {
		var peers []string
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}
		node, _ := newTestNode(t, id, peers, transport)
		nodes = append(nodes, node)
	}

	for _, n := range nodes {
		go n.Run()
		defer n.Stop()
	}

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
