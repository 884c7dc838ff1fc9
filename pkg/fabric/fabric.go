// Package fabric wires the consensus engine, bridge coordinator,
// streaming domains, and ML ordering learner into one constructed node
// (NewNode, Bootstrap, Shutdown, IsLeader, GetRaftStats).
package fabric

import (
	"fmt"
	"os"

	"github.com/cuemby/fabric/pkg/bridge"
	"github.com/cuemby/fabric/pkg/config"
	"github.com/cuemby/fabric/pkg/cryptopredicate"
	"github.com/cuemby/fabric/pkg/log"
	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/ordering"
	"github.com/cuemby/fabric/pkg/raft"
	"github.com/cuemby/fabric/pkg/storage"
	"github.com/cuemby/fabric/pkg/streaming"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/cuemby/fabric/pkg/workerpool"
)

// NodeConfig holds the fields needed to construct a Node.
type NodeConfig struct {
	NodeID    string
	Peers     []string
	DataDir   string
	HMACKey   []byte
	ModelName string
	Fabric    config.Config
}

// Node is one constructed fabric instance: a RAFT participant plus the
// bridge coordinator, streaming domain services, and ML ordering
// learner it hosts.
type Node struct {
	nodeID string
	cfg    config.Config

	store     storage.Store
	bus       *observer.Bus
	pool      *workerpool.Pool
	transport *raft.InMemoryTransport

	Raft    *raft.Node
	Bridge  *bridge.Coordinator
	Learner *ordering.Learner

	Transactions *streaming.TransactionService
	Blocks       *streaming.BlockService
	Validators   *streaming.ValidatorService
	Webhooks     *streaming.WebhookService
}

// noopFSM applies committed RAFT log entries that carry no fabric-level
// side effect beyond replication itself. Bridge transfers and model
// snapshots are owned directly by pkg/bridge and pkg/ordering, which
// persist through pkg/storage rather than through the RAFT log; this FSM
// exists only to satisfy raft.Node's requirement that every committed
// entry is applied exactly once.
type noopFSM struct{}

func (noopFSM) Apply(entry types.LogEntry) error { return nil }

// NewNode constructs a Node. transport should be shared across every
// node in the same in-process cluster (see raft.NewInMemoryTransport);
// NewNode accepts only this in-memory transport.
func NewNode(nc NodeConfig, transport *raft.InMemoryTransport) (*Node, error) {
	if err := os.MkdirAll(nc.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewBoltStore(nc.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	bus := observer.NewBus()
	pool := workerpool.New(nc.Fabric.WorkerPoolSize, nc.Fabric.SubscriptionQueueCapacity)

	raftNode, err := raft.New(nc.NodeID, nc.Peers, transport, store, noopFSM{}, nc.Fabric, bus)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to construct raft node: %w", err)
	}
	transport.Register(raftNode)

	verifier := cryptopredicate.NewHMACVerifier(nc.HMACKey)
	coordinator := bridge.New(store, bus, verifier, nc.Fabric)

	learner := ordering.New(store, pool, nc.Fabric, nc.ModelName)

	node := &Node{
		nodeID:       nc.NodeID,
		cfg:          nc.Fabric,
		store:        store,
		bus:          bus,
		pool:         pool,
		transport:    transport,
		Raft:         raftNode,
		Bridge:       coordinator,
		Learner:      learner,
		Transactions: streaming.NewTransactionService(bus, nc.Fabric.SubscriptionQueueCapacity),
		Blocks:       streaming.NewBlockService(bus, nc.Fabric.SubscriptionQueueCapacity),
		Validators:   streaming.NewValidatorService(bus, nc.Fabric.SubscriptionQueueCapacity),
		Webhooks:     streaming.NewWebhookService(bus, nc.Fabric.SubscriptionQueueCapacity),
	}

	log.WithNodeID(nc.NodeID).Info().Msg("fabric node constructed")
	return node, nil
}

// Bootstrap starts the node's RAFT background loop. For a single-node
// cluster this is sufficient to self-elect as leader.
func (n *Node) Bootstrap() error {
	go n.Raft.Run()
	return nil
}

// IsLeader reports whether this node currently holds RAFT leadership.
func (n *Node) IsLeader() bool {
	return n.Raft.IsLeader()
}

// GetRaftStats returns the underlying RAFT node's statistics.
func (n *Node) GetRaftStats() raft.Stats {
	return n.Raft.GetRaftStats()
}

// NodeID returns this node's stable identifier.
func (n *Node) NodeID() string {
	return n.nodeID
}

// Shutdown stops the RAFT loop, the worker pool, and closes the store.
func (n *Node) Shutdown() error {
	n.Raft.Stop()
	n.pool.Stop()
	n.bus.Close()
	if err := n.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}
