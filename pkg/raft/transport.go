package raft

import (
	"context"
	"sync"

	"github.com/cuemby/fabric/pkg/ferrors"
)

// InMemoryTransport routes RAFT RPCs directly to in-process Node values,
// for running a multi-node cluster within a single binary (tests, local
// clusters). A real deployment would implement Transport over gRPC.
type InMemoryTransport struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewInMemoryTransport creates an empty transport; nodes register
// themselves with Register after construction.
func NewInMemoryTransport() *InMemoryTransport {
	return &InMemoryTransport{nodes: make(map[string]*Node)}
}

// Register makes node reachable by its ID.
func (t *InMemoryTransport) Register(node *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[node.id] = node
}

func (t *InMemoryTransport) lookup(peerID string) (*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[peerID]
	if !ok {
		return nil, ferrors.Unavail("peer %s not reachable", peerID)
	}
	return n, nil
}

// SendRequestVote delivers req directly to the target node's handler.
func (t *InMemoryTransport) SendRequestVote(ctx context.Context, peerID string, req *RequestVoteRequest) (*RequestVoteResponse, error) {
	peer, err := t.lookup(peerID)
	if err != nil {
		return nil, err
	}
	return peer.RequestVote(req), nil
}

// SendAppendEntries delivers req directly to the target node's handler.
func (t *InMemoryTransport) SendAppendEntries(ctx context.Context, peerID string, req *AppendEntriesRequest) (*AppendEntriesResponse, error) {
	peer, err := t.lookup(peerID)
	if err != nil {
		return nil, err
	}
	return peer.AppendEntries(req), nil
}
