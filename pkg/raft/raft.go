// Package raft implements the fabric's RAFT Consensus Engine: leader
// election with randomized timeouts, log replication via AppendEntries,
// and single-server cluster membership changes through the replicated
// log itself. The wire transport is modeled as an interface (per the
// fabric's treatment of RPC framing as an external collaborator); an
// in-memory Transport is provided for running a multi-node cluster in
// one process.
package raft

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cuemby/fabric/pkg/config"
	"github.com/cuemby/fabric/pkg/ferrors"
	"github.com/cuemby/fabric/pkg/log"
	"github.com/cuemby/fabric/pkg/metrics"
	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/statemachine"
	"github.com/cuemby/fabric/pkg/storage"
	"github.com/cuemby/fabric/pkg/types"
)

// FSM applies committed log entries to application state. Apply is
// called exactly once, in order, for every committed application entry
// on every node (State-Machine Safety); membership entries change the
// peer set instead and are not passed to Apply.
type FSM interface {
	Apply(entry types.LogEntry) error
}

// RequestVoteRequest is the RequestVote RPC payload.
type RequestVoteRequest struct {
	Term         uint64
	CandidateID  string
	LastLogIndex uint64
	LastLogTerm  uint64
}

// RequestVoteResponse is the RequestVote RPC reply.
type RequestVoteResponse struct {
	Term        uint64
	VoteGranted bool
}

// AppendEntriesRequest is the AppendEntries RPC payload (heartbeat when
// Entries is empty).
type AppendEntriesRequest struct {
	Term         uint64
	LeaderID     string
	PrevLogIndex uint64
	PrevLogTerm  uint64
	Entries      []types.LogEntry
	LeaderCommit uint64
}

// AppendEntriesResponse is the AppendEntries RPC reply.
type AppendEntriesResponse struct {
	Term    uint64
	Success bool
	// MatchIndex lets the leader advance nextIndex/matchIndex in one
	// round trip instead of decrementing one entry at a time forever.
	MatchIndex uint64
}

// Transport delivers RAFT RPCs to a named peer. Implementations model
// the wire framing that is out of scope for this package.
type Transport interface {
	SendRequestVote(ctx context.Context, peerID string, req *RequestVoteRequest) (*RequestVoteResponse, error)
	SendAppendEntries(ctx context.Context, peerID string, req *AppendEntriesRequest) (*AppendEntriesResponse, error)
}

// configChangeKind distinguishes a cluster-membership log entry from an
// application payload.
type configChangeKind byte

const (
	payloadApplication configChangeKind = 0
	payloadAddNode     configChangeKind = 1
	payloadRemoveNode  configChangeKind = 2
)

// Node is one member of a RAFT cluster.
type Node struct {
	mu sync.Mutex

	id        string
	peers     map[string]bool // excludes self
	transport Transport
	store     storage.Store
	fsm       FSM
	cfg       config.Config
	bus       *observer.Bus

	role        *statemachine.Machine[types.NodeRole]
	currentTerm uint64
	votedFor    string
	commitIndex uint64
	lastApplied uint64

	nextIndex  map[string]uint64
	matchIndex map[string]uint64

	lastContact time.Time
	stopCh      chan struct{}
	stopped     bool
	rng         *rand.Rand
}

// New constructs a Node in the Follower state. peers lists every other
// node's ID in the initial cluster configuration.
func New(id string, peers []string, transport Transport, store storage.Store, fsm FSM, cfg config.Config, bus *observer.Bus) (*Node, error) {
	peerSet := make(map[string]bool, len(peers))
	for _, p := range peers {
		if p != id {
			peerSet[p] = true
		}
	}

	identity, err := store.GetNodeIdentity(id)
	var currentTerm uint64
	var votedFor string
	if err == nil {
		currentTerm = identity.CurrentTerm
		votedFor = identity.VotedFor
	}

	n := &Node{
		id:        id,
		peers:     peerSet,
		transport: transport,
		store:     store,
		fsm:       fsm,
		cfg:       cfg,
		bus:       bus,
		role: statemachine.New(types.RoleFollower, []statemachine.Transition[types.NodeRole]{
			{From: types.RoleFollower, To: types.RoleCandidate},
			{From: types.RoleCandidate, To: types.RoleLeader},
			{From: types.RoleCandidate, To: types.RoleFollower},
			{From: types.RoleLeader, To: types.RoleFollower},
		}),
		currentTerm: currentTerm,
		votedFor:    votedFor,
		nextIndex:   make(map[string]uint64),
		matchIndex:  make(map[string]uint64),
		lastContact: time.Now(),
		stopCh:      make(chan struct{}),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	return n, nil
}

// Run starts the election timer loop. It blocks until Stop is called, so
// callers run it in its own goroutine.
func (n *Node) Run() {
	for {
		timeout := n.randomElectionTimeout()
		select {
		case <-time.After(timeout):
			n.mu.Lock()
			sinceContact := time.Since(n.lastContact)
			role := n.role.Current()
			n.mu.Unlock()
			if role != types.RoleLeader && sinceContact >= timeout {
				n.startElection()
			}
		case <-n.stopCh:
			return
		}
	}
}

// Stop halts the node's background loops.
func (n *Node) Stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	n.mu.Unlock()
	close(n.stopCh)
}

func (n *Node) randomElectionTimeout() time.Duration {
	min, max := n.cfg.ElectionTimeoutRange()
	if max <= min {
		return min
	}
	return min + time.Duration(n.rng.Int63n(int64(max-min)))
}

func (n *Node) persistIdentity() error {
	return n.store.SaveNodeIdentity(&types.NodeIdentity{
		NodeID:      n.id,
		Role:        n.role.Current(),
		CurrentTerm: n.currentTerm,
		VotedFor:    n.votedFor,
		CommitIndex: n.commitIndex,
		LastApplied: n.lastApplied,
	})
}

// IsLeader reports whether this node currently believes it is the
// cluster leader.
func (n *Node) IsLeader() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role.Current() == types.RoleLeader
}

// CurrentTerm returns the node's current term.
func (n *Node) CurrentTerm() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.currentTerm
}

// Stats is a point-in-time view of a node's RAFT state, used for
// metrics and diagnostics.
type Stats struct {
	NodeID      string
	Role        types.NodeRole
	CurrentTerm uint64
	CommitIndex uint64
	LastApplied uint64
	Peers       int
}

// GetRaftStats returns the node's current RAFT state.
func (n *Node) GetRaftStats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Stats{
		NodeID:      n.id,
		Role:        n.role.Current(),
		CurrentTerm: n.currentTerm,
		CommitIndex: n.commitIndex,
		LastApplied: n.lastApplied,
		Peers:       len(n.peers) + 1,
	}
}

func (n *Node) lastLogIndexAndTerm() (uint64, uint64) {
	idx, err := n.store.LastLogIndex()
	if err != nil || idx == 0 {
		return 0, 0
	}
	entry, err := n.store.GetLogEntry(idx)
	if err != nil {
		return idx, 0
	}
	return idx, entry.Term
}

// startElection transitions to Candidate, increments the term, votes for
// itself, and solicits votes from every peer.
func (n *Node) startElection() {
	n.mu.Lock()
	if n.role.Current() == types.RoleLeader {
		n.mu.Unlock()
		return
	}
	if err := n.role.Transition(types.RoleCandidate); err != nil {
		// Already candidate or leader raced us; retry on next timeout.
		n.mu.Unlock()
		return
	}
	n.currentTerm++
	n.votedFor = n.id
	term := n.currentTerm
	lastLogIndex, lastLogTerm := n.lastLogIndexAndTerm()
	peers := make([]string, 0, len(n.peers))
	for p := range n.peers {
		peers = append(peers, p)
	}
	n.persistIdentity()
	n.mu.Unlock()

	metrics.RaftElectionsTotal.Inc()
	log.WithNodeID(n.id).Info().Uint64("term", term).Msg("starting election")

	votes := 1 // vote for self
	var votesMu sync.Mutex
	var wg sync.WaitGroup

	for _, peer := range peers {
		wg.Add(1)
		go func(peer string) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), n.cfg.HeartbeatInterval()*4)
			defer cancel()
			resp, err := n.transport.SendRequestVote(ctx, peer, &RequestVoteRequest{
				Term:         term,
				CandidateID:  n.id,
				LastLogIndex: lastLogIndex,
				LastLogTerm:  lastLogTerm,
			})
			if err != nil {
				return
			}
			n.mu.Lock()
			if resp.Term > n.currentTerm {
				n.stepDown(resp.Term)
				n.mu.Unlock()
				return
			}
			n.mu.Unlock()
			if resp.VoteGranted {
				votesMu.Lock()
				votes++
				votesMu.Unlock()
			}
		}(peer)
	}
	wg.Wait()

	majority := (len(peers)+1)/2 + 1
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.role.Current() != types.RoleCandidate || n.currentTerm != term {
		return // state changed underneath us (stepped down, or new election)
	}
	if votes >= majority {
		n.becomeLeaderLocked()
	}
}

// becomeLeaderLocked transitions to Leader. Caller must hold n.mu.
func (n *Node) becomeLeaderLocked() {
	if err := n.role.Transition(types.RoleLeader); err != nil {
		return
	}
	lastIndex, _ := n.lastLogIndexAndTerm()
	for peer := range n.peers {
		n.nextIndex[peer] = lastIndex + 1
		n.matchIndex[peer] = 0
	}
	log.WithNodeID(n.id).Info().Uint64("term", n.currentTerm).Msg("became leader")
	metrics.RaftIsLeader.Set(1)
	go n.leaderHeartbeatLoop(n.currentTerm)
}

// stepDown reverts to Follower at the given (higher) term. Caller must
// hold n.mu.
func (n *Node) stepDown(term uint64) {
	wasLeader := n.role.Current() == types.RoleLeader
	n.currentTerm = term
	n.votedFor = ""
	if n.role.Current() != types.RoleFollower {
		n.role.Transition(types.RoleFollower)
	}
	n.persistIdentity()
	if wasLeader {
		metrics.RaftIsLeader.Set(0)
	}
}

// leaderHeartbeatLoop sends periodic AppendEntries to all peers while
// this node remains leader of the given term.
func (n *Node) leaderHeartbeatLoop(term uint64) {
	ticker := time.NewTicker(n.cfg.HeartbeatInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.mu.Lock()
			stillLeader := n.role.Current() == types.RoleLeader && n.currentTerm == term
			n.mu.Unlock()
			if !stillLeader {
				return
			}
			n.replicateToAll(term)
		case <-n.stopCh:
			return
		}
	}
}

// RequestVote handles an inbound RequestVote RPC.
func (n *Node) RequestVote(req *RequestVoteRequest) *RequestVoteResponse {
	n.mu.Lock()
	defer n.mu.Unlock()

	if req.Term > n.currentTerm {
		n.stepDown(req.Term)
	}
	if req.Term < n.currentTerm {
		return &RequestVoteResponse{Term: n.currentTerm, VoteGranted: false}
	}

	lastLogIndex, lastLogTerm := n.lastLogIndexAndTerm()
	logUpToDate := req.LastLogTerm > lastLogTerm ||
		(req.LastLogTerm == lastLogTerm && req.LastLogIndex >= lastLogIndex)

	granted := (n.votedFor == "" || n.votedFor == req.CandidateID) && logUpToDate
	if granted {
		n.votedFor = req.CandidateID
		n.lastContact = time.Now()
		n.persistIdentity()
	}
	return &RequestVoteResponse{Term: n.currentTerm, VoteGranted: granted}
}

// AppendEntries handles an inbound AppendEntries RPC (heartbeat or log
// replication).
func (n *Node) AppendEntries(req *AppendEntriesRequest) *AppendEntriesResponse {
	n.mu.Lock()
	defer n.mu.Unlock()

	if req.Term > n.currentTerm {
		n.stepDown(req.Term)
	}
	if req.Term < n.currentTerm {
		return &AppendEntriesResponse{Term: n.currentTerm, Success: false}
	}

	n.lastContact = time.Now()
	if n.role.Current() == types.RoleCandidate {
		n.role.Transition(types.RoleFollower)
	}

	if req.PrevLogIndex > 0 {
		prev, err := n.store.GetLogEntry(req.PrevLogIndex)
		if err != nil || prev.Term != req.PrevLogTerm {
			return &AppendEntriesResponse{Term: n.currentTerm, Success: false}
		}
	}

	for _, entry := range req.Entries {
		existing, err := n.store.GetLogEntry(entry.Index)
		if err == nil && existing.Term != entry.Term {
			n.store.TruncateLogFrom(entry.Index)
		}
		if err := n.store.AppendLogEntry(&entry); err != nil {
			return &AppendEntriesResponse{Term: n.currentTerm, Success: false}
		}
		n.applyConfigChange(entry)
	}

	lastNewIndex := req.PrevLogIndex + uint64(len(req.Entries))
	if req.LeaderCommit > n.commitIndex {
		if req.LeaderCommit < lastNewIndex {
			n.commitIndex = req.LeaderCommit
		} else {
			n.commitIndex = lastNewIndex
		}
		n.applyCommitted()
	}
	metrics.RaftCommitIndex.Set(float64(n.commitIndex))
	n.persistIdentity()

	return &AppendEntriesResponse{Term: n.currentTerm, Success: true, MatchIndex: lastNewIndex}
}

// applyConfigChange interprets a log entry's leading byte as a
// configChangeKind and mutates the peer set when committed-for-apply.
// It is called at append time so membership reflects the log even
// before commit, matching single-server-change semantics: only one
// such change may be in flight, because propose refuses a membership
// change while an uncommitted one is still in the leader's log.
func (n *Node) applyConfigChange(entry types.LogEntry) (configChangeKind, bool) {
	if len(entry.Payload) == 0 {
		return payloadApplication, false
	}
	kind := configChangeKind(entry.Payload[0])
	if kind != payloadAddNode && kind != payloadRemoveNode {
		return payloadApplication, false
	}
	nodeID := string(entry.Payload[1:])
	if kind == payloadAddNode {
		if nodeID != n.id {
			n.peers[nodeID] = true
		}
	} else {
		delete(n.peers, nodeID)
	}
	return kind, true
}

// applyCommitted applies every log entry between lastApplied and
// commitIndex to the FSM, in order, exactly once. Caller must hold n.mu.
func (n *Node) applyCommitted() {
	for n.lastApplied < n.commitIndex {
		n.lastApplied++
		entry, err := n.store.GetLogEntry(n.lastApplied)
		if err != nil {
			log.WithNodeID(n.id).Error().Err(err).Uint64("index", n.lastApplied).Msg("missing committed log entry")
			return
		}
		if len(entry.Payload) > 0 {
			kind := configChangeKind(entry.Payload[0])
			if kind == payloadApplication {
				if err := n.fsm.Apply(*entry); err != nil {
					log.WithNodeID(n.id).Error().Err(err).Msg("fsm apply failed")
				}
			}
		}
	}
}

// ProposeValue appends payload as a new log entry and blocks until it is
// replicated to a majority and committed. Only the leader may propose.
func (n *Node) ProposeValue(ctx context.Context, payload []byte) error {
	return n.propose(ctx, payloadApplication, payload)
}

// AddNode proposes a single-server membership change adding nodeID to
// the cluster, serialized through the normal log like any other entry.
func (n *Node) AddNode(ctx context.Context, nodeID string) error {
	return n.propose(ctx, payloadAddNode, []byte(nodeID))
}

// RemoveNode proposes a single-server membership change removing nodeID.
func (n *Node) RemoveNode(ctx context.Context, nodeID string) error {
	return n.propose(ctx, payloadRemoveNode, []byte(nodeID))
}

func (n *Node) propose(ctx context.Context, kind configChangeKind, data []byte) error {
	n.mu.Lock()
	if n.role.Current() != types.RoleLeader {
		n.mu.Unlock()
		return ferrors.Precondition("not leader")
	}
	term := n.currentTerm
	lastIndex, _ := n.lastLogIndexAndTerm()
	if kind != payloadApplication {
		for i := n.commitIndex + 1; i <= lastIndex; i++ {
			if e, err := n.store.GetLogEntry(i); err == nil && len(e.Payload) > 0 && configChangeKind(e.Payload[0]) != payloadApplication {
				n.mu.Unlock()
				return ferrors.Precondition("a membership change is already in flight")
			}
		}
	}
	index := lastIndex + 1
	payload := make([]byte, 1+len(data))
	payload[0] = byte(kind)
	copy(payload[1:], data)
	entry := types.LogEntry{Term: term, Index: index, Payload: payload}
	if err := n.store.AppendLogEntry(&entry); err != nil {
		n.mu.Unlock()
		return ferrors.Internalf("append log entry: %v", err)
	}
	n.applyConfigChange(entry)
	metrics.RaftLastLogIndex.Set(float64(index))
	n.mu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftApplyDuration)

	for {
		n.replicateToAll(term)
		n.mu.Lock()
		committed := n.commitIndex >= index
		stillLeader := n.role.Current() == types.RoleLeader && n.currentTerm == term
		n.mu.Unlock()
		if committed {
			return nil
		}
		if !stillLeader {
			return ferrors.Unavail("lost leadership before commit")
		}
		select {
		case <-ctx.Done():
			return ferrors.Deadline("propose deadline exceeded")
		case <-time.After(n.cfg.HeartbeatInterval()):
		}
	}
}

// replicateToAll sends AppendEntries to every peer and advances
// commitIndex if a majority now matches a higher index in this node's
// own term (never commits a prior-term entry solely by match count).
func (n *Node) replicateToAll(term uint64) {
	n.mu.Lock()
	if n.role.Current() != types.RoleLeader || n.currentTerm != term {
		n.mu.Unlock()
		return
	}
	peers := make([]string, 0, len(n.peers))
	for p := range n.peers {
		peers = append(peers, p)
	}
	leaderCommit := n.commitIndex
	n.mu.Unlock()

	var wg sync.WaitGroup
	for _, peer := range peers {
		wg.Add(1)
		go func(peer string) {
			defer wg.Done()
			n.replicateToPeer(term, peer, leaderCommit)
		}(peer)
	}
	wg.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.role.Current() != types.RoleLeader || n.currentTerm != term {
		return
	}
	lastIndex, _ := n.lastLogIndexAndTerm()
	for idx := lastIndex; idx > n.commitIndex; idx-- {
		entry, err := n.store.GetLogEntry(idx)
		if err != nil || entry.Term != term {
			continue // never commit a prior-term entry solely by count
		}
		matches := 1 // self
		for _, peer := range peers {
			if n.matchIndex[peer] >= idx {
				matches++
			}
		}
		if matches >= (len(peers)+1)/2+1 {
			n.commitIndex = idx
			n.applyCommitted()
			metrics.RaftCommitIndex.Set(float64(n.commitIndex))
			break
		}
	}
}

// replicateToPeer sends one AppendEntries RPC to peer, decrementing
// nextIndex on log-mismatch failure so a lagging or rejoining follower
// is eventually brought up to date.
func (n *Node) replicateToPeer(term uint64, peer string, leaderCommit uint64) {
	n.mu.Lock()
	next := n.nextIndex[peer]
	if next == 0 {
		next = 1
	}
	prevIndex := next - 1
	var prevTerm uint64
	if prevIndex > 0 {
		if prevEntry, err := n.store.GetLogEntry(prevIndex); err == nil {
			prevTerm = prevEntry.Term
		}
	}
	lastIndex, _ := n.lastLogIndexAndTerm()
	var entries []types.LogEntry
	for idx := next; idx <= lastIndex; idx++ {
		if e, err := n.store.GetLogEntry(idx); err == nil {
			entries = append(entries, *e)
		}
	}
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.HeartbeatInterval()*4)
	defer cancel()
	resp, err := n.transport.SendAppendEntries(ctx, peer, &AppendEntriesRequest{
		Term:         term,
		LeaderID:     n.id,
		PrevLogIndex: prevIndex,
		PrevLogTerm:  prevTerm,
		Entries:      entries,
		LeaderCommit: leaderCommit,
	})
	if err != nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if resp.Term > n.currentTerm {
		n.stepDown(resp.Term)
		return
	}
	if n.role.Current() != types.RoleLeader || n.currentTerm != term {
		return
	}
	if resp.Success {
		if resp.MatchIndex > n.matchIndex[peer] {
			n.matchIndex[peer] = resp.MatchIndex
		}
		n.nextIndex[peer] = resp.MatchIndex + 1
	} else if n.nextIndex[peer] > 1 {
		n.nextIndex[peer]--
	}
}
