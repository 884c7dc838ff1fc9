package streaming

import (
	"sync"

	"github.com/cuemby/fabric/pkg/ferrors"
	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/types"
)

// BlocksTopic is the observer bus topic block events publish on.
const BlocksTopic = "stream.blocks"

// BlockService is the blocks streaming domain.
type BlockService struct {
	engine *Engine

	mu       sync.Mutex
	byHeight map[uint64]*types.Block
	latest   uint64
}

// NewBlockService constructs a BlockService publishing on bus.
func NewBlockService(bus *observer.Bus, queueCapacity int) *BlockService {
	return &BlockService{engine: NewEngine(BlocksTopic, bus, queueCapacity, 0), byHeight: make(map[uint64]*types.Block)}
}

// RecordBlock is the unary ingestion point the block producer calls once
// per finalized block; it publishes the block to every subscriber.
func (s *BlockService) RecordBlock(block *types.Block) {
	s.mu.Lock()
	s.byHeight[block.Height] = block
	if block.Height > s.latest {
		s.latest = block.Height
	}
	s.mu.Unlock()
	s.engine.Publish(block, block.Hash)
}

// GetBlock is a unary point-in-time read by height.
func (s *BlockService) GetBlock(height uint64) (*types.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.byHeight[height]
	if !ok {
		return nil, ferrors.NotFoundf("block at height %d not found", height)
	}
	return block, nil
}

// GetRange returns every recorded block among heights, in client-stream
// style: a gap in heights is skipped rather than failing the whole call.
func (s *BlockService) GetRange(heights []uint64) []*types.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Block
	for _, h := range heights {
		if b, ok := s.byHeight[h]; ok {
			out = append(out, b)
		}
	}
	return out
}

// StreamBlocks is the server-stream shape: live push of every newly
// recorded block.
func (s *BlockService) StreamBlocks(subscriberID string, filter observer.Predicate) <-chan *types.Event {
	return s.engine.Subscribe(subscriberID, filter)
}

// WatchFinality is the bidirectional shape: correlate an inbound
// watched-height request with outbound pushes once that height, or a
// later one, is recorded.
func (s *BlockService) WatchFinality(subscriberID string, height uint64) <-chan *types.Event {
	filter := func(e *types.Event) bool {
		block, ok := e.Payload.(*types.Block)
		return ok && block.Height >= height
	}
	return s.engine.Subscribe(subscriberID, filter)
}

// Unsubscribe removes subscriberID from the blocks topic.
func (s *BlockService) Unsubscribe(subscriberID string) {
	s.engine.Unsubscribe(subscriberID)
}
