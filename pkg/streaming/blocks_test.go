package streaming_test

import (
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/streaming"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestRecordBlockAndGetBlock(t *testing.T) {
	svc := streaming.NewBlockService(observer.NewBus(), 10)
	svc.RecordBlock(&types.Block{Hash: "h1", Height: 1})

	block, err := svc.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, "h1", block.Hash)

	_, err = svc.GetBlock(99)
	require.Error(t, err)
}

func TestGetRangeSkipsGaps(t *testing.T) {
	svc := streaming.NewBlockService(observer.NewBus(), 10)
	svc.RecordBlock(&types.Block{Hash: "h1", Height: 1})
	svc.RecordBlock(&types.Block{Hash: "h3", Height: 3})

	blocks := svc.GetRange([]uint64{1, 2, 3})
	require.Len(t, blocks, 2)
}

func TestWatchFinalityFiresAtOrAboveHeight(t *testing.T) {
	svc := streaming.NewBlockService(observer.NewBus(), 10)
	ch := svc.WatchFinality("watcher", 5)

	svc.RecordBlock(&types.Block{Hash: "h1", Height: 1})
	svc.RecordBlock(&types.Block{Hash: "h5", Height: 5})

	select {
	case evt := <-ch:
		block, ok := evt.Payload.(*types.Block)
		require.True(t, ok)
		require.Equal(t, uint64(5), block.Height)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for finality event")
	}
}
