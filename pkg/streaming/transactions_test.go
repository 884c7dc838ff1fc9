package streaming_test

import (
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/streaming"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestSubmitTransactionIsIdempotentOnResubmit(t *testing.T) {
	svc := streaming.NewTransactionService(observer.NewBus(), 10)
	req := streaming.SubmitTransactionRequest{TxHash: "0xabc", Payload: []byte("p"), Signer: "alice"}

	first, err := svc.SubmitTransaction(req)
	require.NoError(t, err)

	second, err := svc.SubmitTransaction(req)
	require.NoError(t, err)
	require.Equal(t, first.TxID, second.TxID)
}

func TestSubmitTransactionRejectsMissingFields(t *testing.T) {
	svc := streaming.NewTransactionService(observer.NewBus(), 10)
	_, err := svc.SubmitTransaction(streaming.SubmitTransactionRequest{})
	require.Error(t, err)
}

func TestBatchSubmitAccumulatesSummary(t *testing.T) {
	svc := streaming.NewTransactionService(observer.NewBus(), 10)
	result := svc.BatchSubmit([]streaming.SubmitTransactionRequest{
		{TxHash: "0x1", Signer: "alice"},
		{TxHash: "", Signer: "bob"}, // invalid, missing hash
		{TxHash: "0x3", Signer: "carol"},
	})
	require.Equal(t, 2, result.Accepted)
	require.Equal(t, 1, result.Rejected)
	require.Len(t, result.TxIDs, 2)
}

func TestStreamTransactionsReceivesSubmissions(t *testing.T) {
	svc := streaming.NewTransactionService(observer.NewBus(), 10)
	ch := svc.StreamTransactions("watcher", nil)

	_, err := svc.SubmitTransaction(streaming.SubmitTransactionRequest{TxHash: "0x1", Signer: "alice"})
	require.NoError(t, err)

	select {
	case evt := <-ch:
		record, ok := evt.Payload.(*types.TransactionRecord)
		require.True(t, ok)
		require.Equal(t, "0x1", record.TxHash)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for submission event")
	}
}

func TestMonitorTransactionFiltersToOneTxID(t *testing.T) {
	svc := streaming.NewTransactionService(observer.NewBus(), 10)
	record, err := svc.SubmitTransaction(streaming.SubmitTransactionRequest{TxHash: "0x1", Signer: "alice"})
	require.NoError(t, err)

	ch := svc.MonitorTransaction("watcher", record.TxID)

	_, err2 := svc.SubmitTransaction(streaming.SubmitTransactionRequest{TxHash: "0x2", Signer: "bob"})
	require.NoError(t, err2)
	require.NoError(t, svc.AdvanceStatus(record.TxID, types.TxStatusValidated, "", 0))

	select {
	case evt := <-ch:
		got, ok := evt.Payload.(*types.TransactionRecord)
		require.True(t, ok)
		require.Equal(t, record.TxID, got.TxID)
		require.Equal(t, types.TxStatusValidated, got.Status)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for monitored transaction event")
	}
}
