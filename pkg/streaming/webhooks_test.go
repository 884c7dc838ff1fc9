package streaming_test

import (
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/streaming"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestRegisterWebhookRejectsEmptyURL(t *testing.T) {
	svc := streaming.NewWebhookService(observer.NewBus(), 10)
	_, err := svc.RegisterWebhook("", []string{"tx"})
	require.Error(t, err)
}

func TestBatchRegisterWebhooksSkipsInvalid(t *testing.T) {
	svc := streaming.NewWebhookService(observer.NewBus(), 10)
	webhooks := svc.BatchRegisterWebhooks([]string{"https://a", "", "https://b"}, nil)
	require.Len(t, webhooks, 2)
}

func TestStreamDeliveriesFiltersByWebhookID(t *testing.T) {
	svc := streaming.NewWebhookService(observer.NewBus(), 10)
	webhook, err := svc.RegisterWebhook("https://a", []string{"tx"})
	require.NoError(t, err)

	ch := svc.StreamDeliveries("watcher", webhook.WebhookID)

	svc.Deliver("other-webhook", "evt-1", true)
	svc.Deliver(webhook.WebhookID, "evt-2", true)

	select {
	case evt := <-ch:
		delivery, ok := evt.Payload.(*types.WebhookDelivery)
		require.True(t, ok)
		require.Equal(t, webhook.WebhookID, delivery.WebhookID)
		require.Equal(t, "evt-2", delivery.EventID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery event")
	}
}

func TestAckDeliveryScopesToRegisteredWebhooks(t *testing.T) {
	svc := streaming.NewWebhookService(observer.NewBus(), 10)
	w1, err := svc.RegisterWebhook("https://a", nil)
	require.NoError(t, err)
	w2, err := svc.RegisterWebhook("https://b", nil)
	require.NoError(t, err)

	ch := svc.AckDelivery("watcher", []string{w1.WebhookID})

	svc.Deliver(w2.WebhookID, "evt-1", true)
	svc.Deliver(w1.WebhookID, "evt-2", true)

	select {
	case evt := <-ch:
		delivery, ok := evt.Payload.(*types.WebhookDelivery)
		require.True(t, ok)
		require.Equal(t, w1.WebhookID, delivery.WebhookID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scoped delivery event")
	}
}
