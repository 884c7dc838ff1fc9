package streaming

import (
	"sync"
	"time"

	"github.com/cuemby/fabric/pkg/ferrors"
	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/google/uuid"
)

// WebhooksTopic is the observer bus topic webhook delivery events
// publish on.
const WebhooksTopic = "stream.webhooks"

// WebhookService is the webhooks streaming domain.
type WebhookService struct {
	engine *Engine

	mu       sync.Mutex
	webhooks map[string]*types.Webhook
	clock    func() time.Time
}

// NewWebhookService constructs a WebhookService publishing on bus.
func NewWebhookService(bus *observer.Bus, queueCapacity int) *WebhookService {
	return &WebhookService{engine: NewEngine(WebhooksTopic, bus, queueCapacity, 0), webhooks: make(map[string]*types.Webhook), clock: time.Now}
}

// RegisterWebhook is the unary registration call.
func (s *WebhookService) RegisterWebhook(url string, eventTypes []string) (*types.Webhook, error) {
	if url == "" {
		return nil, ferrors.Invalid("url is required")
	}
	webhook := &types.Webhook{WebhookID: uuid.NewString(), URL: url, EventTypes: eventTypes, CreatedAt: s.clock()}
	s.mu.Lock()
	s.webhooks[webhook.WebhookID] = webhook
	s.mu.Unlock()
	return webhook, nil
}

// GetWebhook is a unary point-in-time read.
func (s *WebhookService) GetWebhook(webhookID string) (*types.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	webhook, ok := s.webhooks[webhookID]
	if !ok {
		return nil, ferrors.NotFoundf("webhook %s not found", webhookID)
	}
	return webhook, nil
}

// BatchRegisterWebhooks is the client-stream shape: register every URL,
// skipping ones that fail validation rather than failing the whole
// batch.
func (s *WebhookService) BatchRegisterWebhooks(urls []string, eventTypes []string) []*types.Webhook {
	out := make([]*types.Webhook, 0, len(urls))
	for _, url := range urls {
		webhook, err := s.RegisterWebhook(url, eventTypes)
		if err != nil {
			continue
		}
		out = append(out, webhook)
	}
	return out
}

// Deliver publishes one delivery attempt; called by the fabric's
// dispatcher once per event matching a webhook's EventTypes.
func (s *WebhookService) Deliver(webhookID, eventID string, delivered bool) {
	delivery := &types.WebhookDelivery{WebhookID: webhookID, EventID: eventID, Delivered: delivered, DeliveredAt: s.clock()}
	s.engine.Publish(delivery, eventID)
}

// StreamDeliveries is the server-stream shape: live push of delivery
// attempts scoped to webhookID.
func (s *WebhookService) StreamDeliveries(subscriberID, webhookID string) <-chan *types.Event {
	filter := func(e *types.Event) bool {
		delivery, ok := e.Payload.(*types.WebhookDelivery)
		return ok && delivery.WebhookID == webhookID
	}
	return s.engine.Subscribe(subscriberID, filter)
}

// AckDelivery is the bidirectional shape: a client both acknowledges
// deliveries out of band and receives a stream of subsequent delivery
// attempts for its own registered webhooks.
func (s *WebhookService) AckDelivery(subscriberID string, webhookIDs []string) <-chan *types.Event {
	allowed := make(map[string]bool, len(webhookIDs))
	for _, id := range webhookIDs {
		allowed[id] = true
	}
	filter := func(e *types.Event) bool {
		delivery, ok := e.Payload.(*types.WebhookDelivery)
		return ok && allowed[delivery.WebhookID]
	}
	return s.engine.Subscribe(subscriberID, filter)
}

// Unsubscribe removes subscriberID from the webhooks topic.
func (s *WebhookService) Unsubscribe(subscriberID string) {
	s.engine.Unsubscribe(subscriberID)
}
