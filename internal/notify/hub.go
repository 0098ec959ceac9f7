// Package notify fans order and ledger change events out to the parties
// that care right now: the shop's connected staff sessions and the
// customer who placed the order. Delivery is best-effort by contract;
// every receiver can reconstruct correct state with a direct re-fetch,
// so a dropped event only delays a UI refresh.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/udhaarplus/backend/internal/config"
	"github.com/udhaarplus/backend/internal/models"
)

type EventKind string

const (
	EventOrderCreated       EventKind = "order_created"
	EventOrderStatusChanged EventKind = "order_status_changed"
)

// Event is the envelope pushed to subscribers. Order is set for
// order_created; OrderID/NewStatus for order_status_changed.
type Event struct {
	Kind      EventKind          `json:"event"`
	Order     *models.Order      `json:"order,omitempty"`
	OrderID   string             `json:"order_id,omitempty"`
	NewStatus models.OrderStatus `json:"new_status,omitempty"`
	Origin    string             `json:"origin,omitempty"`
}

type subscribers map[chan Event]struct{}

// Hub keeps the current mapping from shop id to connected staff
// channels and from customer id to connected customer channels. Entries
// exist only while the subscriber is connected; nothing survives a
// reconnect and no missed event is ever replayed.
type Hub struct {
	mu        sync.RWMutex
	shops     map[int64]subscribers
	customers map[int64]subscribers

	redis    *redis.Client
	cfg      *config.NotifyConfig
	instance string
}

// NewHub creates a hub. redisClient may be nil; the hub then fans out
// within this process only, which is the same contract with a smaller
// audience.
func NewHub(redisClient *redis.Client, cfg *config.NotifyConfig) *Hub {
	if cfg == nil {
		cfg = config.LoadNotifyConfig()
	}
	return &Hub{
		shops:     make(map[int64]subscribers),
		customers: make(map[int64]subscribers),
		redis:     redisClient,
		cfg:       cfg,
		instance:  uuid.NewString(),
	}
}

// SubscribeShop registers a staff session for a shop's event feed.
// The returned cancel func must be called on disconnect.
func (h *Hub) SubscribeShop(shopID int64) (<-chan Event, func()) {
	return h.subscribe(h.shops, shopID)
}

// SubscribeCustomer registers a customer session for their event feed.
func (h *Hub) SubscribeCustomer(customerID int64) (<-chan Event, func()) {
	return h.subscribe(h.customers, customerID)
}

func (h *Hub) subscribe(registry map[int64]subscribers, id int64) (<-chan Event, func()) {
	ch := make(chan Event, h.cfg.SubscriberBuffer)

	h.mu.Lock()
	subs, ok := registry[id]
	if !ok {
		subs = make(subscribers)
		registry[id] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := registry[id]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(registry, id)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// PublishOrderCreated informs the shop's staff that a new order arrived.
// It never blocks and never fails the write that triggered it.
func (h *Hub) PublishOrderCreated(order *models.Order) {
	ev := Event{Kind: EventOrderCreated, Order: order, Origin: h.instance}
	h.dispatch(h.shops, order.ShopID, ev)
	h.publishRedis(h.shopChannel(order.ShopID), ev)
}

// PublishStatusChanged informs the order's customer that fulfillment
// moved forward.
func (h *Hub) PublishStatusChanged(orderID string, customerID int64, newStatus models.OrderStatus) {
	ev := Event{Kind: EventOrderStatusChanged, OrderID: orderID, NewStatus: newStatus, Origin: h.instance}
	h.dispatch(h.customers, customerID, ev)
	h.publishRedis(h.customerChannel(customerID), ev)
}

// dispatch delivers to every locally connected subscriber, dropping the
// event for any whose buffer is full.
func (h *Hub) dispatch(registry map[int64]subscribers, id int64, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range registry[id] {
		select {
		case ch <- ev:
		default:
			log.Printf("[NOTIFY] Subscriber buffer full, dropping %s for id %d", ev.Kind, id)
		}
	}
}

func (h *Hub) publishRedis(channel string, ev Event) {
	if h.redis == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[NOTIFY] Failed to marshal event: %v", err)
		return
	}
	go func() {
		if err := h.redis.Publish(context.Background(), channel, payload).Err(); err != nil {
			log.Printf("[NOTIFY] Redis publish to %s failed: %v", channel, err)
		}
	}()
}

func (h *Hub) shopChannel(shopID int64) string {
	return fmt.Sprintf("%s:shop:%d", h.cfg.ChannelPrefix, shopID)
}

func (h *Hub) customerChannel(customerID int64) string {
	return fmt.Sprintf("%s:customer:%d", h.cfg.ChannelPrefix, customerID)
}

// Run bridges events published by other instances into the local hub.
// It blocks until ctx is cancelled. Without Redis it returns
// immediately; the process-local hub still works.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}

	pubsub := h.redis.PSubscribe(ctx,
		h.cfg.ChannelPrefix+":shop:*",
		h.cfg.ChannelPrefix+":customer:*",
	)
	defer pubsub.Close()

	log.Printf("[NOTIFY] Redis bridge running as instance %s", h.instance)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			h.handleBridgeMessage(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (h *Hub) handleBridgeMessage(channel string, payload []byte) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("[NOTIFY] Dropping malformed bridge message on %s: %v", channel, err)
		return
	}
	if ev.Origin == h.instance {
		// already delivered locally when published
		return
	}

	parts := strings.Split(channel, ":")
	if len(parts) != 3 {
		return
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return
	}

	switch parts[1] {
	case "shop":
		h.dispatch(h.shops, id, ev)
	case "customer":
		h.dispatch(h.customers, id, ev)
	}
}
