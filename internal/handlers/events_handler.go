package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/udhaarplus/backend/internal/config"
	"github.com/udhaarplus/backend/internal/middleware"
	"github.com/udhaarplus/backend/internal/models"
	"github.com/udhaarplus/backend/internal/notify"
	"github.com/udhaarplus/backend/internal/services"
)

// EventsHandler streams order events to the connected party over SSE.
// The stream is best-effort: a client that reconnects gets no replay
// and is expected to re-fetch current state first.
type EventsHandler struct {
	hub *notify.Hub
	cfg *config.NotifyConfig
}

func NewEventsHandler(hub *notify.Hub, cfg *config.NotifyConfig) *EventsHandler {
	if cfg == nil {
		cfg = config.LoadNotifyConfig()
	}
	return &EventsHandler{hub: hub, cfg: cfg}
}

// Stream subscribes the caller to their event feed
// @Summary Subscribe to order events
// @Description SSE stream: shopkeepers receive order_created for their shop, customers receive order_status_changed for their orders
// @Tags events
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {string} string "event stream"
// @Router /events [get]
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		services.SendErrorResponse(w, "Streaming unsupported", http.StatusInternalServerError, nil)
		return
	}

	var (
		events <-chan notify.Event
		cancel func()
	)
	if actor.Role == models.RoleShopkeeper {
		events, cancel = h.hub.SubscribeShop(actor.ShopID)
		log.Printf("[NOTIFY] Shop %d staff session connected", actor.ShopID)
	} else {
		events, cancel = h.hub.SubscribeCustomer(actor.UserID)
		log.Printf("[NOTIFY] Customer %d session connected", actor.UserID)
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Printf("[NOTIFY] Failed to marshal event for stream: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			flusher.Flush()
		}
	}
}
