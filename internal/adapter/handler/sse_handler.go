package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rl1809/food-delivery/internal/core/domain"
	"github.com/rl1809/food-delivery/internal/core/eventbus"
	"github.com/rl1809/food-delivery/internal/core/service"
)

const (
	defaultHeartbeat    = 15 * time.Second
	defaultTrackingPoll = 2 * time.Second
)

// SSEHandler serves the push streams. Each connection owns one bus
// subscription; closing the connection unsubscribes synchronously, so no
// event is ever written to a closed stream.
type SSEHandler struct {
	bus      *eventbus.Bus
	orders   *service.OrderService
	delivery *service.DeliveryService

	// overridable for tests
	heartbeat    time.Duration
	trackingPoll time.Duration
}

func NewSSEHandler(bus *eventbus.Bus, orders *service.OrderService, delivery *service.DeliveryService) *SSEHandler {
	return &SSEHandler{
		bus:          bus,
		orders:       orders,
		delivery:     delivery,
		heartbeat:    defaultHeartbeat,
		trackingPoll: defaultTrackingPoll,
	}
}

func sseHeaders(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, evt domain.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func writePing(w http.ResponseWriter, flusher http.Flusher) {
	fmt.Fprintf(w, "event: ping\ndata: {\"ts\":%d}\n\n", time.Now().UnixMilli())
	flusher.Flush()
}

// AdminEvents streams every published event to the admin dashboard.
func (h *SSEHandler) AdminEvents(w http.ResponseWriter, r *http.Request) {
	ch, off := h.bus.SubscribeAdmin()
	defer off()
	h.stream(w, r, ch)
}

// PartnerEvents streams only the events targeted at the given partner.
func (h *SSEHandler) PartnerEvents(w http.ResponseWriter, r *http.Request) {
	partnerID := queryID(r, "partnerId")
	if partnerID == 0 {
		writeError(w, errMissingField("partnerId"))
		return
	}
	ch, off := h.bus.SubscribePartner(partnerID)
	defer off()
	h.stream(w, r, ch)
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, ch <-chan domain.Event) {
	flusher, ok := sseHeaders(w)
	if !ok {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, flusher, evt)
		case <-ticker.C:
			writePing(w, flusher)
		case <-r.Context().Done():
			return
		}
	}
}

// TrackingStream pushes the latest delivery location for one order. It opens
// with a hello event carrying the current order status, then polls the
// location series and emits a new event whenever the latest sample changes.
func (h *SSEHandler) TrackingStream(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderId")
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := sseHeaders(w)
	if !ok {
		return
	}

	writeEvent(w, flusher, domain.Event{
		Type:    "hello",
		TS:      time.Now().UnixMilli(),
		OrderID: order.ID,
		Status:  string(order.Status),
	})

	ticker := time.NewTicker(h.trackingPoll)
	defer ticker.Stop()

	var lastTS int64
	for {
		select {
		case <-ticker.C:
			loc, err := h.delivery.LatestLocationFor(r.Context(), orderID)
			if err != nil || loc.TS == lastTS {
				writePing(w, flusher)
				continue
			}
			lastTS = loc.TS
			writeEvent(w, flusher, domain.Event{
				Type:    "location",
				TS:      loc.TS,
				OrderID: orderID,
				Extra:   map[string]any{"lat": loc.Lat, "lng": loc.Lng},
			})
		case <-r.Context().Done():
			return
		}
	}
}
