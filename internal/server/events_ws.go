package server

import (
	"net/http"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/foundry/internal/events"
)

// EventsSocketHandler streams system events over a WebSocket for clients
// that prefer a bidirectional transport to SSE.
type EventsSocketHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsSocketHandler creates a new events WebSocket handler.
func NewEventsSocketHandler(eventBus *events.Bus, log zerolog.Logger) *EventsSocketHandler {
	return &EventsSocketHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws requests.
func (h *EventsSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	allowedTypes := parseTypesFilter(r.URL.Query().Get("types"))

	eventChan := make(chan *events.Event, 100)
	handler := func(event *events.Event) {
		if allowedTypes != nil && !allowedTypes[event.Type] {
			return
		}
		select {
		case eventChan <- event:
		default:
		}
	}
	h.eventBus.SubscribeAll(handler)

	h.log.Info().Msg("Client connected to event socket")
	ctx := r.Context()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event socket")
			return
		case event := <-eventChan:
			if err := wsjson.Write(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("WebSocket write failed, closing")
				return
			}
		}
	}
}
