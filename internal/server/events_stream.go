package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/foundry/internal/events"
)

// EventsStreamHandler streams system events to clients over Server-Sent
// Events. Training progress, model lifecycle and schedule changes all flow
// through here.
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream requests (SSE).
// The optional ?types=A,B query filters which event types are forwarded.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	allowedTypes := parseTypesFilter(r.URL.Query().Get("types"))

	// Buffered so a slow client drops events instead of blocking emitters.
	eventChan := make(chan *events.Event, 100)
	handler := func(event *events.Event) {
		if allowedTypes != nil && !allowedTypes[event.Type] {
			return
		}
		select {
		case eventChan <- event:
		default:
			h.log.Warn().Str("event_type", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}
	h.eventBus.SubscribeAll(handler)

	h.log.Info().Msg("Client connected to event stream")

	fmt.Fprintf(w, "data: %s\n\n", encodeSSE(map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}))
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()
	done := r.Context().Done()

	for {
		select {
		case <-done:
			h.log.Info().Msg("Client disconnected from event stream")
			return
		case event := <-eventChan:
			fmt.Fprintf(w, "data: %s\n\n", encodeSSE(event))
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func parseTypesFilter(raw string) map[events.EventType]bool {
	if raw == "" {
		return nil
	}
	allowed := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		allowed[events.EventType(strings.TrimSpace(t))] = true
	}
	return allowed
}

func encodeSSE(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"type":"error","message":"failed to encode event"}`
	}
	return string(data)
}
