package api

import (
	"fmt"
	"net/http"

	"github.com/ternarybob/promptline/internal/ipc"
)

// handleEvents streams bus events to the native host as server-sent events.
// Renderer events use their channel as the SSE event name; control events
// are sent as "control".
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := s.deps.Bus.Subscribe()
	defer s.deps.Bus.Unsubscribe(eventCh)

	s.deps.Logger.Debug().Str("remote", r.RemoteAddr).Msg("Event stream connected")

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.deps.Logger.Debug().Str("remote", r.RemoteAddr).Msg("Event stream disconnected")
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			data, err := ipc.MarshalEvent(event)
			if err != nil {
				s.deps.Logger.Warn().Err(err).Str("channel", event.Channel).Msg("Failed to marshal event")
				continue
			}
			name := event.Channel
			if event.Kind == ipc.KindControl {
				name = ipc.KindControl
			}
			fmt.Fprintf(w, "event: %s\n", name)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
