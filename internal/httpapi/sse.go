package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// streamEvents writes sequencer events as Server-Sent Events until the
// session ends, the client goes away or a write fails.
func (s *server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events := s.c.Subscribe(16)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error().Err(err).Stringer("event", ev.Type).Msg("encode event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				s.logger.Debug().Err(err).Msg("event stream closed")
				return
			}
			flusher.Flush()

			if ev.Type.Terminal() {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}
