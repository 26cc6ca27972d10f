package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// handleEvents streams hub events as server-sent events. The optional run
// and target query parameters filter the stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "sse_not_supported", "streaming not supported")
		return
	}
	runFilter := r.URL.Query().Get("run")
	targetFilter := r.URL.Query().Get("target")

	// Subscribe before the preamble so a client that has read it sees every
	// later event.
	ctx := r.Context()
	events := s.engine.Hub().Channel(ctx, s.eventBuffer)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	var tick <-chan time.Time
	if s.heartbeat > 0 {
		t := time.NewTicker(s.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if runFilter != "" && ev.RunID != runFilter {
				continue
			}
			if targetFilter != "" && ev.TargetID != targetFilter {
				continue
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes one SSE frame. Terminal events use the event name
// "run", step transitions use "step".
func writeEvent(w http.ResponseWriter, ev workflow.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	name := "step"
	if ev.Terminal {
		name = "run"
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
