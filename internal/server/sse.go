package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"leadline/internal/feed"
)

// sseKeepaliveInterval is how often keepalive comments are sent to
// prevent connection timeouts.
const sseKeepaliveInterval = 15 * time.Second

// registerFeed exposes the live lead feed as a server-sent-events
// stream. Every delivery carries the entire current list; the client
// replaces what it renders. The subscription is released when the
// client disconnects.
func registerFeed(r chi.Router, basePath string, f *feed.Feed) {
	if f == nil {
		return
	}
	r.Get(joinPath(basePath, "leads/feed"), func(w http.ResponseWriter, req *http.Request) {
		if _, ok := principalFromContext(req.Context()); !ok {
			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "streaming unsupported", nil))
			return
		}

		snapshots, cancel, err := f.Subscribe(req.Context())
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		keepalive := time.NewTicker(sseKeepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-req.Context().Done():
				return
			case s, open := <-snapshots:
				if !open {
					return
				}
				data, err := json.Marshal(s)
				if err != nil {
					log.Printf("feed: marshal snapshot: %v", err)
					return
				}
				fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
				flusher.Flush()
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			}
		}
	})
}
