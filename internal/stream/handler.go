package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// parseFeeds reads the optional ?feeds=a,b filter. nil accepts every feed.
func parseFeeds(r *http.Request) map[string]bool {
	q := r.URL.Query().Get("feeds")
	if q == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, f := range strings.Split(q, ",") {
		if f = strings.TrimSpace(f); f != "" {
			filter[f] = true
		}
	}
	return filter
}

// SSEHandler streams broker events as server-sent events.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		feedFilter := parseFeeds(r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if feedFilter != nil && !feedFilter[evt.Feed] {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Feed, evt.Payload)
				flusher.Flush()
			}
		}
	}
}

// Envelope is the WebSocket framing of an Event.
type Envelope struct {
	Feed string          `json:"feed"`
	Data json.RawMessage `json:"data"`
}

// WSHandler streams broker events over a WebSocket as JSON envelopes. Client
// frames are read only to notice the close.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feedFilter := parseFeeds(r)

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer func() {
			if err := conn.Close(); err != nil {
				slog.Debug("websocket close failed", "error", err)
			}
		}()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-closed:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if feedFilter != nil && !feedFilter[evt.Feed] {
					continue
				}
				data, err := json.Marshal(Envelope{Feed: evt.Feed, Data: json.RawMessage(evt.Payload)})
				if err != nil {
					slog.Debug("websocket encode failed", "feed", evt.Feed, "error", err)
					continue
				}
				if err := wsutil.WriteServerText(conn, data); err != nil {
					slog.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
