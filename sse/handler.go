package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/pixelflow/logger"
)

// KeepAliveInterval is how often an idle stream gets a comment line.
var KeepAliveInterval = 30 * time.Second

// ServeSSE streams events for client until the request ends or the client
// is closed. ready, when non-nil, is called after the client is registered
// and the connected event is flushed.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, client *Client, ready func()) {
	log := logger.Get(logger.ComponentSSE).WithFields(logger.Fields("client_id", client.ID()))

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Streams outlive the server's WriteTimeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("could not disable write deadline", logger.ErrorFields("set_write_deadline", err))
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	if !hub.Register(client) {
		http.Error(w, "event hub stopped", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	connected, _ := json.Marshal(ConnectedEvent{ClientID: client.ID(), RunID: client.RunID(), Metadata: client.Metadata()})
	writeFrame(w, Frame{Event: EventConnected, Data: connected})
	flusher.Flush()
	log.Debug("client connected", logger.Fields("remote_addr", r.RemoteAddr))
	if ready != nil {
		ready()
	}

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug("client disconnected", logger.Fields("reason", ctx.Err().Error()))
			return

		case f, ok := <-client.Events():
			if !ok {
				return
			}
			writeFrame(w, f)
			flusher.Flush()

		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, f Frame) {
	if f.Event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", f.Event)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", f.Data)
}
