package api

import (
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"
)

// SSEStreamer publishes run progress as server-sent events. Each run
// gets its own stream, addressed by run ID.
type SSEStreamer struct {
	server *sse.Server
}

// NewSSEStreamer creates an SSE streamer
func NewSSEStreamer() *SSEStreamer {
	server := sse.New()
	server.AutoReplay = false
	server.AutoStream = true

	return &SSEStreamer{server: server}
}

// Handler serves the SSE endpoint. Clients subscribe with
// GET /events?stream=<run-id>.
func (s *SSEStreamer) Handler() http.Handler {
	return s.server
}

// BroadcastProgress publishes an update on the run's stream
func (s *SSEStreamer) BroadcastProgress(runID string, update ProgressUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}

	s.server.Publish(runID, &sse.Event{
		Event: []byte(update.Type),
		Data:  payload,
	})
}

// Close shuts down all streams
func (s *SSEStreamer) Close() {
	s.server.Close()
}
