package webhooks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelflow/reelflow/pkg/logging"
)

// receiver collects delivered webhook events
type receiver struct {
	mu     sync.Mutex
	events []WebhookEvent
	fail   int
	hits   int
}

func (r *receiver) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.hits++
		if r.hits <= r.fail {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}

		var event WebhookEvent
		require.NoError(t, json.NewDecoder(req.Body).Decode(&event))
		r.events = append(r.events, event)
	}
}

func (r *receiver) received() []WebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]WebhookEvent(nil), r.events...)
}

func newTestDispatcher(endpoints ...string) *HTTPDispatcher {
	retry := RetryConfig{
		MaxRetries:    2,
		InitialDelay:  5 * time.Millisecond,
		MaxDelay:      20 * time.Millisecond,
		BackoffFactor: 2.0,
	}
	logger := logging.NewLogger(logging.LogConfig{Level: "error", Format: "text", Output: "stdout"})
	return NewHTTPDispatcher(endpoints, retry, logger)
}

func TestSendRunCompletedToGlobalEndpoint(t *testing.T) {
	rec := &receiver{}
	server := httptest.NewServer(rec.handler(t))
	t.Cleanup(server.Close)

	d := newTestDispatcher(server.URL)

	err := d.SendRunCompleted("wf-1", "run-1", map[string]interface{}{"status": "succeeded"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(rec.received()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	event := rec.received()[0]
	assert.Equal(t, "run.completed", event.Type)
	assert.Equal(t, "wf-1", event.WorkflowID)
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, "succeeded", event.Data["status"])
}

func TestSendNodeCompletedToRegisteredEndpoint(t *testing.T) {
	rec := &receiver{}
	server := httptest.NewServer(rec.handler(t))
	t.Cleanup(server.Close)

	d := newTestDispatcher()
	require.NoError(t, d.RegisterWebhook("wf-1", "video", server.URL))

	err := d.SendNodeCompleted("wf-1", "run-1", "video", map[string]interface{}{"url": "clip.mp4"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(rec.received()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	event := rec.received()[0]
	assert.Equal(t, "node.completed", event.Type)
	assert.Equal(t, "video", event.NodeID)
}

func TestNodeWebhookNotFiredForOtherNodes(t *testing.T) {
	rec := &receiver{}
	server := httptest.NewServer(rec.handler(t))
	t.Cleanup(server.Close)

	d := newTestDispatcher()
	require.NoError(t, d.RegisterWebhook("wf-1", "video", server.URL))

	require.NoError(t, d.SendNodeCompleted("wf-1", "run-1", "script", nil))

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.received())
}

func TestDeliveryRetriesOnServerError(t *testing.T) {
	rec := &receiver{fail: 2}
	server := httptest.NewServer(rec.handler(t))
	t.Cleanup(server.Close)

	d := newTestDispatcher(server.URL)

	require.NoError(t, d.SendRunCompleted("wf-1", "run-1", nil))

	require.Eventually(t, func() bool {
		return len(rec.received()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegisterWebhookValidation(t *testing.T) {
	d := newTestDispatcher()

	require.Error(t, d.RegisterWebhook("wf-1", "", ""))

	// Registering the same URL twice is a no-op.
	require.NoError(t, d.RegisterWebhook("wf-1", "", "http://example.com/hook"))
	require.NoError(t, d.RegisterWebhook("wf-1", "", "http://example.com/hook"))

	urls, err := d.ListWebhooks("wf-1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://example.com/hook"}, urls)
}

func TestUnregisterWebhook(t *testing.T) {
	d := newTestDispatcher()

	require.NoError(t, d.RegisterWebhook("wf-1", "", "http://example.com/hook"))
	require.NoError(t, d.UnregisterWebhook("wf-1", "", "http://example.com/hook"))

	urls, err := d.ListWebhooks("wf-1", "")
	require.NoError(t, err)
	assert.Empty(t, urls)

	assert.Error(t, d.UnregisterWebhook("wf-1", "", "http://example.com/hook"))
}

func TestSendWithNoEndpointsIsNoop(t *testing.T) {
	d := newTestDispatcher()
	assert.NoError(t, d.SendRunCompleted("wf-1", "run-1", nil))
}
