package broadcast

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cun0/vessel-notify/internal/domain"
	"github.com/cun0/vessel-notify/internal/jsonlog"
)

func newTestHub(cfg Config) *Hub {
	h := NewHub(cfg, jsonlog.Discard())
	h.clock = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func decodeFrame(t *testing.T, frame []byte) map[string]any {
	t.Helper()
	s := string(frame)
	require.True(t, strings.HasPrefix(s, "data: "), "frame %q", s)
	require.True(t, strings.HasSuffix(s, "\n\n"), "frame %q", s)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(s, "data: "), "\n\n")), &out))
	return out
}

func TestHub_RegisterRejectsAtCapacity(t *testing.T) {
	h := newTestHub(Config{MaxSubscribers: 2})

	assert.True(t, h.Register(h.NewSubscriber()))
	assert.True(t, h.Register(h.NewSubscriber()))
	assert.False(t, h.Register(h.NewSubscriber()))
	assert.Equal(t, 2, h.Len())
}

func TestHub_DeregisterIsIdempotent(t *testing.T) {
	h := newTestHub(Config{})
	s := h.NewSubscriber()
	require.True(t, h.Register(s))
	assert.False(t, s.RegisteredAt().IsZero())

	h.Deregister(s)
	h.Deregister(s)

	assert.Equal(t, 0, h.Len())
	select {
	case <-s.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestHub_SlowSubscriberIsEvicted(t *testing.T) {
	h := newTestHub(Config{})

	slow := NewSubscriber(1)
	fast := NewSubscriber(10)
	require.True(t, h.Register(slow))
	require.True(t, h.Register(fast))

	for i := 0; i < 3; i++ {
		h.Heartbeat()
	}

	assert.Equal(t, 1, h.Len())
	select {
	case <-slow.Done():
	default:
		t.Fatal("slow subscriber should have been evicted")
	}
	assert.Len(t, slow.outbox, 1)
	assert.Len(t, fast.outbox, 3)

	// Deregistering after eviction must not disturb the remaining subscriber.
	h.Deregister(slow)
	assert.Equal(t, 1, h.Len())
}

func TestHub_PublishNotification(t *testing.T) {
	h := newTestHub(Config{})
	s := h.NewSubscriber()
	require.True(t, h.Register(s))

	user := "U1"
	n := domain.Notification{
		ID:         "01HZX",
		Kind:       domain.KindZonePort,
		ReceivedAt: time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC),
		UserID:     &user,
		Payload:    json.RawMessage(`{"vessel":"<script>alert(1)</script>Ever Given","note":"a < b"}`),
	}
	h.PublishNotification(n)

	frame := <-s.Outbox()
	assert.NotContains(t, string(frame), "<")

	msg := decodeFrame(t, frame)
	assert.Equal(t, "zone_port_notification", msg["type"])
	assert.Equal(t, "01HZX", msg["notification_id"])
	assert.Equal(t, "2025-03-01T12:00:00Z", msg["timestamp"])

	data := msg["data"].(map[string]any)
	payload := data["payload"].(map[string]any)
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;Ever Given", payload["vessel"])
	assert.Equal(t, "a &lt; b", payload["note"])
}

func TestFrame_EscapesWithoutLosingData(t *testing.T) {
	n := domain.Notification{
		ID:      "01HZY",
		Kind:    domain.KindVessel,
		Payload: json.RawMessage(`{"name":"Vessel <Unknown>","<b>k</b>":"first","k":"second","s":"<script>x</script>","q":"a & 'b' \"c\""}`),
	}

	frame, err := Frame(NotificationMessage(n, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	payload := decodeFrame(t, frame)["data"].(map[string]any)["payload"].(map[string]any)
	assert.Len(t, payload, 5)
	assert.Equal(t, "Vessel &lt;Unknown&gt;", payload["name"])
	assert.Equal(t, "first", payload["&lt;b&gt;k&lt;/b&gt;"])
	assert.Equal(t, "second", payload["k"])
	assert.Equal(t, "&lt;script&gt;x&lt;/script&gt;", payload["s"])
	assert.Equal(t, "a &amp; &#39;b&#39; &#34;c&#34;", payload["q"])
}

func TestNotificationMessageTypes(t *testing.T) {
	at := time.Now()
	assert.Equal(t, TypeVesselNotification, NotificationMessage(domain.Notification{Kind: domain.KindVessel}, at).Type)
	assert.Equal(t, TypeZonePortNotification, NotificationMessage(domain.Notification{Kind: domain.KindZonePort}, at).Type)
	assert.Equal(t, TypeScreeningCompleted, NotificationMessage(domain.Notification{
		Kind:            domain.KindZonePort,
		ScreeningResult: &domain.ScreeningResult{Status: "CLEAR"},
	}, at).Type)
}

func TestFrame_Heartbeat(t *testing.T) {
	frame, err := Frame(HeartbeatMessage(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, err)

	msg := decodeFrame(t, frame)
	assert.Equal(t, map[string]any{"type": "heartbeat", "timestamp": "2025-01-02T03:04:05Z"}, msg)
}

func TestFrame_KeepsLargeNumbers(t *testing.T) {
	frame, err := Frame(Message{Type: TypeVesselNotification, Data: map[string]any{"imo": json.Number("9074729123456789")}})
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"imo":9074729123456789`)
}

func TestHub_RunSendsHeartbeats(t *testing.T) {
	h := newTestHub(Config{HeartbeatPeriod: 10 * time.Millisecond})
	s := h.NewSubscriber()
	require.True(t, h.Register(s))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	select {
	case frame := <-s.Outbox():
		assert.Equal(t, "heartbeat", decodeFrame(t, frame)["type"])
	case <-time.After(time.Second):
		t.Fatal("no heartbeat received")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestHub_PumpStopsWhenIdle(t *testing.T) {
	h := newTestHub(Config{IdleTimeout: 50 * time.Millisecond})
	s := h.NewSubscriber()
	require.True(t, h.Register(s))
	h.Heartbeat()

	var (
		mu  sync.Mutex
		got [][]byte
	)
	err := h.Pump(context.Background(), s, func(b []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, b)
		return nil
	})
	require.NoError(t, err)

	mu.Lock()
	assert.Len(t, got, 1)
	mu.Unlock()
	assert.Equal(t, 0, h.Len())
}

func TestHub_PumpReturnsWhenHubCloses(t *testing.T) {
	h := newTestHub(Config{IdleTimeout: time.Minute})
	s := h.NewSubscriber()
	require.True(t, h.Register(s))

	done := make(chan error, 1)
	go func() {
		done <- h.Pump(context.Background(), s, func([]byte) error { return nil })
	}()

	h.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pump did not return after close")
	}
	assert.False(t, h.Register(h.NewSubscriber()), "closed hub must reject subscribers")
}

func TestHub_PumpPropagatesWriteError(t *testing.T) {
	h := newTestHub(Config{})
	s := h.NewSubscriber()
	require.True(t, h.Register(s))
	h.Heartbeat()

	writeErr := assert.AnError
	err := h.Pump(context.Background(), s, func([]byte) error { return writeErr })
	assert.ErrorIs(t, err, writeErr)
	assert.Equal(t, 0, h.Len())
}

func TestSanitize_MapKeysAndArrays(t *testing.T) {
	in := map[string]any{
		"<b>k</b>": []any{"<i>x</i>", json.Number("1"), true, nil},
		"k":        "plain",
	}
	out := Sanitize(in).(map[string]any)
	require.Len(t, out, 2)
	assert.Equal(t, []any{"&lt;i&gt;x&lt;/i&gt;", json.Number("1"), true, nil}, out["&lt;b&gt;k&lt;/b&gt;"])
	assert.Equal(t, "plain", out["k"])
}
