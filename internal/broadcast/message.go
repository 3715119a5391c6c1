package broadcast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cun0/vessel-notify/internal/domain"
)

type MessageType string

const (
	TypeZonePortNotification MessageType = "zone_port_notification"
	TypeVesselNotification   MessageType = "vessel_notification"
	TypeScreeningCompleted   MessageType = "screening_completed"
	TypeHeartbeat            MessageType = "heartbeat"
	TypeConnected            MessageType = "connected"
)

// Message is the envelope pushed to subscribers. Heartbeats carry only Type and Timestamp.
type Message struct {
	Type           MessageType `json:"type"`
	Timestamp      time.Time   `json:"timestamp"`
	NotificationID string      `json:"notification_id,omitempty"`
	Data           any         `json:"data,omitempty"`
}

// NotificationMessage wraps a stored record. Records carrying a screening result are
// announced as screening_completed.
func NotificationMessage(n domain.Notification, at time.Time) Message {
	typ := TypeVesselNotification
	switch {
	case n.ScreeningResult != nil:
		typ = TypeScreeningCompleted
	case n.Kind == domain.KindZonePort:
		typ = TypeZonePortNotification
	}
	return Message{
		Type:           typ,
		Timestamp:      at.UTC(),
		NotificationID: n.ID,
		Data:           n,
	}
}

func HeartbeatMessage(at time.Time) Message {
	return Message{Type: TypeHeartbeat, Timestamp: at.UTC()}
}

func ConnectedMessage(subscriberID string, at time.Time) Message {
	return Message{
		Type:      TypeConnected,
		Timestamp: at.UTC(),
		Data:      map[string]string{"subscriber_id": subscriberID, "status": "connected"},
	}
}

// Frame sanitizes m and renders it as one text/event-stream frame.
func Frame(m Message) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("data: ")
	enc := json.NewEncoder(&buf)
	// strings are already entity-escaped; keep them readable
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Sanitize(generic)); err != nil {
		return nil, fmt.Errorf("encode sanitized message: %w", err)
	}
	// Encode ends with a newline; one more terminates the frame.
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
