package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies which upstream webhook produced a notification.
type Kind string

const (
	KindZonePort Kind = "zone_port_event"
	KindVessel   Kind = "vessel_event"
)

func (k Kind) Valid() bool {
	return k == KindZonePort || k == KindVessel
}

// ParseKind accepts the stored form ("zone_port_event") and the route form ("zone-port-event").
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !k.Valid() {
		return "", fmt.Errorf("unknown notification kind %q", s)
	}
	return k, nil
}

var ErrNotDocument = errors.New("payload must be a JSON object")

// Notification is one ingested webhook event.
// ID, Kind, ReceivedAt, UserID and AutoScreen never change after the insert.
// ScreeningResult is attached once by the screening workflow and never cleared.
type Notification struct {
	ID              string           `json:"id"`
	Kind            Kind             `json:"kind"`
	ReceivedAt      time.Time        `json:"received_at"`
	UserID          *string          `json:"user_id"`
	AutoScreen      *bool            `json:"auto_screen"`
	Payload         json.RawMessage  `json:"payload"`
	ScreeningResult *ScreeningResult `json:"screening_result,omitempty"`
}

// ShouldScreen reports whether ingestion must hand the record to the screening workflow.
func (n Notification) ShouldScreen() bool {
	return n.Kind == KindZonePort && n.AutoScreen != nil && *n.AutoScreen
}

// NewNotification builds an unsaved record from a raw webhook body.
// The payload is stored as received; only the reference field is interpreted.
func NewNotification(kind Kind, raw json.RawMessage, receivedAt time.Time) (Notification, error) {
	if !kind.Valid() {
		return Notification{}, fmt.Errorf("unknown notification kind %q", kind)
	}
	if !IsDocument(raw) {
		return Notification{}, ErrNotDocument
	}

	n := Notification{
		Kind:       kind,
		ReceivedAt: receivedAt.UTC(),
		Payload:    raw,
	}

	ref, ok := Reference(raw)
	switch kind {
	case KindZonePort:
		n.UserID, n.AutoScreen = DeriveZonePortReference(ref, ok)
	case KindVessel:
		n.UserID = DeriveVesselReference(ref, ok)
	}
	return n, nil
}

// IsDocument reports whether raw is a JSON object.
func IsDocument(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

// DeriveZonePortReference splits "user|flag" on the first separator.
// Anything without a separator (or with an empty user part) yields nil, nil.
func DeriveZonePortReference(ref string, present bool) (userID *string, autoScreen *bool) {
	if !present {
		return nil, nil
	}
	userPart, flagPart, found := strings.Cut(ref, "|")
	if !found {
		return nil, nil
	}
	userPart = strings.TrimSpace(userPart)
	if userPart == "" {
		return nil, nil
	}
	screen := strings.EqualFold(strings.TrimSpace(flagPart), "TRUE")
	return &userPart, &screen
}

// DeriveVesselReference keeps the whole reference verbatim.
func DeriveVesselReference(ref string, present bool) *string {
	if !present {
		return nil
	}
	return &ref
}
