// Package domain holds the telemetry event shape shared by the Kafka producer and the OTel log adapter.
package domain

import (
	"encoding/json"
	"time"
)

// Event types emitted by the gateway.
const (
	EventHTTPRequest      = "http_request"
	EventSessionIssued    = "session_issued"
	EventSessionActivated = "session_activated"
	EventSessionRejected  = "session_rejected"
	EventSessionResolved  = "session_resolved"
)

// Event is one telemetry record. SessionID, BackendID and RequestID are empty when not applicable.
// Metadata is a JSON object.
type Event struct {
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	SessionID string          `json:"session_id,omitempty"`
	BackendID string          `json:"backend_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
