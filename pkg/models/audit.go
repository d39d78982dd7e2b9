package models

import (
	"encoding/json"
	"time"
)

// AuditEvent is the record published to the bus for every handled request.
type AuditEvent struct {
	EventID   string          `json:"event_id"`
	RequestID string          `json:"request_id"`
	Kind      Kind            `json:"kind"`
	Principal string          `json:"principal,omitempty"`
	Status    Status          `json:"status"`
	CacheHit  bool            `json:"cache_hit"`
	Attempt   int             `json:"attempt"`
	Input     json.RawMessage `json:"input,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditQueryOpts specifies filters for querying the event journal.
type AuditQueryOpts struct {
	Kind      Kind
	Status    Status
	Principal string
	RequestID string
	Since     time.Time
	Limit     int
}

// AuditStat holds aggregate journal counts for a kind/status/day combination.
type AuditStat struct {
	Kind   Kind
	Status Status
	Day    string
	Count  int
}
