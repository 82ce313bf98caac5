// Package heartbeat provides liveness reporting for NeuraLux services
// over the message bus. Every service publishes periodic beats to a
// shared health topic; the health monitor tracks freshness and answers
// status queries over request/reply.
package heartbeat

import (
	"errors"
	"time"

	"github.com/Wylhelm/neuralux-ai-layer-sub001/bus"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("heartbeat already started")
	ErrNotStarted     = errors.New("heartbeat not started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Bus topics. Part of the system-wide contract.
const (
	// BeatTopic is where every service publishes its beats.
	BeatTopic = "system.health.beat"

	// StatusTopic answers status requests with a snapshot of all
	// known services.
	StatusTopic = "system.health.status"
)

// Service statuses.
const (
	StatusIdle     = "idle"
	StatusBusy     = "busy"
	StatusDraining = "draining"
)

// Beat is a single liveness report from a service.
type Beat struct {
	// Service uniquely identifies the sender (e.g., "vision",
	// "speech", "files").
	Service string

	// Status of the service.
	Status string

	// Load is a normalized load metric (0.0 to 1.0).
	Load float64

	// Timestamp when the beat was generated.
	Timestamp time.Time
}

// payload converts a beat to its wire form.
func (b *Beat) payload() bus.Payload {
	return bus.Payload{
		"service":   b.Service,
		"status":    b.Status,
		"load":      b.Load,
		"timestamp": b.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// beatFromPayload parses a beat from its wire form. Malformed beats
// yield false and are ignored by the monitor.
func beatFromPayload(p bus.Payload) (*Beat, bool) {
	service, ok := p["service"].(string)
	if !ok || service == "" {
		return nil, false
	}

	b := &Beat{Service: service}
	if status, ok := p["status"].(string); ok {
		b.Status = status
	}
	if load, ok := p["load"].(float64); ok {
		b.Load = load
	}
	if ts, ok := p["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			b.Timestamp = parsed
		}
	}
	return b, true
}
