package heartbeat

import (
	"sort"
	"sync"
	"time"

	"github.com/Wylhelm/neuralux-ai-layer-sub001/bus"
)

// MonitorConfig configures the health monitor.
type MonitorConfig struct {
	// Bus is the connected client to watch beats through.
	Bus *bus.Client

	// TTL after which a silent service is reported stale. Should be
	// 2-3x the expected beat interval. Default: 10 seconds.
	TTL time.Duration
}

// Validate checks the configuration.
func (c *MonitorConfig) Validate() error {
	if c.Bus == nil {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultMonitorConfig returns configuration with sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		TTL: 10 * time.Second,
	}
}

// ServiceHealth is one service's view in a status snapshot.
type ServiceHealth struct {
	Service  string
	Status   string
	Load     float64
	LastSeen time.Time
	Alive    bool
}

// Monitor watches beats from every service and answers status queries.
// One monitor runs per deployment, typically inside the health service.
type Monitor struct {
	config MonitorConfig

	mu       sync.RWMutex
	lastBeat map[string]*Beat
	seenAt   map[string]time.Time

	beatSub   *bus.Subscription
	statusSub *bus.Subscription
	started   bool
}

// NewMonitor creates a health monitor.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultMonitorConfig().TTL
	}

	return &Monitor{
		config:   cfg,
		lastBeat: make(map[string]*Beat),
		seenAt:   make(map[string]time.Time),
	}, nil
}

// Start subscribes to the beat topic and registers the status reply
// handler. Returns ErrAlreadyStarted if running.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}

	beatSub, err := m.config.Bus.Subscribe(BeatTopic, m.onBeat)
	if err != nil {
		return err
	}

	statusSub, err := m.config.Bus.ReplyHandler(StatusTopic, m.onStatusRequest)
	if err != nil {
		beatSub.Unsubscribe()
		return err
	}

	m.beatSub = beatSub
	m.statusSub = statusSub
	m.started = true
	return nil
}

// Stop unsubscribes from the bus. Returns ErrNotStarted if not running.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrNotStarted
	}
	m.started = false

	m.beatSub.Unsubscribe()
	m.statusSub.Unsubscribe()
	return nil
}

// onBeat records one inbound beat.
func (m *Monitor) onBeat(msg *bus.Message) {
	b, ok := beatFromPayload(msg.Payload)
	if !ok {
		return
	}

	m.mu.Lock()
	m.lastBeat[b.Service] = b
	m.seenAt[b.Service] = time.Now()
	m.mu.Unlock()
}

// onStatusRequest answers a status query with a snapshot of every
// known service.
func (m *Monitor) onStatusRequest(request bus.Payload) (bus.Payload, error) {
	snapshot := m.Snapshot()

	services := make([]any, 0, len(snapshot))
	for _, sh := range snapshot {
		services = append(services, map[string]any{
			"service":   sh.Service,
			"status":    sh.Status,
			"load":      sh.Load,
			"last_seen": sh.LastSeen.UTC().Format(time.RFC3339Nano),
			"alive":     sh.Alive,
		})
	}
	return bus.Payload{"services": services}, nil
}

// IsAlive reports whether a service has beaten within the TTL.
func (m *Monitor) IsAlive(service string) bool {
	m.mu.RLock()
	seen, ok := m.seenAt[service]
	m.mu.RUnlock()
	return ok && time.Since(seen) <= m.config.TTL
}

// LastBeat returns the last beat from a service, or nil.
func (m *Monitor) LastBeat(service string) *Beat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBeat[service]
}

// Snapshot returns the health of every known service, sorted by name.
func (m *Monitor) Snapshot() []ServiceHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	out := make([]ServiceHealth, 0, len(m.lastBeat))
	for service, b := range m.lastBeat {
		seen := m.seenAt[service]
		out = append(out, ServiceHealth{
			Service:  service,
			Status:   b.Status,
			Load:     b.Load,
			LastSeen: seen,
			Alive:    now.Sub(seen) <= m.config.TTL,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}
