package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/Wylhelm/neuralux-ai-layer-sub001/bus"
)

// SenderConfig configures a heartbeat sender.
type SenderConfig struct {
	// Bus is the connected client to publish beats through.
	Bus *bus.Client

	// Service is this service's identifier.
	Service string

	// Interval between beats. Default: 2 seconds.
	Interval time.Duration

	// InitialStatus is the starting status. Default: "idle".
	InitialStatus string
}

// Validate checks the configuration.
func (c *SenderConfig) Validate() error {
	if c.Bus == nil {
		return ErrInvalidConfig
	}
	if c.Service == "" {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultSenderConfig returns configuration with sensible defaults.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		Interval:      2 * time.Second,
		InitialStatus: StatusIdle,
	}
}

// Sender publishes periodic beats for one service.
type Sender struct {
	config SenderConfig

	mu      sync.Mutex
	status  string
	load    float64
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSender creates a heartbeat sender.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSenderConfig().Interval
	}
	if cfg.InitialStatus == "" {
		cfg.InitialStatus = StatusIdle
	}

	return &Sender{
		config: cfg,
		status: cfg.InitialStatus,
	}, nil
}

// Start begins publishing beats at the configured interval. The first
// beat goes out immediately. Returns ErrAlreadyStarted if running.
func (s *Sender) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	return nil
}

// SetStatus updates the status included in beats.
func (s *Sender) SetStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// SetLoad updates the load metric (0.0 to 1.0).
func (s *Sender) SetLoad(load float64) {
	if load < 0 {
		load = 0
	}
	if load > 1 {
		load = 1
	}
	s.mu.Lock()
	s.load = load
	s.mu.Unlock()
}

// Stop stops publishing beats. Returns ErrNotStarted if not running.
func (s *Sender) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (s *Sender) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.beat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.beat()
		}
	}
}

// beat publishes one liveness report. Publish failures are tolerated;
// the next tick tries again.
func (s *Sender) beat() {
	s.mu.Lock()
	b := &Beat{
		Service:   s.config.Service,
		Status:    s.status,
		Load:      s.load,
		Timestamp: time.Now(),
	}
	s.mu.Unlock()

	s.config.Bus.Publish(BeatTopic, b.payload())
}
