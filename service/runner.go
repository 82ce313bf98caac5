// Package service wires a NeuraLux microservice's runtime together:
// configuration, logging, the bus client, and liveness reporting.
// A service's main builds a Runner, registers its handlers on the bus,
// and calls Run.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Wylhelm/neuralux-ai-layer-sub001/bus"
	"github.com/Wylhelm/neuralux-ai-layer-sub001/config"
	"github.com/Wylhelm/neuralux-ai-layer-sub001/errors"
	"github.com/Wylhelm/neuralux-ai-layer-sub001/heartbeat"
	"github.com/Wylhelm/neuralux-ai-layer-sub001/logging"
)

// Runner manages one service's bus lifecycle.
type Runner struct {
	name   string
	cfg    config.Config
	log    *logging.Logger
	client *bus.Client
	sender *heartbeat.Sender
}

// New creates a runner over a NATS transport built from cfg.
func New(name string, cfg config.Config, log *logging.Logger) *Runner {
	transport := bus.NewNATSTransport(bus.NATSConfig{
		URL:            cfg.Broker.URL,
		Name:           clientName(name, cfg),
		ReconnectWait:  cfg.Broker.ReconnectWaitMin.Std(),
		MaxReconnects:  cfg.Broker.MaxReconnects,
		ConnectTimeout: cfg.Broker.ConnectTimeout.Std(),
		BufferSize:     cfg.Broker.BufferSize,
	})
	return NewWithTransport(name, cfg, log, transport)
}

// NewWithTransport creates a runner over an explicit transport. Used by
// tests and single-process deployments with a MemoryTransport.
func NewWithTransport(name string, cfg config.Config, log *logging.Logger, transport bus.Transport) *Runner {
	if log == nil {
		log = logging.New()
	}
	log = log.WithService(name)

	busCfg := bus.Config{
		DefaultTimeout: cfg.Request.DefaultTimeout.Std(),
		BufferSize:     cfg.Broker.BufferSize,
	}

	return &Runner{
		name:   name,
		cfg:    cfg,
		log:    log,
		client: bus.New(busCfg, transport, log),
	}
}

func clientName(name string, cfg config.Config) string {
	if cfg.Broker.Name != "" {
		return cfg.Broker.Name
	}
	return "neuralux-" + name
}

// Bus returns the service's bus client. Valid before Start; operations
// fail with ErrNotConnected until Start succeeds.
func (r *Runner) Bus() *bus.Client {
	return r.client
}

// Start connects to the broker, retrying retryable failures with
// exponential backoff between the configured wait bounds, then begins
// heartbeating. Non-retryable failures and context cancellation abort.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.connect(ctx); err != nil {
		return err
	}

	sender, err := heartbeat.NewSender(heartbeat.SenderConfig{
		Bus:      r.client,
		Service:  r.name,
		Interval: r.cfg.Health.Interval.Std(),
	})
	if err != nil {
		r.client.Close()
		return err
	}
	if err := sender.Start(ctx); err != nil {
		r.client.Close()
		return err
	}
	r.sender = sender

	r.log.Info("service_started", map[string]interface{}{
		"broker": r.cfg.Broker.URL,
	})
	return nil
}

// connect dials the broker with bounded exponential backoff.
func (r *Runner) connect(ctx context.Context) error {
	wait := r.cfg.Broker.ReconnectWaitMin.Std()
	maxWait := r.cfg.Broker.ReconnectWaitMax.Std()
	attempts := 0

	for {
		err := r.client.Connect(ctx)
		if err == nil {
			r.log.Connected(r.cfg.Broker.URL)
			return nil
		}
		if !errors.Retryable(err) {
			return err
		}

		attempts++
		if max := r.cfg.Broker.MaxReconnects; max >= 0 && attempts > max {
			return fmt.Errorf("connect after %d attempts: %w", attempts, err)
		}

		r.log.Warn("connect_retry", map[string]interface{}{
			"attempt": attempts,
			"wait":    wait.String(),
			"error":   err.Error(),
		})

		select {
		case <-ctx.Done():
			return fmt.Errorf("connect: %w", ctx.Err())
		case <-time.After(wait):
		}

		wait *= 2
		if wait > maxWait {
			wait = maxWait
		}
	}
}

// Stop tears the service down in order: heartbeats first, so no beat
// is published once the bus starts closing, then the bus itself.
func (r *Runner) Stop() error {
	if r.sender != nil {
		r.sender.Stop()
		r.sender = nil
	}

	err := r.client.Close()
	r.log.Info("service_stopped", nil)
	return err
}

// Run starts the service, blocks until ctx is cancelled, then stops it.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return r.Stop()
}
