package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeremyforan/hwmonitor/internal/clock"
)

// DefaultInterval is the pause between two ticks of Run.
const DefaultInterval = time.Second

var (
	// ErrDuplicateRegistration is returned by Register in strict mode when
	// the observer is already registered.
	ErrDuplicateRegistration = errors.New("observer already registered with this publisher")

	// ErrUnknownObserverOnDeregister is returned by Deregister in strict mode
	// when the observer is not registered.
	ErrUnknownObserverOnDeregister = errors.New("observer not registered with this publisher")

	// ErrUnknownObserver is returned by Register when the arena holds no
	// handle for the given ID.
	ErrUnknownObserver = errors.New("observer not found in arena")
)

// Publisher keeps an ordered set of observer IDs and notifies the matching
// handles once per tick. The pattern is described here:
// https://refactoring.guru/design-patterns/observer
//
// Duplicate registrations and deregistrations of unknown observers are
// ignored unless the publisher was created WithStrict.
type Publisher struct {

	// arena resolves registered IDs to observer handles.
	arena *Arena

	// mutex to protect ids and logger.
	mu sync.RWMutex

	// registered IDs in registration order, no duplicates.
	ids []ID

	clock    clock.Clock
	interval time.Duration
	maxTicks uint64
	strict   bool

	// total number of ticks completed across all calls to Run.
	ticks atomic.Uint64

	// structured logger for registry changes and tick progress.
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the structured logger. By default, and when logger is nil,
// slog.DiscardHandler is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock replaces the real clock used by Run.
func WithClock(c clock.Clock) Option {
	return func(p *Publisher) { p.clock = c }
}

// WithInterval sets the pause between ticks. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxTicks makes Run return after n ticks. Zero means run until cancelled.
func WithMaxTicks(n uint64) Option {
	return func(p *Publisher) { p.maxTicks = n }
}

// WithStrict makes Register and Deregister report duplicates and unknown
// observers instead of ignoring them.
func WithStrict() Option {
	return func(p *Publisher) { p.strict = true }
}

// NewPublisher creates a Publisher whose IDs resolve through arena.
func NewPublisher(arena *Arena, opts ...Option) *Publisher {
	p := &Publisher{
		arena:    arena,
		clock:    clock.Real(),
		interval: DefaultInterval,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register appends id to the registry. Registering an id twice leaves the
// registry unchanged.
func (p *Publisher) Register(id ID) error {
	obs, ok := p.arena.Get(id)
	if !ok {
		return fmt.Errorf("register %s: %w", id, ErrUnknownObserver)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if slices.Contains(p.ids, id) {
		p.logger.Debug("ignored duplicate registration", "id", id, "label", obs.Label())
		if p.strict {
			return fmt.Errorf("register %s: %w", id, ErrDuplicateRegistration)
		}
		return nil
	}

	p.ids = append(p.ids, id)
	p.logger.Info("registered observer", "id", id, "label", obs.Label())
	return nil
}

// Deregister removes every occurrence of id from the registry.
// If the observer is not registered, it does nothing.
func (p *Publisher) Deregister(id ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	before := len(p.ids)
	p.ids = slices.DeleteFunc(p.ids, func(registered ID) bool { return registered == id })

	if len(p.ids) == before {
		p.logger.Debug("ignored deregistration of unknown observer", "id", id)
		if p.strict {
			return fmt.Errorf("deregister %s: %w", id, ErrUnknownObserverOnDeregister)
		}
		return nil
	}

	p.logger.Info("deregistered observer", "id", id)
	return nil
}

// NotifyAll calls Update on every registered observer exactly once, in
// registration order, on the calling goroutine. A slow observer delays the
// ones after it.
//
// The registry is copied before delivery, so observers may register or
// deregister from inside Update; the change applies from the next call.
func (p *Publisher) NotifyAll() {
	ids, logger := p.snapshot()

	if len(ids) == 0 {
		logger.Warn("no observers to notify")
		return
	}

	for _, id := range ids {
		obs, ok := p.arena.Get(id)
		if !ok {
			logger.Warn("skipping observer released from arena", "id", id)
			continue
		}
		obs.Update()
	}
}

// Run notifies all observers, waits one interval, and repeats. It returns
// ctx.Err() once ctx is done, or nil after the WithMaxTicks limit is reached.
func (p *Publisher) Run(ctx context.Context) error {
	logger := p.Logger()
	logger.Info("publisher started", "interval", p.interval, "max_ticks", p.maxTicks)

	var ran uint64
	for {
		if err := ctx.Err(); err != nil {
			logger.Info("publisher stopped", "ticks", ran, "reason", err)
			return err
		}

		p.NotifyAll()
		ran++
		total := p.ticks.Add(1)
		logger.Debug("tick", "tick", total, "at", p.clock.Now())

		if p.maxTicks > 0 && ran >= p.maxTicks {
			logger.Info("publisher finished", "ticks", ran)
			return nil
		}

		select {
		case <-ctx.Done():
			logger.Info("publisher stopped", "ticks", ran, "reason", ctx.Err())
			return ctx.Err()
		case <-p.clock.After(p.interval):
		}
	}
}

// Len returns the number of registered observers.
func (p *Publisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ids)
}

// IDs returns a copy of the registered IDs in registration order.
func (p *Publisher) IDs() []ID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.ids)
}

// Ticks returns the number of ticks completed by Run so far.
func (p *Publisher) Ticks() uint64 {
	return p.ticks.Load()
}

// Interval returns the pause between ticks.
func (p *Publisher) Interval() time.Duration {
	return p.interval
}

// SetLogger sets the structured logger for the publisher. A nil logger is ignored.
func (p *Publisher) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = logger
}

// Logger returns the structured logger for the publisher.
func (p *Publisher) Logger() *slog.Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.logger
}

func (p *Publisher) snapshot() ([]ID, *slog.Logger) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Clone(p.ids), p.logger
}
