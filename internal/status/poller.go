package status

import (
	"context"
	"sync"
	"time"

	"github.com/wenwu/saas-platform/minecraft-portal/internal/config"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// Checker is what the poller needs from an Aggregator.
type Checker interface {
	CheckAll(ctx context.Context, servers []models.Server) map[string]models.ServerStatus
}

// Poller keeps a subscription id -> status mapping fresh for a fixed list of
// servers. Stop only clears the timer; lookups already in flight finish on
// their own and their results are dropped.
type Poller struct {
	checker  Checker
	interval time.Duration
	onUpdate func(map[string]models.ServerStatus)

	mu       sync.RWMutex
	servers  []models.Server
	statuses map[string]models.ServerStatus
	started  bool
	stopped  bool

	ticker *time.Ticker
	done   chan struct{}
}

// NewPoller creates a poller. The interval is clamped to the allowed range.
func NewPoller(checker Checker, servers []models.Server, interval time.Duration) *Poller {
	return &Poller{
		checker:  checker,
		interval: config.ClampPollInterval(interval),
		servers:  append([]models.Server(nil), servers...),
		statuses: make(map[string]models.ServerStatus),
		done:     make(chan struct{}),
	}
}

// OnUpdate registers a callback fired with a snapshot after every refresh.
// Must be called before Start.
func (p *Poller) OnUpdate(fn func(map[string]models.ServerStatus)) {
	p.onUpdate = fn
}

// Interval returns the effective poll interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start refreshes immediately and then once per interval until Stop. Calls
// after the first, or after Stop, do nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	ticker := time.NewTicker(p.interval)
	p.ticker = ticker
	p.mu.Unlock()

	go func() {
		p.Refresh(ctx)
		for {
			select {
			case <-ticker.C:
				p.Refresh(ctx)
			case <-p.done:
				return
			}
		}
	}()
}

// Stop clears the timer. It is safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	if p.ticker != nil {
		p.ticker.Stop()
	}
	close(p.done)
}

// Refresh checks all servers now and merges the results.
func (p *Poller) Refresh(ctx context.Context) map[string]models.ServerStatus {
	p.mu.RLock()
	servers := append([]models.Server(nil), p.servers...)
	p.mu.RUnlock()

	results := p.checker.CheckAll(ctx, servers)

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return results
	}
	next := make(map[string]models.ServerStatus, len(servers))
	for _, s := range servers {
		if st, ok := results[s.SubscriptionID]; ok {
			next[s.SubscriptionID] = st
		} else if prev, ok := p.statuses[s.SubscriptionID]; ok {
			next[s.SubscriptionID] = prev
		}
	}
	p.statuses = next
	snapshot := copyStatuses(next)
	p.mu.Unlock()

	if p.onUpdate != nil {
		p.onUpdate(snapshot)
	}
	return snapshot
}

// Snapshot returns a copy of the current mapping.
func (p *Poller) Snapshot() map[string]models.ServerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyStatuses(p.statuses)
}

func copyStatuses(in map[string]models.ServerStatus) map[string]models.ServerStatus {
	out := make(map[string]models.ServerStatus, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
