package service

import (
	"errors"
	"sync"
)

// ErrBusy is returned when a mutation on the same item is already running.
var ErrBusy = errors.New("operation already in progress")

// PendingSet tracks the ids with a mutation in flight.
type PendingSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewPendingSet() *PendingSet {
	return &PendingSet{ids: make(map[string]struct{})}
}

// Acquire marks id as busy. The returned release func must be called once the
// mutation finishes, whatever its outcome.
func (p *PendingSet) Acquire(id string) (release func(), err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.ids[id]; busy {
		return nil, ErrBusy
	}
	p.ids[id] = struct{}{}
	return func() {
		p.mu.Lock()
		delete(p.ids, id)
		p.mu.Unlock()
	}, nil
}

// IDs returns the busy ids.
func (p *PendingSet) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.ids))
	for id := range p.ids {
		out = append(out, id)
	}
	return out
}
