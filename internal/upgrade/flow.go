package upgrade

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// Step is the current screen of the upgrade dialog.
type Step string

const (
	StepSelect  Step = "select"
	StepPreview Step = "preview"
	StepSuccess Step = "success"
)

var ErrInvalidTransition = errors.New("invalid upgrade transition")

// Flow is the upgrade state of one subscription. The payload always matches
// the step: Select carries nothing, Preview carries the quote and Success
// carries the quote and the confirmation.
type Flow struct {
	SubscriptionID string                      `json:"subscription_id"`
	Step           Step                        `json:"step"`
	Preview        *models.UpgradePreview      `json:"preview,omitempty"`
	Confirmation   *models.UpgradeConfirmation `json:"confirmation,omitempty"`
}

// NewFlow starts at Select.
func NewFlow(subscriptionID string) Flow {
	return Flow{SubscriptionID: subscriptionID, Step: StepSelect}
}

// WithPreview moves to Preview. Allowed from Select and from Preview, where it
// replaces the quote with one for another plan.
func (f Flow) WithPreview(p models.UpgradePreview) (Flow, error) {
	if f.Step == StepSuccess {
		return f, fmt.Errorf("%w: preview from %s", ErrInvalidTransition, f.Step)
	}
	if p.PlanID == "" {
		return f, fmt.Errorf("%w: preview without plan", ErrInvalidTransition)
	}
	return Flow{SubscriptionID: f.SubscriptionID, Step: StepPreview, Preview: &p}, nil
}

// WithConfirmation moves Preview to Success.
func (f Flow) WithConfirmation(c models.UpgradeConfirmation) (Flow, error) {
	if f.Step != StepPreview || f.Preview == nil {
		return f, fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, f.Step)
	}
	if c.InvoiceID == "" {
		return f, fmt.Errorf("%w: confirmation without invoice", ErrInvalidTransition)
	}
	preview := *f.Preview
	return Flow{SubscriptionID: f.SubscriptionID, Step: StepSuccess, Preview: &preview, Confirmation: &c}, nil
}

// Back returns to Select from Preview.
func (f Flow) Back() (Flow, error) {
	if f.Step != StepPreview {
		return f, fmt.Errorf("%w: back from %s", ErrInvalidTransition, f.Step)
	}
	return NewFlow(f.SubscriptionID), nil
}

// FlowTTL is how long an untouched flow is kept.
const FlowTTL = time.Hour

type entry struct {
	flow    Flow
	touched time.Time
}

// Store holds one flow per (user, subscription). Nothing is persisted and
// flows untouched for FlowTTL are dropped.
type Store struct {
	mu    sync.Mutex
	flows map[string]entry
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{flows: make(map[string]entry), now: time.Now}
}

func key(userID, subscriptionID string) string {
	return userID + "/" + subscriptionID
}

func (s *Store) getLocked(k string) (Flow, bool) {
	e, ok := s.flows[k]
	if !ok {
		return Flow{}, false
	}
	if s.now().Sub(e.touched) > FlowTTL {
		delete(s.flows, k)
		return Flow{}, false
	}
	return e.flow, true
}

func (s *Store) putLocked(k string, f Flow) {
	now := s.now()
	for id, e := range s.flows {
		if now.Sub(e.touched) > FlowTTL {
			delete(s.flows, id)
		}
	}
	s.flows[k] = entry{flow: f, touched: now}
}

// Open resets the flow to Select.
func (s *Store) Open(userID, subscriptionID string) Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := NewFlow(subscriptionID)
	s.putLocked(key(userID, subscriptionID), f)
	return f
}

// Get returns the current flow, Select if none was opened.
func (s *Store) Get(userID, subscriptionID string) Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.getLocked(key(userID, subscriptionID)); ok {
		return f
	}
	return NewFlow(subscriptionID)
}

// Apply runs fn on the current flow and stores the result if fn succeeds.
func (s *Store) Apply(userID, subscriptionID string, fn func(Flow) (Flow, error)) (Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(userID, subscriptionID)
	cur, ok := s.getLocked(k)
	if !ok {
		cur = NewFlow(subscriptionID)
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	s.putLocked(k, next)
	return next, nil
}

// Close drops the flow.
func (s *Store) Close(userID, subscriptionID string) {
	s.mu.Lock()
	delete(s.flows, key(userID, subscriptionID))
	s.mu.Unlock()
}
