package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/client"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// BillingBackend is the billing API the service talks to.
type BillingBackend interface {
	ListSubscriptions(ctx context.Context) ([]models.Server, error)
	ListInvoices(ctx context.Context) ([]models.Invoice, error)
	ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	UncancelSubscription(ctx context.Context, subscriptionID string) error
	SetDefaultPaymentMethod(ctx context.Context, id string) error
	UnsetDefaultPaymentMethod(ctx context.Context, id string) error
	RemovePaymentMethod(ctx context.Context, id string) error
	AddPaymentMethod(ctx context.Context) (string, error)
}

// billingViewTTL bounds how long an unreloaded view is kept.
const billingViewTTL = 15 * time.Minute

type billingEntry struct {
	view     *models.BillingView
	loadedAt time.Time
}

// BillingService runs the billing mutations and keeps a per-user optimistic
// copy of the billing state. After a successful backend call the copy is
// patched locally; it is not reconciled until the next load replaces it.
// Views older than billingViewTTL are dropped and reloaded on next use.
type BillingService struct {
	backend BillingBackend
	pending *PendingSet
	logger  zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex
	views map[string]billingEntry
}

// NewBillingService creates a new billing service
func NewBillingService(backend BillingBackend, logger zerolog.Logger) *BillingService {
	return &BillingService{
		backend: backend,
		pending: NewPendingSet(),
		logger:  logger.With().Str("service", "billing").Logger(),
		now:     time.Now,
		views:   make(map[string]billingEntry),
	}
}

// Load fetches subscriptions and payment methods and replaces the user's view.
func (s *BillingService) Load(ctx context.Context, userID string) (*models.BillingView, error) {
	subs, err := s.backend.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	methods, err := s.backend.ListPaymentMethods(ctx)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []models.Server{}
	}
	if methods == nil {
		methods = []models.PaymentMethod{}
	}
	view := &models.BillingView{Subscriptions: subs, PaymentMethods: methods}

	s.mu.Lock()
	now := s.now()
	s.evictLocked(now)
	s.views[userID] = billingEntry{view: view, loadedAt: now}
	out := copyView(view)
	s.mu.Unlock()
	return out, nil
}

// View returns the user's current view, loading it if needed.
func (s *BillingService) View(ctx context.Context, userID string) (*models.BillingView, error) {
	s.mu.Lock()
	v, ok := s.viewLocked(userID)
	if ok {
		out := copyView(v)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()
	return s.Load(ctx, userID)
}

// viewLocked returns the user's view unless it has expired.
func (s *BillingService) viewLocked(userID string) (*models.BillingView, bool) {
	e, ok := s.views[userID]
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.loadedAt) > billingViewTTL {
		delete(s.views, userID)
		return nil, false
	}
	return e.view, true
}

func (s *BillingService) evictLocked(now time.Time) {
	for id, e := range s.views {
		if now.Sub(e.loadedAt) > billingViewTTL {
			delete(s.views, id)
		}
	}
}

// Invoices lists the user's invoices. They are never mirrored.
func (s *BillingService) Invoices(ctx context.Context) ([]models.Invoice, error) {
	invoices, err := s.backend.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []models.Invoice{}
	}
	return invoices, nil
}

// Pending returns the ids with a mutation in flight for userID.
func (s *BillingService) Pending(userID string) []string {
	prefix := userID + "/"
	var out []string
	for _, id := range s.pending.IDs() {
		if rest, ok := strings.CutPrefix(id, prefix); ok {
			out = append(out, rest)
		}
	}
	return out
}

func (s *BillingService) CancelSubscription(ctx context.Context, userID, subscriptionID string) (*models.MutationResponse, error) {
	return s.mutate(ctx, userID, subscriptionID, "Subscription will be cancelled at the end of the billing period",
		func() error { return s.backend.CancelSubscription(ctx, subscriptionID) },
		func(v *models.BillingView) { setCancelAtPeriodEnd(v, subscriptionID, true) })
}

func (s *BillingService) UncancelSubscription(ctx context.Context, userID, subscriptionID string) (*models.MutationResponse, error) {
	return s.mutate(ctx, userID, subscriptionID, "Subscription renewed",
		func() error { return s.backend.UncancelSubscription(ctx, subscriptionID) },
		func(v *models.BillingView) { setCancelAtPeriodEnd(v, subscriptionID, false) })
}

func (s *BillingService) SetDefaultPaymentMethod(ctx context.Context, userID, id string) (*models.MutationResponse, error) {
	return s.mutate(ctx, userID, id, "Default payment method updated",
		func() error { return s.backend.SetDefaultPaymentMethod(ctx, id) },
		func(v *models.BillingView) {
			for i := range v.PaymentMethods {
				v.PaymentMethods[i].IsDefault = v.PaymentMethods[i].ID == id
			}
		})
}

func (s *BillingService) UnsetDefaultPaymentMethod(ctx context.Context, userID, id string) (*models.MutationResponse, error) {
	return s.mutate(ctx, userID, id, "Default payment method removed",
		func() error { return s.backend.UnsetDefaultPaymentMethod(ctx, id) },
		func(v *models.BillingView) {
			for i := range v.PaymentMethods {
				if v.PaymentMethods[i].ID == id {
					v.PaymentMethods[i].IsDefault = false
				}
			}
		})
}

func (s *BillingService) RemovePaymentMethod(ctx context.Context, userID, id string) (*models.MutationResponse, error) {
	return s.mutate(ctx, userID, id, "Payment method removed",
		func() error { return s.backend.RemovePaymentMethod(ctx, id) },
		func(v *models.BillingView) {
			kept := v.PaymentMethods[:0]
			for _, pm := range v.PaymentMethods {
				if pm.ID != id {
					kept = append(kept, pm)
				}
			}
			v.PaymentMethods = kept
		})
}

// AddPaymentMethod returns the processor's setup page to redirect to.
func (s *BillingService) AddPaymentMethod(ctx context.Context, userID string) (*models.MutationResponse, error) {
	var url string
	resp, err := s.mutate(ctx, userID, "add-payment-method", "Redirecting to add a payment method",
		func() error {
			var err error
			url, err = s.backend.AddPaymentMethod(ctx)
			return err
		}, nil)
	if err != nil {
		return resp, err
	}
	resp.Data = models.RedirectResponse{URL: url}
	return resp, nil
}

// mutate runs call under the pending guard for id, applies patch to the
// user's view on success and always returns a notice.
func (s *BillingService) mutate(ctx context.Context, userID, id, successMsg string, call func() error, patch func(*models.BillingView)) (*models.MutationResponse, error) {
	release, err := s.pending.Acquire(userID + "/" + id)
	if err != nil {
		return Failure(err), err
	}
	defer release()

	if err := call(); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("id", id).Msg("billing mutation failed")
		return Failure(err), err
	}

	resp := &models.MutationResponse{Notice: models.SuccessNotice(successMsg)}
	if patch != nil {
		s.mu.Lock()
		if v, ok := s.viewLocked(userID); ok {
			patch(v)
			resp.View = copyView(v)
		}
		s.mu.Unlock()
	}
	return resp, nil
}

// PatchSubscription applies fn to the user's mirrored copy of a
// subscription. It is a no-op when no view is loaded.
func (s *BillingService) PatchSubscription(userID, subscriptionID string, fn func(*models.Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.viewLocked(userID)
	if !ok {
		return
	}
	for i := range v.Subscriptions {
		if v.Subscriptions[i].SubscriptionID == subscriptionID {
			fn(&v.Subscriptions[i])
		}
	}
}

// Failure is the response body of a failed mutation.
func Failure(err error) *models.MutationResponse {
	if errors.Is(err, ErrBusy) {
		return &models.MutationResponse{Notice: models.ErrorNotice("Please wait for the current operation to finish.")}
	}
	return &models.MutationResponse{Notice: models.ErrorNotice(client.UserMessage(err))}
}

func setCancelAtPeriodEnd(v *models.BillingView, subscriptionID string, cancel bool) {
	for i := range v.Subscriptions {
		if v.Subscriptions[i].SubscriptionID == subscriptionID {
			v.Subscriptions[i].CancelAtPeriodEnd = cancel
		}
	}
}

func copyView(v *models.BillingView) *models.BillingView {
	return &models.BillingView{
		Subscriptions:  append([]models.Server{}, v.Subscriptions...),
		PaymentMethods: append([]models.PaymentMethod{}, v.PaymentMethods...),
	}
}
