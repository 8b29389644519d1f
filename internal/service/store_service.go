package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/catalog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/config"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// CheckoutBackend starts a checkout on the billing backend.
type CheckoutBackend interface {
	Checkout(ctx context.Context, req *models.CheckoutRequest) (string, error)
}

// StoreService sells new servers. With a Stripe key it creates the Checkout
// session itself; otherwise the billing backend does.
type StoreService struct {
	cfg           config.StripeConfig
	catalog       *catalog.Catalog
	backend       CheckoutBackend
	createSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	newKey        func() string
	logger        zerolog.Logger
}

// NewStoreService sets the Stripe key and returns the service with a scoped logger
func NewStoreService(cfg config.StripeConfig, cat *catalog.Catalog, backend CheckoutBackend, logger zerolog.Logger) *StoreService {
	if cfg.SecretKey != "" {
		stripe.Key = cfg.SecretKey
	}
	return &StoreService{
		cfg:           cfg,
		catalog:       cat,
		backend:       backend,
		createSession: checkoutsession.New,
		newKey:        func() string { return uuid.New().String() },
		logger:        logger.With().Str("service", "store").Logger(),
	}
}

// Catalog returns the plans and the regions open for new servers.
func (s *StoreService) Catalog() *models.CatalogResponse {
	return &models.CatalogResponse{
		Plans:   s.catalog.Plans(),
		Regions: s.catalog.GetAvailableRegions(),
	}
}

// Checkout returns the URL the browser is redirected to for payment.
func (s *StoreService) Checkout(ctx context.Context, userID string, req *models.CheckoutRequest) (string, error) {
	plan, err := s.catalog.GetPlan(req.PlanID)
	if err != nil {
		return "", err
	}
	if err := s.catalog.ValidateRegion(req.Region); err != nil {
		return "", err
	}
	req.Name = strings.TrimSpace(req.Name)

	if s.cfg.SecretKey == "" {
		url, err := s.backend.Checkout(ctx, req)
		if err != nil {
			s.logger.Error().Err(err).Str("plan", plan.ID).Msg("Backend checkout failed")
			return "", err
		}
		return url, nil
	}

	metadata := map[string]string{
		"user_id":     userID,
		"plan_id":     plan.ID,
		"region":      req.Region,
		"server_name": req.Name,
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(stripe.CheckoutSessionModeSubscription),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{lineItem(plan)},
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(userID),
		Metadata:          metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(s.newKey())

	sess, err := s.createSession(params)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan.ID).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

func lineItem(plan models.Plan) *stripe.CheckoutSessionLineItemParams {
	if plan.StripePriceID != "" {
		return &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(plan.StripePriceID),
			Quantity: stripe.Int64(1),
		}
	}
	return &stripe.CheckoutSessionLineItemParams{
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(plan.Currency),
			UnitAmount: stripe.Int64(plan.Amount),
			Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String("month"),
			},
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(plan.Title),
			},
		},
		Quantity: stripe.Int64(1),
	}
}
