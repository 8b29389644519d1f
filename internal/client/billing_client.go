package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// BillingClient calls the backend's billing surface (subscriptions, invoices,
// payment methods, checkout).
type BillingClient struct {
	restClient
}

// NewBillingClient creates a new billing client
func NewBillingClient(baseURL, internalSecret string, timeout time.Duration, logger zerolog.Logger) *BillingClient {
	return &BillingClient{restClient: newRestClient("billing_client", baseURL, internalSecret, timeout, logger)}
}

func paymentMethodPath(id string) string {
	return "/api/user/payment-methods/" + url.PathEscape(id)
}

// ListSubscriptions returns the user's subscriptions, one per server.
func (c *BillingClient) ListSubscriptions(ctx context.Context) ([]models.Server, error) {
	var result struct {
		Subscriptions []models.Server `json:"subscriptions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/user/subscriptions", nil, &result); err != nil {
		return nil, err
	}
	if result.Subscriptions == nil {
		result.Subscriptions = []models.Server{}
	}
	return result.Subscriptions, nil
}

// ListInvoices returns the user's invoices, newest first.
func (c *BillingClient) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	var result struct {
		Invoices []models.Invoice `json:"invoices"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/user/invoices", nil, &result); err != nil {
		return nil, err
	}
	if result.Invoices == nil {
		result.Invoices = []models.Invoice{}
	}
	return result.Invoices, nil
}

// ListPaymentMethods returns the user's stored payment methods.
func (c *BillingClient) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	var result struct {
		PaymentMethods []models.PaymentMethod `json:"payment_methods"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/user/payment-methods", nil, &result); err != nil {
		return nil, err
	}
	if result.PaymentMethods == nil {
		result.PaymentMethods = []models.PaymentMethod{}
	}
	return result.PaymentMethods, nil
}

// CancelSubscription flips cancel-at-period-end on.
func (c *BillingClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	c.logger.Info().Str("subscription_id", subscriptionID).Msg("Cancelling subscription")
	return c.doJSON(ctx, http.MethodPost, subscriptionPath(subscriptionID)+"/cancel", nil, nil)
}

// UncancelSubscription flips cancel-at-period-end off.
func (c *BillingClient) UncancelSubscription(ctx context.Context, subscriptionID string) error {
	c.logger.Info().Str("subscription_id", subscriptionID).Msg("Resuming subscription")
	return c.doJSON(ctx, http.MethodPost, subscriptionPath(subscriptionID)+"/uncancel", nil, nil)
}

// SetDefaultPaymentMethod makes id the default payment method.
func (c *BillingClient) SetDefaultPaymentMethod(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, paymentMethodPath(id)+"/default", nil, nil)
}

// UnsetDefaultPaymentMethod clears the default flag of id.
func (c *BillingClient) UnsetDefaultPaymentMethod(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, paymentMethodPath(id)+"/default", nil, nil)
}

// RemovePaymentMethod detaches a payment method.
func (c *BillingClient) RemovePaymentMethod(ctx context.Context, id string) error {
	c.logger.Info().Str("payment_method_id", id).Msg("Removing payment method")
	return c.doJSON(ctx, http.MethodDelete, paymentMethodPath(id), nil, nil)
}

// AddPaymentMethod starts a payment-method setup session and returns the URL
// the browser is redirected to.
func (c *BillingClient) AddPaymentMethod(ctx context.Context) (string, error) {
	var result models.RedirectResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/user/payment-methods", nil, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

// Checkout asks the backend for a checkout session URL.
func (c *BillingClient) Checkout(ctx context.Context, req *models.CheckoutRequest) (string, error) {
	var result models.RedirectResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/user/checkout", req, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}
