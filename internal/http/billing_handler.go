package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// ==================== Billing Handlers ====================

type billingResponse struct {
	*models.BillingView
	Pending []string `json:"pending"`
}

// GetBilling returns the user's subscriptions and payment methods.
// ?refresh=true discards the mirrored view and reloads it from the backend.
func (h *Handler) GetBilling(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)

	var (
		view *models.BillingView
		err  error
	)
	if c.Query("refresh") == "true" {
		view, err = h.billing.Load(ctx, userID)
	} else {
		view, err = h.billing.View(ctx, userID)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	pending := h.billing.Pending(userID)
	if pending == nil {
		pending = []string{}
	}
	c.JSON(http.StatusOK, billingResponse{BillingView: view, Pending: pending})
}

func (h *Handler) ListInvoices(c *gin.Context) {
	invoices, err := h.billing.Invoices(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

func (h *Handler) CancelSubscription(c *gin.Context) {
	resp, err := h.billing.CancelSubscription(c.Request.Context(), currentUser(c), c.Param("subscription_id"))
	h.respond(c, resp, err)
}

func (h *Handler) UncancelSubscription(c *gin.Context) {
	resp, err := h.billing.UncancelSubscription(c.Request.Context(), currentUser(c), c.Param("subscription_id"))
	h.respond(c, resp, err)
}

func (h *Handler) AddPaymentMethod(c *gin.Context) {
	resp, err := h.billing.AddPaymentMethod(c.Request.Context(), currentUser(c))
	h.respond(c, resp, err)
}

func (h *Handler) SetDefaultPaymentMethod(c *gin.Context) {
	resp, err := h.billing.SetDefaultPaymentMethod(c.Request.Context(), currentUser(c), c.Param("payment_method_id"))
	h.respond(c, resp, err)
}

func (h *Handler) UnsetDefaultPaymentMethod(c *gin.Context) {
	resp, err := h.billing.UnsetDefaultPaymentMethod(c.Request.Context(), currentUser(c), c.Param("payment_method_id"))
	h.respond(c, resp, err)
}

func (h *Handler) RemovePaymentMethod(c *gin.Context) {
	resp, err := h.billing.RemovePaymentMethod(c.Request.Context(), currentUser(c), c.Param("payment_method_id"))
	h.respond(c, resp, err)
}
