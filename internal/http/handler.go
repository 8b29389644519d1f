package http

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/catalog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/client"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/console"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/service"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/status"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/upgrade"
)

// Services are the collaborators the handlers delegate to.
type Services struct {
	Dashboard *service.DashboardService
	Billing   *service.BillingService
	Files     *service.FileService
	Backups   *service.BackupService
	Settings  *service.SettingsService
	Store     *service.StoreService
	Pinger    status.MachinePinger
}

// HandlerOptions tune the streaming endpoints.
type HandlerOptions struct {
	ConsoleHost     string
	ConsoleMaxLines int
	ConsoleDial     console.DialFunc
	AllowedOrigins  []string
	PollInterval    time.Duration
}

type Handler struct {
	dashboard *service.DashboardService
	billing   *service.BillingService
	files     *service.FileService
	backups   *service.BackupService
	settings  *service.SettingsService
	store     *service.StoreService
	pinger    status.MachinePinger
	opts      HandlerOptions
	logger    zerolog.Logger

	// closed on shutdown to end long-lived streams
	done      chan struct{}
	closeOnce sync.Once
}

func NewHandler(svc Services, opts HandlerOptions, logger zerolog.Logger) *Handler {
	if opts.ConsoleDial == nil {
		opts.ConsoleDial = console.GorillaDial
	}
	return &Handler{
		dashboard: svc.Dashboard,
		billing:   svc.Billing,
		files:     svc.Files,
		backups:   svc.Backups,
		settings:  svc.Settings,
		store:     svc.Store,
		pinger:    svc.Pinger,
		opts:      opts,
		logger:    logger.With().Str("component", "http").Logger(),
		done:      make(chan struct{}),
	}
}

// Close ends open status streams and console bridges.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func currentUser(c *gin.Context) string {
	return c.GetString("userID")
}

// statusFor maps an error onto the HTTP status returned to the browser.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBusy), errors.Is(err, upgrade.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidPath),
		errors.Is(err, client.ErrInvalidAddress),
		errors.Is(err, catalog.ErrPlanNotFound),
		errors.Is(err, catalog.ErrRegionNotFound),
		errors.Is(err, catalog.ErrRegionUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrServerNotFound):
		return http.StatusNotFound
	case errors.Is(err, console.ErrNotAuthenticated):
		return http.StatusUnauthorized
	}
	return client.HTTPStatus(err)
}

func errorMessage(err error) string {
	switch statusFor(err) {
	case http.StatusBadRequest, http.StatusConflict:
		return err.Error()
	case http.StatusNotFound:
		if errors.Is(err, service.ErrServerNotFound) {
			return err.Error()
		}
	}
	return client.UserMessage(err)
}

// fail answers a read endpoint.
func (h *Handler) fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": errorMessage(err)})
}

// respond answers a mutation. Failures still carry a notice.
func (h *Handler) respond(c *gin.Context, resp *models.MutationResponse, err error) {
	if err != nil {
		if resp == nil {
			resp = service.Failure(err)
			if s := statusFor(err); s == http.StatusBadRequest || s == http.StatusNotFound {
				resp.Notice = models.ErrorNotice(errorMessage(err))
			}
		}
		c.JSON(statusFor(err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// ==================== Public Handlers ====================

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "minecraft-portal",
	})
}

// Ping checks whether the machine behind one of the caller's servers answers
// HTTP. Only DNS names of the caller's own servers are pinged.
func (h *Handler) Ping(c *gin.Context) {
	ctx := c.Request.Context()
	address := strings.TrimSpace(c.Query("address"))
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address required"})
		return
	}
	if err := client.ValidateAddress(address); err != nil {
		h.fail(c, err)
		return
	}
	server, err := h.dashboard.FindServerByAddress(ctx, address)
	if err != nil {
		h.fail(c, err)
		return
	}
	up, err := h.pinger.Ping(ctx, server.Address())
	if err != nil || !up {
		c.JSON(http.StatusOK, gin.H{"status": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "up"})
}

// GetCatalog lists plans and open regions.
func (h *Handler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Catalog())
}

// Checkout starts a purchase and returns the payment redirect.
func (h *Handler) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if !h.bindJSON(c, &req) {
		return
	}
	url, err := h.store.Checkout(c.Request.Context(), currentUser(c), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.RedirectResponse{URL: url})
}

// ==================== Internal Handlers ====================

type statusQuery struct {
	Servers []models.Server `json:"servers" binding:"required,min=1,dive"`
}

// InternalStatuses aggregates status for servers supplied by another service.
func (h *Handler) InternalStatuses(c *gin.Context) {
	var req statusQuery
	if !h.bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, models.StatusMapResponse{
		Statuses: h.dashboard.Statuses(c.Request.Context(), req.Servers),
	})
}
