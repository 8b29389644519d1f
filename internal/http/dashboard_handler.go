package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// ==================== Dashboard Handlers ====================

// ListServers returns the user's servers.
func (h *Handler) ListServers(c *gin.Context) {
	servers, err := h.dashboard.ListServers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ServerListResponse{Servers: servers, Total: len(servers)})
}

// GetStatuses runs one status round over all of the user's servers.
func (h *Handler) GetStatuses(c *gin.Context) {
	ctx := c.Request.Context()
	servers, err := h.dashboard.ListServers(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StatusMapResponse{Statuses: h.dashboard.Statuses(ctx, servers)})
}

// StreamStatuses pushes a "status" event after every poll round until the
// client goes away. The poller lives exactly as long as the request.
func (h *Handler) StreamStatuses(c *gin.Context) {
	ctx := c.Request.Context()
	servers, err := h.dashboard.ListServers(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	updates := make(chan map[string]models.ServerStatus, 1)
	poller := h.dashboard.NewPoller(servers, h.opts.PollInterval)
	poller.OnUpdate(func(statuses map[string]models.ServerStatus) {
		// Keep only the newest round when the client reads slowly.
		select {
		case updates <- statuses:
		default:
			select {
			case <-updates:
			default:
			}
			updates <- statuses
		}
	})
	poller.Start(ctx)
	defer poller.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-h.done:
			return false
		case statuses := <-updates:
			c.SSEvent("status", models.StatusMapResponse{Statuses: statuses})
			return true
		}
	})
}

// EditServer renames a server.
func (h *Handler) EditServer(c *gin.Context) {
	var req models.EditServerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.dashboard.EditServer(c.Request.Context(), currentUser(c), c.Param("subscription_id"), req.Name)
	h.respond(c, resp, err)
}

// ChangeRegion moves a server to another region.
func (h *Handler) ChangeRegion(c *gin.Context) {
	var req models.ChangeRegionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.dashboard.ChangeRegion(c.Request.Context(), currentUser(c), c.Param("subscription_id"), req.Region)
	h.respond(c, resp, err)
}

// GetLimits returns the resource allocations of a server.
func (h *Handler) GetLimits(c *gin.Context) {
	limits, err := h.dashboard.Limits(c.Request.Context(), c.Param("subscription_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

// ==================== Upgrade Handlers ====================

// GetUpgrade returns where the upgrade flow of a server currently is.
func (h *Handler) GetUpgrade(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.UpgradeState(currentUser(c), c.Param("subscription_id")))
}

// OpenUpgrade restarts the upgrade flow at plan selection.
func (h *Handler) OpenUpgrade(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.OpenUpgrade(currentUser(c), c.Param("subscription_id")))
}

// BackUpgrade leaves the preview and returns to plan selection.
func (h *Handler) BackUpgrade(c *gin.Context) {
	flow, err := h.dashboard.BackUpgrade(currentUser(c), c.Param("subscription_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

// CloseUpgrade discards the upgrade flow.
func (h *Handler) CloseUpgrade(c *gin.Context) {
	h.dashboard.CloseUpgrade(currentUser(c), c.Param("subscription_id"))
	c.JSON(http.StatusOK, gin.H{"message": "upgrade closed"})
}

// PreviewUpgrade quotes the prorated price of the chosen plan.
func (h *Handler) PreviewUpgrade(c *gin.Context) {
	var req models.UpgradePreviewRequest
	if !h.bindJSON(c, &req) {
		return
	}
	_, resp, err := h.dashboard.PreviewUpgrade(c.Request.Context(), currentUser(c), c.Param("subscription_id"), req.PlanID)
	h.respond(c, resp, err)
}

// ConfirmUpgrade charges the previewed upgrade.
func (h *Handler) ConfirmUpgrade(c *gin.Context) {
	_, resp, err := h.dashboard.ConfirmUpgrade(c.Request.Context(), currentUser(c), c.Param("subscription_id"))
	h.respond(c, resp, err)
}
