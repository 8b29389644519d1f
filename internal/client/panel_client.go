package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// PanelClient calls the panel API that owns servers, files and backups.
//
// Two proxy surfaces exist: the legacy one under
// /api/panel/user/{userId}/subscription/{id} (backups, settings, sftp) and
// the newer one under /api/user/subscription/{id} (files, limits, lifecycle).
type PanelClient struct {
	restClient
}

// NewPanelClient creates a new panel client
func NewPanelClient(baseURL, internalSecret string, timeout time.Duration, logger zerolog.Logger) *PanelClient {
	return &PanelClient{restClient: newRestClient("panel_client", baseURL, internalSecret, timeout, logger)}
}

func legacyPath(userID, subscriptionID string) string {
	return fmt.Sprintf("/api/panel/user/%s/subscription/%s", url.PathEscape(userID), url.PathEscape(subscriptionID))
}

func subscriptionPath(subscriptionID string) string {
	return "/api/user/subscription/" + url.PathEscape(subscriptionID)
}

// ProvisioningStatus returns the backend lifecycle state of the server's
// compute resource.
func (c *PanelClient) ProvisioningStatus(ctx context.Context, subscriptionID string) (models.ProvisioningStatus, error) {
	var result struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, subscriptionPath(subscriptionID)+"/status", nil, &result); err != nil {
		return models.ProvisioningError, err
	}
	return models.ParseProvisioningStatus(result.Status), nil
}

// ResourceLimits returns the allocations of a server.
func (c *PanelClient) ResourceLimits(ctx context.Context, subscriptionID string) (*models.ResourceLimits, error) {
	var result models.ResourceLimits
	if err := c.doJSON(ctx, http.MethodGet, subscriptionPath(subscriptionID)+"/limits", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EditServer renames a server.
func (c *PanelClient) EditServer(ctx context.Context, subscriptionID, name string) error {
	c.logger.Info().Str("subscription_id", subscriptionID).Msg("Editing server")
	return c.doJSON(ctx, http.MethodPatch, subscriptionPath(subscriptionID), map[string]string{"name": name}, nil)
}

// ChangeRegion asks the backend to migrate a server to another region.
func (c *PanelClient) ChangeRegion(ctx context.Context, subscriptionID, region string) error {
	c.logger.Info().Str("subscription_id", subscriptionID).Str("region", region).Msg("Changing server region")
	return c.doJSON(ctx, http.MethodPost, subscriptionPath(subscriptionID)+"/region", map[string]string{"region": region}, nil)
}

// PreviewUpgrade returns the prorated charge for moving to planID.
func (c *PanelClient) PreviewUpgrade(ctx context.Context, subscriptionID, planID string) (*models.UpgradePreview, error) {
	var result models.UpgradePreview
	err := c.doJSON(ctx, http.MethodPost, subscriptionPath(subscriptionID)+"/upgrade/preview",
		map[string]string{"plan_id": planID}, &result)
	if err != nil {
		return nil, err
	}
	if result.PlanID == "" {
		result.PlanID = planID
	}
	return &result, nil
}

// ConfirmUpgrade charges the upgrade previewed at prorationDate.
func (c *PanelClient) ConfirmUpgrade(ctx context.Context, subscriptionID, planID string, prorationDate int64) (*models.UpgradeConfirmation, error) {
	c.logger.Info().Str("subscription_id", subscriptionID).Str("plan_id", planID).Msg("Confirming upgrade")

	req := map[string]interface{}{"plan_id": planID, "proration_date": prorationDate}
	var result models.UpgradeConfirmation
	if err := c.doJSON(ctx, http.MethodPost, subscriptionPath(subscriptionID)+"/upgrade", req, &result); err != nil {
		return nil, err
	}
	if result.InvoiceID == "" {
		return nil, fmt.Errorf("upgrade confirmed without invoice id")
	}
	return &result, nil
}

// ==================== Settings ====================

// Settings returns the editable server settings.
func (c *PanelClient) Settings(ctx context.Context, userID, subscriptionID string) (*models.ServerSettings, error) {
	var result models.ServerSettings
	if err := c.doJSON(ctx, http.MethodGet, legacyPath(userID, subscriptionID)+"/settings", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateSettings replaces the editable server settings.
func (c *PanelClient) UpdateSettings(ctx context.Context, userID, subscriptionID string, settings *models.ServerSettings) error {
	return c.doJSON(ctx, http.MethodPut, legacyPath(userID, subscriptionID)+"/settings", settings, nil)
}

// EncryptedSFTPCredentials are returned by the panel with the password still
// encrypted.
type EncryptedSFTPCredentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SFTPCredentials returns the connection details for the server's SFTP.
func (c *PanelClient) SFTPCredentials(ctx context.Context, userID, subscriptionID string) (*EncryptedSFTPCredentials, error) {
	var result EncryptedSFTPCredentials
	if err := c.doJSON(ctx, http.MethodGet, legacyPath(userID, subscriptionID)+"/sftp", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
