package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

func backupsPath(userID, subscriptionID string) string {
	return legacyPath(userID, subscriptionID) + "/backups"
}

// ListBackups lists the backups of a server.
func (c *PanelClient) ListBackups(ctx context.Context, userID, subscriptionID string) ([]models.Backup, error) {
	var result struct {
		Backups []models.Backup `json:"backups"`
	}
	if err := c.doJSON(ctx, http.MethodGet, backupsPath(userID, subscriptionID), nil, &result); err != nil {
		return nil, err
	}
	if result.Backups == nil {
		result.Backups = []models.Backup{}
	}
	return result.Backups, nil
}

// CreateBackup starts a backup. The backend fills CompletedAt once done.
func (c *PanelClient) CreateBackup(ctx context.Context, userID, subscriptionID, name string) (*models.Backup, error) {
	c.logger.Info().Str("subscription_id", subscriptionID).Msg("Creating backup")

	var result models.Backup
	req := map[string]string{"name": name}
	if err := c.doJSON(ctx, http.MethodPost, backupsPath(userID, subscriptionID), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteBackup deletes a backup.
func (c *PanelClient) DeleteBackup(ctx context.Context, userID, subscriptionID, backupID string) error {
	c.logger.Info().Str("subscription_id", subscriptionID).Str("backup_id", backupID).Msg("Deleting backup")
	path := backupsPath(userID, subscriptionID) + "/" + url.PathEscape(backupID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// RestoreBackup restores a backup, optionally wiping existing files first.
func (c *PanelClient) RestoreBackup(ctx context.Context, userID, subscriptionID, backupID string, truncate bool) error {
	c.logger.Info().Str("subscription_id", subscriptionID).Str("backup_id", backupID).Msg("Restoring backup")
	path := backupsPath(userID, subscriptionID) + "/" + url.PathEscape(backupID) + "/restore"
	return c.doJSON(ctx, http.MethodPost, path, map[string]bool{"truncate": truncate}, nil)
}

// BackupDownloadURL returns a signed URL for a backup archive.
func (c *PanelClient) BackupDownloadURL(ctx context.Context, userID, subscriptionID, backupID string) (string, error) {
	var result models.SignedURL
	path := backupsPath(userID, subscriptionID) + "/" + url.PathEscape(backupID) + "/download"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}
