package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// BackupBackend is the panel's backup API.
type BackupBackend interface {
	ListBackups(ctx context.Context, userID, subscriptionID string) ([]models.Backup, error)
	CreateBackup(ctx context.Context, userID, subscriptionID, name string) (*models.Backup, error)
	DeleteBackup(ctx context.Context, userID, subscriptionID, backupID string) error
	RestoreBackup(ctx context.Context, userID, subscriptionID, backupID string, truncate bool) error
	BackupDownloadURL(ctx context.Context, userID, subscriptionID, backupID string) (string, error)
}

// BackupService issues backup commands. Backups are owned by the panel; the
// list is re-read after every change.
type BackupService struct {
	backend BackupBackend
	pending *PendingSet
	logger  zerolog.Logger
}

func NewBackupService(backend BackupBackend, logger zerolog.Logger) *BackupService {
	return &BackupService{
		backend: backend,
		pending: NewPendingSet(),
		logger:  logger.With().Str("service", "backups").Logger(),
	}
}

func (s *BackupService) List(ctx context.Context, userID, subscriptionID string) ([]models.Backup, error) {
	backups, err := s.backend.ListBackups(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if backups == nil {
		backups = []models.Backup{}
	}
	return backups, nil
}

// Create starts a backup and returns the refreshed list.
func (s *BackupService) Create(ctx context.Context, userID, subscriptionID, name string) (*models.MutationResponse, error) {
	return s.mutate(ctx, userID, subscriptionID, subscriptionID+"/create", "Backup started", func() error {
		_, err := s.backend.CreateBackup(ctx, userID, subscriptionID, strings.TrimSpace(name))
		return err
	})
}

// Delete removes a backup and returns the refreshed list.
func (s *BackupService) Delete(ctx context.Context, userID, subscriptionID, backupID string) (*models.MutationResponse, error) {
	return s.mutate(ctx, userID, subscriptionID, backupID, "Backup deleted", func() error {
		return s.backend.DeleteBackup(ctx, userID, subscriptionID, backupID)
	})
}

// Restore restores a backup, optionally wiping the server files first.
func (s *BackupService) Restore(ctx context.Context, userID, subscriptionID, backupID string, truncate bool) (*models.MutationResponse, error) {
	return s.mutate(ctx, userID, subscriptionID, backupID, "Backup restore started", func() error {
		return s.backend.RestoreBackup(ctx, userID, subscriptionID, backupID, truncate)
	})
}

func (s *BackupService) DownloadURL(ctx context.Context, userID, subscriptionID, backupID string) (string, error) {
	return s.backend.BackupDownloadURL(ctx, userID, subscriptionID, backupID)
}

func (s *BackupService) mutate(ctx context.Context, userID, subscriptionID, key, successMsg string, call func() error) (*models.MutationResponse, error) {
	release, err := s.pending.Acquire(userID + "/" + key)
	if err != nil {
		return Failure(err), err
	}
	defer release()

	if err := call(); err != nil {
		s.logger.Warn().Err(err).Str("subscription_id", subscriptionID).Msg("backup command failed")
		return Failure(err), err
	}

	resp := &models.MutationResponse{Notice: models.SuccessNotice(successMsg)}
	backups, err := s.List(ctx, userID, subscriptionID)
	if err != nil {
		s.logger.Warn().Err(err).Str("subscription_id", subscriptionID).Msg("re-list backups failed")
		return resp, nil
	}
	resp.Data = backups
	return resp, nil
}
