package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/client"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// SettingsBackend is the panel's settings and SFTP API.
type SettingsBackend interface {
	Settings(ctx context.Context, userID, subscriptionID string) (*models.ServerSettings, error)
	UpdateSettings(ctx context.Context, userID, subscriptionID string, settings *models.ServerSettings) error
	SFTPCredentials(ctx context.Context, userID, subscriptionID string) (*client.EncryptedSFTPCredentials, error)
}

// PasswordDecrypter recovers stored SFTP passwords.
type PasswordDecrypter interface {
	Decrypt(encoded string) (string, error)
}

type SettingsService struct {
	backend   SettingsBackend
	decrypter PasswordDecrypter
	pending   *PendingSet
	logger    zerolog.Logger
}

func NewSettingsService(backend SettingsBackend, decrypter PasswordDecrypter, logger zerolog.Logger) *SettingsService {
	return &SettingsService{
		backend:   backend,
		decrypter: decrypter,
		pending:   NewPendingSet(),
		logger:    logger.With().Str("service", "settings").Logger(),
	}
}

func (s *SettingsService) Settings(ctx context.Context, userID, subscriptionID string) (*models.ServerSettings, error) {
	return s.backend.Settings(ctx, userID, subscriptionID)
}

// UpdateSettings saves settings. A second save of the same server while one
// is running fails with ErrBusy.
func (s *SettingsService) UpdateSettings(ctx context.Context, userID, subscriptionID string, settings *models.ServerSettings) (*models.MutationResponse, error) {
	release, err := s.pending.Acquire(userID + "/" + subscriptionID)
	if err != nil {
		return Failure(err), err
	}
	defer release()

	if err := s.backend.UpdateSettings(ctx, userID, subscriptionID, settings); err != nil {
		s.logger.Warn().Err(err).Str("subscription_id", subscriptionID).Msg("settings update failed")
		return Failure(err), err
	}
	return &models.MutationResponse{Notice: models.SuccessNotice("Settings saved"), Data: settings}, nil
}

// SFTPCredentials returns the SFTP login with the password decrypted.
func (s *SettingsService) SFTPCredentials(ctx context.Context, userID, subscriptionID string) (*models.SFTPCredentials, error) {
	enc, err := s.backend.SFTPCredentials(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	password, err := s.decrypter.Decrypt(enc.Password)
	if err != nil {
		// Never log the ciphertext.
		s.logger.Error().Err(err).Str("subscription_id", subscriptionID).Msg("decrypt sftp password failed")
		return nil, fmt.Errorf("decrypt sftp password: %w", err)
	}
	return &models.SFTPCredentials{
		Host:     enc.Host,
		Port:     enc.Port,
		Username: enc.Username,
		Password: password,
	}, nil
}
