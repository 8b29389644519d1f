package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/catalog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/status"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/upgrade"
)

var ErrServerNotFound = errors.New("server not found")

// ServerBackend is the part of the panel API that manages server lifecycle.
type ServerBackend interface {
	EditServer(ctx context.Context, subscriptionID, name string) error
	ChangeRegion(ctx context.Context, subscriptionID, region string) error
	PreviewUpgrade(ctx context.Context, subscriptionID, planID string) (*models.UpgradePreview, error)
	ConfirmUpgrade(ctx context.Context, subscriptionID, planID string, prorationDate int64) (*models.UpgradeConfirmation, error)
	ResourceLimits(ctx context.Context, subscriptionID string) (*models.ResourceLimits, error)
}

// SubscriptionLister lists the current user's servers.
type SubscriptionLister interface {
	ListSubscriptions(ctx context.Context) ([]models.Server, error)
}

// DashboardService backs the server dashboard: the server list, live status
// and the per-server mutations including the upgrade flow.
type DashboardService struct {
	servers  ServerBackend
	lister   SubscriptionLister
	checker  status.Checker
	catalog  *catalog.Catalog
	billing  *BillingService
	upgrades *upgrade.Store
	pending  *PendingSet
	logger   zerolog.Logger
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(
	servers ServerBackend,
	lister SubscriptionLister,
	checker status.Checker,
	cat *catalog.Catalog,
	billing *BillingService,
	logger zerolog.Logger,
) *DashboardService {
	return &DashboardService{
		servers:  servers,
		lister:   lister,
		checker:  checker,
		catalog:  cat,
		billing:  billing,
		upgrades: upgrade.NewStore(),
		pending:  NewPendingSet(),
		logger:   logger.With().Str("service", "dashboard").Logger(),
	}
}

// ListServers returns the user's servers.
func (s *DashboardService) ListServers(ctx context.Context) ([]models.Server, error) {
	servers, err := s.lister.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	if servers == nil {
		servers = []models.Server{}
	}
	return servers, nil
}

// FindServer returns one of the user's servers.
func (s *DashboardService) FindServer(ctx context.Context, subscriptionID string) (*models.Server, error) {
	servers, err := s.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range servers {
		if servers[i].SubscriptionID == subscriptionID {
			return &servers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrServerNotFound, subscriptionID)
}

// FindServerByAddress returns the user's server whose DNS record is address.
func (s *DashboardService) FindServerByAddress(ctx context.Context, address string) (*models.Server, error) {
	servers, err := s.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range servers {
		if a := servers[i].Address(); a != "" && strings.EqualFold(a, address) {
			return &servers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrServerNotFound, address)
}

// Statuses checks every server once.
func (s *DashboardService) Statuses(ctx context.Context, servers []models.Server) map[string]models.ServerStatus {
	return s.checker.CheckAll(ctx, servers)
}

// NewPoller creates a status poller over servers.
func (s *DashboardService) NewPoller(servers []models.Server, interval time.Duration) *status.Poller {
	return status.NewPoller(s.checker, servers, interval)
}

// Limits returns the resource allocations of a server.
func (s *DashboardService) Limits(ctx context.Context, subscriptionID string) (*models.ResourceLimits, error) {
	return s.servers.ResourceLimits(ctx, subscriptionID)
}

// EditServer renames a server.
func (s *DashboardService) EditServer(ctx context.Context, userID, subscriptionID, name string) (*models.MutationResponse, error) {
	name = strings.TrimSpace(name)
	return s.mutate(userID, subscriptionID, "Server updated", func() error {
		if err := s.servers.EditServer(ctx, subscriptionID, name); err != nil {
			return err
		}
		s.billing.PatchSubscription(userID, subscriptionID, func(srv *models.Server) { srv.Name = name })
		return nil
	})
}

// ChangeRegion moves a server to another available region.
func (s *DashboardService) ChangeRegion(ctx context.Context, userID, subscriptionID, region string) (*models.MutationResponse, error) {
	if err := s.catalog.ValidateRegion(region); err != nil {
		return &models.MutationResponse{Notice: models.ErrorNotice("Please choose an available region.")}, err
	}
	return s.mutate(userID, subscriptionID, "Region change started", func() error {
		if err := s.servers.ChangeRegion(ctx, subscriptionID, region); err != nil {
			return err
		}
		s.billing.PatchSubscription(userID, subscriptionID, func(srv *models.Server) { srv.Region = region })
		return nil
	})
}

// ==================== Upgrade ====================

// OpenUpgrade resets the upgrade flow of a server to plan selection.
func (s *DashboardService) OpenUpgrade(userID, subscriptionID string) upgrade.Flow {
	return s.upgrades.Open(userID, subscriptionID)
}

// UpgradeState returns the current upgrade flow of a server.
func (s *DashboardService) UpgradeState(userID, subscriptionID string) upgrade.Flow {
	return s.upgrades.Get(userID, subscriptionID)
}

// BackUpgrade returns from Preview to plan selection.
func (s *DashboardService) BackUpgrade(userID, subscriptionID string) (upgrade.Flow, error) {
	return s.upgrades.Apply(userID, subscriptionID, upgrade.Flow.Back)
}

// CloseUpgrade discards the upgrade flow when the dialog is dismissed.
func (s *DashboardService) CloseUpgrade(userID, subscriptionID string) {
	s.upgrades.Close(userID, subscriptionID)
}

// PreviewUpgrade asks the backend for the prorated charge of planID and moves
// the flow to Preview.
func (s *DashboardService) PreviewUpgrade(ctx context.Context, userID, subscriptionID, planID string) (upgrade.Flow, *models.MutationResponse, error) {
	plan, err := s.catalog.GetPlan(planID)
	if err != nil {
		return s.UpgradeState(userID, subscriptionID), &models.MutationResponse{Notice: models.ErrorNotice("Unknown plan.")}, err
	}
	if cur := s.UpgradeState(userID, subscriptionID); cur.Step == upgrade.StepSuccess {
		err := fmt.Errorf("%w: preview from %s", upgrade.ErrInvalidTransition, cur.Step)
		return cur, transitionFailure(), err
	}

	var preview *models.UpgradePreview
	resp, err := s.mutate(userID, subscriptionID, "Upgrade preview ready", func() error {
		var err error
		preview, err = s.servers.PreviewUpgrade(ctx, subscriptionID, plan.ID)
		return err
	})
	if err != nil {
		return s.UpgradeState(userID, subscriptionID), resp, err
	}
	preview.PlanTitle = plan.Title
	if preview.Currency == "" {
		preview.Currency = plan.Currency
	}

	flow, err := s.upgrades.Apply(userID, subscriptionID, func(f upgrade.Flow) (upgrade.Flow, error) {
		return f.WithPreview(*preview)
	})
	if err != nil {
		return flow, transitionFailure(), err
	}
	resp.Data = flow
	return flow, resp, nil
}

// ConfirmUpgrade charges the previewed upgrade and moves the flow to Success.
func (s *DashboardService) ConfirmUpgrade(ctx context.Context, userID, subscriptionID string) (upgrade.Flow, *models.MutationResponse, error) {
	cur := s.UpgradeState(userID, subscriptionID)
	if cur.Step != upgrade.StepPreview || cur.Preview == nil {
		err := fmt.Errorf("%w: confirm from %s", upgrade.ErrInvalidTransition, cur.Step)
		return cur, transitionFailure(), err
	}
	preview := *cur.Preview

	var confirmation *models.UpgradeConfirmation
	resp, err := s.mutate(userID, subscriptionID, "Server upgraded", func() error {
		var err error
		confirmation, err = s.servers.ConfirmUpgrade(ctx, subscriptionID, preview.PlanID, preview.ProrationDate)
		return err
	})
	if err != nil {
		return cur, resp, err
	}
	if confirmation.PlanID == "" {
		confirmation.PlanID = preview.PlanID
	}

	flow, err := s.upgrades.Apply(userID, subscriptionID, func(f upgrade.Flow) (upgrade.Flow, error) {
		return f.WithConfirmation(*confirmation)
	})
	if err != nil {
		return flow, transitionFailure(), err
	}

	if plan, err := s.catalog.GetPlan(preview.PlanID); err == nil {
		s.billing.PatchSubscription(userID, subscriptionID, func(srv *models.Server) {
			srv.Specification = plan.Title
			srv.RAM, srv.CPU, srv.SSD = plan.RAM, plan.CPU, plan.SSD
		})
	}
	s.logger.Info().Str("subscription_id", subscriptionID).Str("invoice_id", confirmation.InvoiceID).Msg("Upgrade confirmed")
	resp.Data = flow
	return flow, resp, nil
}

func (s *DashboardService) mutate(userID, subscriptionID, successMsg string, call func() error) (*models.MutationResponse, error) {
	release, err := s.pending.Acquire(userID + "/" + subscriptionID)
	if err != nil {
		return Failure(err), err
	}
	defer release()

	if err := call(); err != nil {
		s.logger.Warn().Err(err).Str("subscription_id", subscriptionID).Msg("server mutation failed")
		return Failure(err), err
	}
	return &models.MutationResponse{Notice: models.SuccessNotice(successMsg)}, nil
}

func transitionFailure() *models.MutationResponse {
	return &models.MutationResponse{Notice: models.ErrorNotice("Please start the upgrade again.")}
}
