package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
	"golang.org/x/sync/errgroup"
)

// MachinePinger reports whether the machine behind an address is reachable.
type MachinePinger interface {
	Ping(ctx context.Context, address string) (bool, error)
}

// MinecraftChecker returns the protocol-level status of a Minecraft server.
type MinecraftChecker interface {
	Check(ctx context.Context, address string) (*models.MinecraftStatus, error)
}

// ProvisioningChecker returns the backend lifecycle state of a subscription.
type ProvisioningChecker interface {
	ProvisioningStatus(ctx context.Context, subscriptionID string) (models.ProvisioningStatus, error)
}

// Aggregator merges the three status sources of a server into one
// ServerStatus. Each facet fails closed on its own.
type Aggregator struct {
	pinger       MachinePinger
	minecraft    MinecraftChecker
	provisioning ProvisioningChecker
	logger       zerolog.Logger
	now          func() time.Time
}

// NewAggregator creates an aggregator over the given sources.
func NewAggregator(pinger MachinePinger, minecraft MinecraftChecker, provisioning ProvisioningChecker, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		pinger:       pinger,
		minecraft:    minecraft,
		provisioning: provisioning,
		logger:       logger.With().Str("component", "status").Logger(),
		now:          time.Now,
	}
}

// CheckServer runs the machine, Minecraft and provisioning lookups of one
// server concurrently. A server without a DNS record is reported offline
// without issuing the machine or Minecraft lookups.
//
// The machine and Minecraft lookups are detached from ctx cancellation; they
// are bounded by their own timeouts instead.
func (a *Aggregator) CheckServer(ctx context.Context, server models.Server) models.ServerStatus {
	result := models.ServerStatus{
		SubscriptionID: server.SubscriptionID,
		MachineOnline:  false,
		Minecraft:      models.OfflineMinecraftStatus(""),
		Provisioning:   models.ProvisioningError,
	}

	address := server.Address()
	detached := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	if address != "" {
		wg.Add(2)
		go func() {
			defer wg.Done()
			result.MachineOnline = a.pingMachine(detached, address)
		}()
		go func() {
			defer wg.Done()
			result.Minecraft = a.checkMinecraft(detached, address)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		result.Provisioning = a.checkProvisioning(ctx, server.SubscriptionID)
	}()
	wg.Wait()

	result.InProgress = result.Provisioning.InProgress()
	result.CheckedAt = a.now()
	return result
}

func (a *Aggregator) pingMachine(ctx context.Context, address string) (online bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Str("address", address).Msg("machine ping panicked")
			online = false
		}
	}()
	up, err := a.pinger.Ping(ctx, address)
	if err != nil {
		a.logger.Debug().Err(err).Str("address", address).Msg("machine ping failed")
		return false
	}
	return up
}

func (a *Aggregator) checkMinecraft(ctx context.Context, address string) (status models.MinecraftStatus) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Str("address", address).Msg("minecraft check panicked")
			status = models.OfflineMinecraftStatus(models.MOTDConnectionFailed)
		}
	}()
	mc, err := a.minecraft.Check(ctx, address)
	if err != nil || mc == nil {
		a.logger.Debug().Err(err).Str("address", address).Msg("minecraft status lookup failed")
		return models.OfflineMinecraftStatus(models.MOTDConnectionFailed)
	}
	if mc.PlayerList == nil {
		mc.PlayerList = []string{}
	}
	return *mc
}

func (a *Aggregator) checkProvisioning(ctx context.Context, subscriptionID string) (status models.ProvisioningStatus) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Str("subscription_id", subscriptionID).Msg("provisioning check panicked")
			status = models.ProvisioningError
		}
	}()
	st, err := a.provisioning.ProvisioningStatus(ctx, subscriptionID)
	if err != nil {
		a.logger.Warn().Err(err).Str("subscription_id", subscriptionID).Msg("provisioning status lookup failed")
		return models.ProvisioningError
	}
	return st
}

// CheckAll checks every server concurrently and returns one status per
// subscription id. A failing server never affects the others.
func (a *Aggregator) CheckAll(ctx context.Context, servers []models.Server) map[string]models.ServerStatus {
	var (
		mu      sync.Mutex
		results = make(map[string]models.ServerStatus, len(servers))
		g       errgroup.Group
	)

	for _, server := range servers {
		server := server
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("status check for %s panicked: %v", server.SubscriptionID, r)
				}
			}()
			st := a.CheckServer(ctx, server)
			mu.Lock()
			results[server.SubscriptionID] = st
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.Error().Err(err).Msg("status check failed")
	}
	return results
}
