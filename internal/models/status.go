package models

import (
	"strings"
	"time"
)

// ProvisioningStatus is the backend lifecycle state of the compute resource
// behind a subscription.
type ProvisioningStatus string

const (
	ProvisioningPending      ProvisioningStatus = "PENDING"
	ProvisioningProvisioning ProvisioningStatus = "PROVISIONING"
	ProvisioningReady        ProvisioningStatus = "READY"
	ProvisioningMigrating    ProvisioningStatus = "MIGRATING"
	ProvisioningDestroying   ProvisioningStatus = "DESTROYING"
	ProvisioningFailed       ProvisioningStatus = "FAILED"
	ProvisioningInactive     ProvisioningStatus = "INACTIVE"
	ProvisioningError        ProvisioningStatus = "ERROR"
)

// ParseProvisioningStatus maps a backend value onto the known states.
// Anything unrecognised is treated as ERROR.
func ParseProvisioningStatus(s string) ProvisioningStatus {
	switch st := ProvisioningStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case ProvisioningPending, ProvisioningProvisioning, ProvisioningReady,
		ProvisioningMigrating, ProvisioningDestroying, ProvisioningFailed,
		ProvisioningInactive, ProvisioningError:
		return st
	}
	return ProvisioningError
}

// InProgress reports whether the resource is still changing shape.
func (s ProvisioningStatus) InProgress() bool {
	switch s {
	case ProvisioningPending, ProvisioningProvisioning, ProvisioningMigrating, ProvisioningDestroying:
		return true
	}
	return false
}

// MOTD shown when the Minecraft status lookup fails.
const MOTDConnectionFailed = "Connection Failed"

// MinecraftStatus is the application-level view from the status API.
type MinecraftStatus struct {
	Online        bool     `json:"online"`
	PlayersOnline int      `json:"players_online"`
	PlayersMax    int      `json:"players_max"`
	PlayerList    []string `json:"player_list"`
	Version       string   `json:"version,omitempty"`
	MOTD          string   `json:"motd,omitempty"`
}

// OfflineMinecraftStatus is the fail-closed default.
func OfflineMinecraftStatus(motd string) MinecraftStatus {
	return MinecraftStatus{Online: false, PlayerList: []string{}, MOTD: motd}
}

// ServerStatus aggregates the three independently sourced facts about one
// server. It is rebuilt on every poll and never persisted.
type ServerStatus struct {
	SubscriptionID string             `json:"subscription_id"`
	MachineOnline  bool               `json:"machine_online"`
	Minecraft      MinecraftStatus    `json:"minecraft"`
	Provisioning   ProvisioningStatus `json:"provisioning_status"`
	// InProgress is set while the backend is still creating, moving or
	// removing the server.
	InProgress     bool               `json:"provisioning_in_progress"`
	CheckedAt      time.Time          `json:"checked_at"`
}

// MinecraftOnline is a shortcut used by the dashboard.
func (s ServerStatus) MinecraftOnline() bool {
	return s.Minecraft.Online
}
