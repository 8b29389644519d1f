package models

import "time"

// Server is the subscription view of one hosted Minecraft server.
type Server struct {
	SubscriptionID     string    `json:"subscription_id"`
	UID                string    `json:"uid,omitempty"`
	Name               string    `json:"name"`
	Currency           string    `json:"currency"`
	Amount             int64     `json:"amount"` // minor units
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	CancelAtPeriodEnd  bool      `json:"cancel_at_period_end"`
	Region             string    `json:"region"`
	Specification      string    `json:"specification"`
	RAM                int       `json:"ram"`
	CPU                int       `json:"cpu"`
	SSD                int       `json:"ssd"`
	CNAMERecordName    *string   `json:"cname_record_name,omitempty"`
}

// Address returns the DNS name players connect to, or "" when the server has
// not been assigned one yet.
func (s *Server) Address() string {
	if s.CNAMERecordName == nil {
		return ""
	}
	return *s.CNAMERecordName
}

// ConsoleID is the identifier used in the console websocket path. Older
// subscriptions have no separate uid.
func (s *Server) ConsoleID() string {
	if s.UID != "" {
		return s.UID
	}
	return s.SubscriptionID
}

// ResourceLimits are the allocations enforced by the panel for a server.
type ResourceLimits struct {
	Memory  int `json:"memory"` // MiB
	CPU     int `json:"cpu"`    // percent of one core
	Disk    int `json:"disk"`   // MiB
	Swap    int `json:"swap"`
	IO      int `json:"io"`
	Backups int `json:"backups"`
}

// ServerSettings are the editable startup settings exposed by the panel.
type ServerSettings struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Version     string            `json:"version,omitempty"`
	Software    string            `json:"software,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// SFTPCredentials are returned to the browser with the password already
// decrypted.
type SFTPCredentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}
