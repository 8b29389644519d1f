package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// MCStatusClient queries the public Minecraft status API (api.mcstatus.io).
// It is read-only and unauthenticated.
type MCStatusClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewMCStatusClient creates a status API client. Every lookup is bounded by
// timeout regardless of the caller's context.
func NewMCStatusClient(baseURL string, timeout time.Duration) *MCStatusClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MCStatusClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type mcStatusResponse struct {
	Online  bool `json:"online"`
	Version *struct {
		NameClean string `json:"name_clean"`
	} `json:"version"`
	Players *struct {
		Online int `json:"online"`
		Max    int `json:"max"`
		List   []struct {
			NameClean string `json:"name_clean"`
		} `json:"list"`
	} `json:"players"`
	MOTD *struct {
		Clean string `json:"clean"`
	} `json:"motd"`
}

// Check returns the Java edition status of address.
func (c *MCStatusClient) Check(ctx context.Context, address string) (*models.MinecraftStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := c.baseURL + "/v2/status/java/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "mcstatus lookup failed"}
	}

	var raw mcStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	status := &models.MinecraftStatus{Online: raw.Online, PlayerList: []string{}}
	if raw.Version != nil {
		status.Version = raw.Version.NameClean
	}
	if raw.Players != nil {
		status.PlayersOnline = raw.Players.Online
		status.PlayersMax = raw.Players.Max
		for _, p := range raw.Players.List {
			status.PlayerList = append(status.PlayerList, p.NameClean)
		}
	}
	if raw.MOTD != nil {
		status.MOTD = raw.MOTD.Clean
	}
	return status, nil
}
