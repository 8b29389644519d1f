package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrBlockedAddress = errors.New("address resolves to a non-public IP")
)

// Pinger checks whether a machine answers HTTP at all. Any response, whatever
// its status code, counts as reachable.
type Pinger struct {
	timeout    time.Duration
	httpClient *http.Client
}

// NewPinger creates a pinger. Redirects are not followed and connections to
// loopback, private or link-local IPs are refused at dial time.
func NewPinger(timeout time.Duration) *Pinger {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout, Control: checkDialAddress}
	return &Pinger{
		timeout: timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext:       dialer.DialContext,
				DisableKeepAlives: true,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ValidateAddress accepts a bare DNS hostname only: no scheme, port, path or
// userinfo, and no IP literal.
func ValidateAddress(address string) error {
	if address == "" || len(address) > 253 {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if strings.ContainsAny(address, ":/@?#[] \t\\%") {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if net.ParseIP(address) != nil {
		return fmt.Errorf("%w: IP literal %q", ErrInvalidAddress, address)
	}
	host := strings.ToLower(strings.TrimSuffix(address, "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
			}
		}
	}
	return nil
}

// publicIP reports whether ip is routable on the public internet.
func publicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}

// checkDialAddress runs after DNS resolution, so a hostname pointing at an
// internal IP is refused as well.
func checkDialAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || !publicIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	return nil
}

// Ping reports whether http://{address} answered.
func (p *Pinger) Ping(ctx context.Context, address string) (bool, error) {
	address = strings.TrimSpace(address)
	if err := ValidateAddress(address); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+address, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedAddress) {
			return false, err
		}
		return false, nil
	}
	resp.Body.Close()
	return true, nil
}
