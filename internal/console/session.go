package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/models"
)

// DefaultMaxLines bounds the log buffer when no limit is configured.
const DefaultMaxLines = 1000

var (
	ErrNotAuthenticated = errors.New("user not authenticated")
	ErrNotConnected     = errors.New("console not connected")
	ErrUnknownSignal    = errors.New("unknown power signal")
)

// State is the connection state of a Session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Conn is the subset of *websocket.Conn a session uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens the console socket.
type DialFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

// GorillaDial dials with websocket.DefaultDialer.
func GorillaDial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// Options identify the console a session attaches to.
type Options struct {
	Host            string // ws:// or wss:// base of the console proxy
	UserID          string
	SubscriptionUID string
	MaxLines        int
	Header          http.Header
	Dial            DialFunc
}

// Snapshot is the observable state of a session.
type Snapshot struct {
	State        State                `json:"state"`
	Connected    bool                 `json:"connected"`
	Logs         []string             `json:"logs"`
	Stats        *models.ConsoleStats `json:"stats"`
	ServerStatus string               `json:"server_status"`
	Uptime       string               `json:"uptime"`
	Error        string               `json:"error,omitempty"`
}

// Session is one console connection for one subscription. At most one socket
// is open per session; there is no automatic reconnect.
type Session struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
	logs   *logBuffer

	mu           sync.Mutex
	state        State
	conn         Conn
	stats        *models.ConsoleStats
	serverStatus string
	uptime       string
	startedAt    *time.Time
	lastErr      string
	stopUptime   chan struct{}
	onChange     func(Snapshot)

	writeMu sync.Mutex
}

// NewSession creates a disconnected session.
func NewSession(opts Options, logger zerolog.Logger) *Session {
	if opts.Dial == nil {
		opts.Dial = GorillaDial
	}
	return &Session{
		opts: opts,
		logger: logger.With().
			Str("component", "console").
			Str("subscription_uid", opts.SubscriptionUID).
			Logger(),
		now:          time.Now,
		logs:         newLogBuffer(opts.MaxLines),
		state:        StateDisconnected,
		serverStatus: StatusOffline,
		uptime:       zeroUptime,
	}
}

// URL is the console socket address for this session.
func (s *Session) URL() string {
	return fmt.Sprintf("%s/ws/user/%s/subscription/%s",
		strings.TrimRight(s.opts.Host, "/"), s.opts.UserID, s.opts.SubscriptionUID)
}

// OnChange registers a callback fired with a snapshot after every state
// change. The callback runs outside the session lock.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Connect opens the socket. Calling it while connecting or connected does
// nothing.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.opts.UserID == "" {
		s.lastErr = "User not authenticated"
		s.mu.Unlock()
		s.notify()
		return ErrNotAuthenticated
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()

	conn, err := s.opts.Dial(ctx, s.URL(), s.opts.Header)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.lastErr = "Failed to connect to console"
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("console dial failed")
		s.notify()
		return fmt.Errorf("connect console: %w", err)
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		// Disconnect ran while dialing.
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()
	s.logger.Info().Msg("console connected")
	s.notify()

	go s.readLoop(conn)
	return nil
}

// Disconnect closes the socket with a normal closure and resets the session.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.state = StateDisconnected
	s.stats = nil
	s.serverStatus = StatusOffline
	s.uptime = zeroUptime
	s.startedAt = nil
	s.lastErr = ""
	s.stopUptimeLocked()
	s.logs.Reset()
	s.mu.Unlock()

	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		conn.Close()
	}
	s.notify()
}

// SendCommand sends a console command and echoes it locally. Blank commands
// are ignored.
func (s *Session) SendCommand(cmd string) error {
	if strings.TrimSpace(cmd) == "" {
		return nil
	}
	if err := s.send(EventSendCommand, cmd); err != nil {
		return err
	}
	s.logs.Append("> " + cmd)
	s.notify()
	return nil
}

// SendPowerSignal asks the daemon to start, stop, restart or kill the server.
func (s *Session) SendPowerSignal(signal string) error {
	signal = strings.ToLower(strings.TrimSpace(signal))
	if !powerSignals[signal] {
		return fmt.Errorf("%w: %q", ErrUnknownSignal, signal)
	}
	if err := s.send(EventSetState, signal); err != nil {
		return err
	}
	s.logs.Append(powerLine(signal))
	s.notify()
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:        s.state,
		Connected:    s.state == StateConnected,
		Logs:         s.logs.Lines(),
		ServerStatus: s.serverStatus,
		Uptime:       s.uptime,
		Error:        s.lastErr,
	}
	if s.stats != nil {
		st := *s.stats
		snap.Stats = &st
	}
	return snap
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onChange
	snap := s.snapshotLocked()
	s.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (s *Session) send(event string, args ...interface{}) error {
	s.mu.Lock()
	conn := s.conn
	connected := s.state == StateConnected
	s.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := encode(event, args...)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

func (s *Session) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(conn, err)
			return
		}
		s.handleMessage(conn, data)
	}
}

// handleClose runs when the read side of conn fails. A socket already
// replaced or reset by Disconnect is ignored.
func (s *Session) handleClose(conn Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = StateDisconnected
	s.stopUptimeLocked()

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code != websocket.CloseNormalClosure {
			reason := closeErr.Text
			if reason == "" {
				reason = fmt.Sprintf("code %d", closeErr.Code)
			}
			s.lastErr = "Connection closed: " + reason
		}
	} else {
		s.lastErr = "Connection closed: " + err.Error()
	}
	s.mu.Unlock()

	conn.Close()
	s.logger.Info().Err(err).Msg("console connection closed")
	s.notify()
}

func (s *Session) handleMessage(conn Conn, data []byte) {
	msg, ok := parseMessage(data)
	if !ok {
		s.apply(conn, func() { s.logs.Append(string(data)) })
		return
	}

	switch msg.Event {
	case EventAuthSuccess:
		if !s.owns(conn) {
			return
		}
		if err := s.send(EventSendLogs, nil); err != nil {
			s.logger.Warn().Err(err).Msg("request logs failed")
		}
	case EventConsoleOutput, EventInstallOutput, EventDaemonMessage:
		line := msg.firstArg()
		s.apply(conn, func() { s.logs.Append(line) })
	case EventStatus:
		status := msg.firstArg()
		s.apply(conn, func() { s.setServerStatusLocked(status) })
	case EventStats:
		var stats models.ConsoleStats
		if err := json.Unmarshal([]byte(msg.firstArg()), &stats); err != nil {
			s.logger.Debug().Err(err).Msg("bad stats payload")
			return
		}
		s.apply(conn, func() { s.stats = &stats })
	case EventTokenExpiring:
		s.logger.Debug().Msg("console token expiring")
	case EventTokenExpired:
		s.apply(conn, func() { s.lastErr = "Session token expired" })
	case EventDaemonError:
		reason := msg.firstArg()
		s.apply(conn, func() { s.lastErr = reason })
	default:
		s.logger.Debug().Str("event", msg.Event).Msg("ignoring console event")
	}
}

// owns reports whether conn is still the session's live socket.
func (s *Session) owns(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == conn
}

// apply runs fn under the session lock and notifies, unless conn was
// replaced or reset by Disconnect after the frame was read.
func (s *Session) apply(conn Conn, fn func()) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	fn()
	s.mu.Unlock()
	s.notify()
}

// setServerStatusLocked drives the uptime clock: running starts it, offline
// resets it and anything else freezes it. The ticker only starts on a
// connected session.
func (s *Session) setServerStatusLocked(status string) {
	s.serverStatus = status

	switch status {
	case StatusRunning:
		if s.startedAt == nil {
			now := s.now()
			s.startedAt = &now
		}
		s.refreshUptimeLocked()
		if s.stopUptime == nil && s.state == StateConnected {
			stop := make(chan struct{})
			s.stopUptime = stop
			go s.uptimeLoop(stop)
		}
	case StatusOffline:
		s.stopUptimeLocked()
		s.startedAt = nil
		s.uptime = zeroUptime
	default:
		s.stopUptimeLocked()
	}
}

func (s *Session) uptimeLoop(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-stop:
			return
		}
	}
}

func (s *Session) tick() {
	s.mu.Lock()
	s.refreshUptimeLocked()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) refreshUptimeLocked() {
	if s.startedAt == nil {
		return
	}
	s.uptime = formatUptime(int64(s.now().Sub(*s.startedAt) / time.Second))
}

func (s *Session) stopUptimeLocked() {
	if s.stopUptime != nil {
		close(s.stopUptime)
		s.stopUptime = nil
	}
}
