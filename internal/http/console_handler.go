package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wenwu/saas-platform/minecraft-portal/internal/console"
)

const consoleWriteTimeout = 10 * time.Second

// Frames the browser sends over the console socket.
const (
	frameCommand    = "command"
	framePower      = "power"
	frameConnect    = "connect"
	frameDisconnect = "disconnect"
)

type consoleFrame struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
	Signal  string `json:"signal,omitempty"`
}

// consoleEvent is pushed to the browser: a full snapshot after every change,
// or an error for a rejected frame.
type consoleEvent struct {
	Type     string            `json:"type"`
	Snapshot *console.Snapshot `json:"snapshot,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// consoleBridge serialises writes to the browser socket.
type consoleBridge struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (b *consoleBridge) send(ev consoleEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.conn.SetWriteDeadline(time.Now().Add(consoleWriteTimeout))
	_ = b.conn.WriteJSON(ev)
}

func (b *consoleBridge) sendError(msg string) {
	b.send(consoleEvent{Type: "error", Error: msg})
}

func (h *Handler) upgrader() *websocket.Upgrader {
	allowed := make(map[string]bool, len(h.opts.AllowedOrigins))
	for _, o := range h.opts.AllowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

// Console bridges the browser to the server's console. Each browser socket
// owns one console session, torn down when the browser goes away.
func (h *Handler) Console(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)
	server, err := h.dashboard.FindServer(ctx, c.Param("subscription_id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	browser, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("console upgrade failed")
		return
	}
	defer browser.Close()
	bridge := &consoleBridge{conn: browser}

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-h.done:
			browser.Close()
		case <-finished:
		}
	}()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.GetString("token"))
	session := console.NewSession(console.Options{
		Host:            h.opts.ConsoleHost,
		UserID:          userID,
		SubscriptionUID: server.ConsoleID(),
		MaxLines:        h.opts.ConsoleMaxLines,
		Header:          header,
		Dial:            h.opts.ConsoleDial,
	}, h.logger)
	session.OnChange(func(snap console.Snapshot) {
		bridge.send(consoleEvent{Type: "snapshot", Snapshot: &snap})
	})
	defer session.Disconnect()

	// A failed dial is reported through the snapshot's error field.
	_ = session.Connect(ctx)

	for {
		_, data, err := browser.ReadMessage()
		if err != nil {
			return
		}
		var frame consoleFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			bridge.sendError("invalid frame")
			continue
		}

		switch frame.Type {
		case frameCommand:
			err = session.SendCommand(frame.Command)
		case framePower:
			err = session.SendPowerSignal(frame.Signal)
		case frameConnect:
			err = session.Connect(ctx)
		case frameDisconnect:
			session.Disconnect()
		default:
			err = fmt.Errorf("unknown frame type %q", frame.Type)
		}
		if err != nil {
			bridge.sendError(err.Error())
		}
	}
}
