package console

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Events of the console protocol.
const (
	EventAuthSuccess   = "auth success"
	EventConsoleOutput = "console output"
	EventStatus        = "status"
	EventStats         = "stats"
	EventTokenExpiring = "token expiring"
	EventTokenExpired  = "token expired"
	EventInstallOutput = "install output"
	EventDaemonMessage = "daemon message"
	EventDaemonError   = "daemon error"

	EventSendLogs    = "send logs"
	EventSendCommand = "send command"
	EventSetState    = "set state"
)

const (
	StatusOffline = "offline"
	StatusRunning = "running"

	zeroUptime = "0h 0m 0s"
)

// Power signals accepted by "set state".
var powerSignals = map[string]bool{
	"start":   true,
	"stop":    true,
	"restart": true,
	"kill":    true,
}

// Message is one frame of the console protocol.
type Message struct {
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args,omitempty"`
}

type outbound struct {
	Event string        `json:"event"`
	Args  []interface{} `json:"args"`
}

func parseMessage(data []byte) (*Message, bool) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
		return nil, false
	}
	return &msg, true
}

// firstArg returns args[0] as a string. Non-string arguments are returned as
// their raw JSON text.
func (m *Message) firstArg() string {
	if len(m.Args) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Args[0], &s); err == nil {
		return s
	}
	return string(m.Args[0])
}

func encode(event string, args ...interface{}) ([]byte, error) {
	if args == nil {
		args = []interface{}{}
	}
	return json.Marshal(outbound{Event: event, Args: args})
}

// formatUptime renders seconds as "Xh Ym Zs".
func formatUptime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dh %dm %ds", seconds/3600, (seconds%3600)/60, seconds%60)
}

func powerLine(signal string) string {
	return "[POWER] " + strings.ToUpper(signal)
}
