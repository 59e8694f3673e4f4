package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// logBuffer is the per-client backlog. A client that falls further behind
// misses lines.
const logBuffer = 64

// LogEvent is one log line as sent to SSE clients.
type LogEvent struct {
	Time  string `json:"t"`
	Level string `json:"l,omitempty"`
	Msg   string `json:"msg"`
}

// LogHub fans log lines out to every connected SSE client.
type LogHub struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewLogHub returns a hub with no clients.
func NewLogHub() *LogHub {
	return &LogHub{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel of JSON-encoded LogEvents and the function
// that detaches it. The caller must call the function when the client goes.
func (b *LogHub) Subscribe() (<-chan string, func()) {
	ch := make(chan string, logBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of subscribed clients.
func (b *LogHub) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends msg to every client without blocking.
func (b *LogHub) Broadcast(level, msg string) {
	evt := LogEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// consoleLevels maps zerolog console level tags to level names.
var consoleLevels = map[string]string{
	"TRC": "trace",
	"DBG": "debug",
	"INF": "info",
	"WRN": "warn",
	"ERR": "error",
	"FTL": "fatal",
	"PNC": "panic",
}

// LogWriter returns an io.Writer that broadcasts every line written to it.
// Lines in zerolog console format keep their level.
func LogWriter(b *LogHub) *logWriter {
	return &logWriter{b: b}
}

type logWriter struct {
	b *LogHub
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		level, msg := splitConsoleLine(line)
		w.b.Broadcast(level, msg)
	}
	return len(p), nil
}

// splitConsoleLine strips the "15:04:05.000000 INF " prefix zerolog's
// console writer puts in front of every message.
func splitConsoleLine(line string) (level, msg string) {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) == 3 {
		if lvl, ok := consoleLevels[fields[1]]; ok {
			return lvl, fields[2]
		}
	}
	return "info", line
}
