package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/team997coders/hatchtracker/internal/debug"
	"github.com/team997coders/hatchtracker/internal/logic/control"
	"github.com/team997coders/hatchtracker/internal/snapshot"
	"github.com/team997coders/hatchtracker/internal/telemetry"
)

const (
	// DefaultPollInterval is how often websocket clients are checked for
	// table changes.
	DefaultPollInterval = 50 * time.Millisecond

	maxBodyBytes      = 1 << 10
	wsWriteWait       = 2 * time.Second
	defaultSnapLimit  = 20
	maxSnapshotsLimit = 500
)

// TableView is the part of the telemetry table the web surface needs.
type TableView interface {
	Snapshot() (map[string]any, uint64)
	Put(key string, value any)
}

// SnapshotLister lists stored snapshots, newest first.
type SnapshotLister interface {
	Recent(ctx context.Context, limit int) ([]snapshot.Record, error)
}

// TelemetryMessage is the JSON body of GET /telemetry and of every websocket
// message.
type TelemetryMessage struct {
	Version uint64         `json:"version"`
	Values  map[string]any `json:"values"`
}

type putRequest struct {
	Value string `json:"value"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	logs      *LogHub
	table     TableView
	snapshots SnapshotLister
	staticFS  fs.FS

	pollInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewHandlers creates handlers. snapshots may be nil when snapshots are
// disabled; GET /snapshots then answers 503.
func NewHandlers(logs *LogHub, table TableView, snapshots SnapshotLister, staticFS fs.FS) *Handlers {
	return &Handlers{
		logs:         logs,
		table:        table,
		snapshots:    snapshots,
		staticFS:     staticFS,
		pollInterval: DefaultPollInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleTelemetry returns the whole table as JSON.
func (h *Handlers) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	values, version := h.table.Snapshot()
	writeJSON(w, http.StatusOK, TelemetryMessage{Version: version, Values: values})
}

// HandlePutKey handles PUT /table/{key}. Only the keys other robot programs
// are expected to write are accepted.
func (h *Handlers) HandlePutKey(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req putRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if err := ValidateInput(key, req.Value); err != nil {
		var forbidden *readOnlyKeyError
		if errors.As(err, &forbidden) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.table.Put(key, req.Value)
	debug.Info("Web: %s = %q", key, req.Value)
	w.WriteHeader(http.StatusNoContent)
}

type readOnlyKeyError struct{ key string }

func (e *readOnlyKeyError) Error() string {
	return fmt.Sprintf("key %q is not writable", e.key)
}

// ValidateInput checks a value written to one of the external input keys.
func ValidateInput(key, value string) error {
	switch key {
	case telemetry.KeyScoringDirection:
		if value != "Left" && value != "Right" {
			return fmt.Errorf("%s must be Left or Right, got %q", key, value)
		}
		return nil
	case telemetry.KeyStateOverride:
		s, err := control.ParseState(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if s != control.Discovering {
			return fmt.Errorf("%s only supports %s, got %q", key, control.Discovering, value)
		}
		return nil
	default:
		return &readOnlyKeyError{key: key}
	}
}

// HandleSnapshots lists recent snapshots. ?limit= caps the count.
func (h *Handlers) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		http.Error(w, "snapshots disabled", http.StatusServiceUnavailable)
		return
	}
	limit := defaultSnapLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxSnapshotsLimit {
			http.Error(w, fmt.Sprintf("limit must be between 1 and %d", maxSnapshotsLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := h.snapshots.Recent(r.Context(), limit)
	if err != nil {
		debug.Error(err)
		http.Error(w, "list snapshots failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.logs.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandleTelemetryWS upgrades to a websocket and pushes the table every time
// it changes. Client messages are read and discarded.
func (h *Handlers) HandleTelemetryWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Verbose("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var (
		sent    bool
		version uint64
	)
	push := func() error {
		values, v := h.table.Snapshot()
		if sent && v == version {
			return nil
		}
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return err
		}
		if err := conn.WriteJSON(TelemetryMessage{Version: v, Values: values}); err != nil {
			return err
		}
		sent, version = true, v
		return nil
	}

	if err := push(); err != nil {
		return
	}
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := push(); err != nil {
				debug.Verbose("websocket client dropped: %v", err)
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Verbose("write response: %v", err)
	}
}
