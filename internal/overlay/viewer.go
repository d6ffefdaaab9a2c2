package overlay

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"screensolve/internal/host"
	"screensolve/internal/logging"
)

//go:embed viewer.html
var viewerPage []byte

const (
	viewerWriteWait = 10 * time.Second
	viewerPongWait  = 60 * time.Second
	viewerPingEvery = (viewerPongWait * 9) / 10
	viewerQueue     = 16
)

var viewerUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || strings.HasSuffix(origin, "://"+r.Host)
	},
}

// DismissFunc performs the explicit dismissal user action for a surface.
type DismissFunc func(ctx context.Context, surface host.SurfaceID) error

type viewerInbound struct {
	Type    string `json:"type"`
	Surface string `json:"surface"`
}

// Viewer streams frames to browser clients over websockets and accepts
// dismissals from them.
type Viewer struct {
	logger  *slog.Logger
	dismiss DismissFunc

	mu      sync.Mutex
	frames  map[string]Frame
	clients map[chan Frame]struct{}
}

// NewViewer builds a viewer. dismiss may be nil, in which case dismissal
// requests are rejected.
func NewViewer(logger *slog.Logger, dismiss DismissFunc) *Viewer {
	return &Viewer{
		logger:  logging.NewComponentLogger(logger, "overlay-viewer"),
		dismiss: dismiss,
		frames:  make(map[string]Frame),
		clients: make(map[chan Frame]struct{}),
	}
}

// Present records f as the latest frame for its surface and fans it out.
// Slow clients drop their oldest queued frame.
func (v *Viewer) Present(_ context.Context, f Frame) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if f.State == PhaseAbsent.String() {
		delete(v.frames, f.Surface)
	} else {
		v.frames[f.Surface] = f
	}
	for ch := range v.clients {
		push(ch, f)
	}
	return nil
}

// Frames returns the visible frames ordered by surface.
func (v *Viewer) Frames() []Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Frame, 0, len(v.frames))
	for _, f := range v.frames {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Surface < out[j].Surface })
	return out
}

// Clients reports the number of connected websocket clients.
func (v *Viewer) Clients() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.clients)
}

// Handler serves the overlay page, websocket stream, frame snapshot and
// dismiss endpoint.
func (v *Viewer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /overlay", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(viewerPage)
	})
	mux.HandleFunc("GET /overlay/frames", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v.Frames())
	})
	mux.HandleFunc("POST /overlay/dismiss", func(w http.ResponseWriter, r *http.Request) {
		surface := strings.TrimSpace(r.URL.Query().Get("surface"))
		if surface == "" {
			http.Error(w, "surface is required", http.StatusBadRequest)
			return
		}
		if err := v.doDismiss(r.Context(), host.SurfaceID(surface)); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /overlay/ws", v.serveWS)
	return mux
}

func (v *Viewer) doDismiss(ctx context.Context, surface host.SurfaceID) error {
	if v.dismiss == nil {
		return host.ErrNoReceiver
	}
	return v.dismiss(ctx, surface)
}

func (v *Viewer) subscribe() (chan Frame, []Frame) {
	ch := make(chan Frame, viewerQueue)
	v.mu.Lock()
	v.clients[ch] = struct{}{}
	v.mu.Unlock()
	return ch, v.Frames()
}

func (v *Viewer) unsubscribe(ch chan Frame) {
	v.mu.Lock()
	delete(v.clients, ch)
	v.mu.Unlock()
}

func (v *Viewer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := viewerUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames, initial := v.subscribe()
	defer v.unsubscribe(frames)

	if err := conn.SetReadDeadline(time.Now().Add(viewerPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(viewerPongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		ticker := time.NewTicker(viewerPingEvery)
		defer ticker.Stop()

		write := func(f Frame) error {
			if err := conn.SetWriteDeadline(time.Now().Add(viewerWriteWait)); err != nil {
				return err
			}
			return conn.WriteJSON(f)
		}
		for _, f := range initial {
			if write(f) != nil {
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case f := <-frames:
				if write(f) != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(viewerWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		var in viewerInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "dismiss":
			if err := v.doDismiss(ctx, host.SurfaceID(strings.TrimSpace(in.Surface))); err != nil {
				v.logger.Debug("viewer dismiss failed",
					logging.String(logging.FieldSurface, in.Surface),
					logging.Error(err),
				)
			}
		case "ping":
		default:
			v.logger.Debug("viewer sent unsupported message", logging.String("type", in.Type))
		}
	}
}

func push(ch chan Frame, f Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}
