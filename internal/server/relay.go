package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/services"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	relayRoute = "/sdk/events"

	wsReadBufferSize  = 4096
	wsWriteBufferSize = 1024
	maxMessageBytes   = 1 << 16

	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// Message types sent by the bridge page.
const (
	MessageReady              = "ready"
	MessageNotReady           = "not_ready"
	MessagePlayerStateChanged = "player_state_changed"
)

// sdkMessage is the envelope forwarded by the bridge page for every SDK listener callback.
type sdkMessage struct {
	Type     string          `json:"type"`
	DeviceID string          `json:"device_id,omitempty"`
	State    json.RawMessage `json:"state,omitempty"`
}

// sdkState mirrors the subset of the SDK's playback state the reconciler reads.
type sdkState struct {
	Paused   bool `json:"paused"`
	Position int  `json:"position"`
	Duration int  `json:"duration"`
	Context  struct {
		URI *string `json:"uri"`
	} `json:"context"`
	TrackWindow struct {
		CurrentTrack *sdkTrack `json:"current_track"`
	} `json:"track_window"`
}

type sdkTrack struct {
	ID         string `json:"id"`
	URI        string `json:"uri"`
	Name       string `json:"name"`
	DurationMs int    `json:"duration_ms"`
	Album      struct {
		Name string `json:"name"`
	} `json:"album"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

func (s sdkState) toEvent(now time.Time) models.SdkPlaybackEvent {
	ev := models.SdkPlaybackEvent{
		Paused:     s.Paused,
		PositionMs: s.Position,
		DurationMs: s.Duration,
		ReceivedAt: now,
	}
	if s.Context.URI != nil {
		ev.ContextURI = *s.Context.URI
	}
	if t := s.TrackWindow.CurrentTrack; t != nil {
		ev.Track = models.SDKTrack{
			ID:         models.SDKTrackID(t.ID),
			URI:        models.TrackURI(t.URI),
			Name:       t.Name,
			DurationMs: t.DurationMs,
			Album:      t.Album.Name,
		}
		for _, a := range t.Artists {
			ev.Track.Artists = append(ev.Track.Artists, a.Name)
		}
		if ev.DurationMs == 0 {
			ev.DurationMs = t.DurationMs
		}
	}
	return ev
}

// RelayOpts configures a [Relay].
type RelayOpts struct {
	// AllowedOrigins restricts websocket upgrades by Origin header. Empty allows any origin.
	AllowedOrigins []string
	// OnDeviceReady receives the SDK device id from every ready message.
	OnDeviceReady func(deviceID string)
	Logger        *log.Logger
	Now           func() time.Time
}

// Relay is the push channel: it accepts websocket connections from the bridge page and
// fans SDK state changes out to subscribers.
type Relay struct {
	upgrader websocket.Upgrader
	onDevice func(string)
	logger   *log.Logger
	now      func() time.Time

	mu     sync.RWMutex
	subs   map[int]func(models.SdkPlaybackEvent)
	nextID int
	conns  map[*websocket.Conn]struct{}
	closed bool
}

var (
	_ Handler              = (*Relay)(nil)
	_ services.PushChannel = (*Relay)(nil)
)

func NewRelay(opts RelayOpts) *Relay {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Relay{
		onDevice: opts.OnDeviceReady,
		logger:   shared.WithLogger(opts.Logger, "component", "relay"),
		now:      opts.Now,
		subs:     make(map[int]func(models.SdkPlaybackEvent)),
		conns:    make(map[*websocket.Conn]struct{}),
	}
	r.upgrader = websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return r
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		if slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}

func (r *Relay) Routes() []string {
	return []string{"GET " + relayRoute}
}

// Subscribe registers fn for every decoded state change.
func (r *Relay) Subscribe(fn func(models.SdkPlaybackEvent)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// Subscribers returns the number of registered listeners.
func (r *Relay) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Emit delivers ev to every subscriber on the calling goroutine.
func (r *Relay) Emit(ev models.SdkPlaybackEvent) {
	r.mu.RLock()
	fns := make([]func(models.SdkPlaybackEvent), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// HandleMessage decodes one bridge message and dispatches it.
func (r *Relay) HandleMessage(data []byte) error {
	var msg sdkMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	switch msg.Type {
	case MessageReady:
		r.logger.Info("sdk ready", "device", msg.DeviceID)
		if r.onDevice != nil && msg.DeviceID != "" {
			r.onDevice(msg.DeviceID)
		}
	case MessageNotReady:
		r.logger.Warn("sdk device went offline", "device", msg.DeviceID)
	case MessagePlayerStateChanged:
		// the SDK reports a null state when playback moves to another device
		if len(msg.State) == 0 || string(msg.State) == "null" {
			r.logger.Debug("sdk state cleared")
			return nil
		}
		var st sdkState
		if err := json.Unmarshal(msg.State, &st); err != nil {
			return fmt.Errorf("%w: state: %v", shared.ErrInvalidInput, err)
		}
		r.Emit(st.toEvent(r.now()))
	default:
		return fmt.Errorf("%w: unknown message type %q", shared.ErrInvalidInput, msg.Type)
	}
	return nil
}

// ServeHTTP upgrades the request and reads bridge messages until the page disconnects.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	if !r.track(conn) {
		conn.Close()
		return
	}
	defer r.untrack(conn)

	done := make(chan struct{})
	defer close(done)
	go r.ping(conn, done)

	conn.SetReadLimit(maxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	r.logger.Info("bridge connected", "remote", conn.RemoteAddr().String())
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.logger.Error("bridge connection lost", "err", err)
			}
			break
		}
		if err := r.HandleMessage(data); err != nil {
			r.logger.Warn("dropping bridge message", "err", err)
		}
	}
	r.logger.Info("bridge disconnected", "remote", conn.RemoteAddr().String())
}

func (r *Relay) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (r *Relay) track(conn *websocket.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.conns[conn] = struct{}{}
	return true
}

func (r *Relay) untrack(conn *websocket.Conn) {
	r.mu.Lock()
	delete(r.conns, conn)
	r.mu.Unlock()
	conn.Close()
}

// Connections returns the number of open bridge connections.
func (r *Relay) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close sends a close frame to every bridge connection and refuses new ones.
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	conns := make([]*websocket.Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.Close()
	}
}
