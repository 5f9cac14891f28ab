package testing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/playhead/internal/models"
)

// ErrFake is the default error returned by failing fakes.
var ErrFake = errors.New("fake failure")

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Playback is an in-memory remote playback source that records every call.
//
// When Gate is non-nil, FetchSnapshot blocks until a value is received from it or ctx ends.
type Playback struct {
	Gate chan struct{}

	mu          sync.Mutex
	snapshot    *models.PlaybackSnapshot
	snapshotErr error
	commandErr  error
	queue       []models.APITrack
	tracks      map[models.PlaylistID][]models.APITrack
	playlists   []models.Playlist
	calls       []string
	fetches     int
	queueCalls  int
	trackCalls  []models.PlaylistID
}

func NewPlayback() *Playback {
	return &Playback{tracks: make(map[models.PlaylistID][]models.APITrack)}
}

func (p *Playback) SetSnapshot(s *models.PlaybackSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = s
	p.snapshotErr = nil
}

func (p *Playback) SetSnapshotErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshotErr = err
}

func (p *Playback) SetCommandErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commandErr = err
}

func (p *Playback) SetQueue(q []models.APITrack) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = q
}

func (p *Playback) SetTracks(id models.PlaylistID, tracks []models.APITrack) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks[id] = tracks
}

func (p *Playback) SetPlaylists(playlists []models.Playlist) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playlists = playlists
}

// Calls returns the recorded commands, e.g. "pause", "seek:90000" or "context:pl1:spotify:track:t1".
func (p *Playback) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

func (p *Playback) Fetches() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

func (p *Playback) QueueCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueCalls
}

func (p *Playback) TrackCalls() []models.PlaylistID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.trackCalls)
}

func (p *Playback) FetchSnapshot(ctx context.Context) (*models.PlaybackSnapshot, error) {
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches++
	if p.snapshotErr != nil {
		return nil, p.snapshotErr
	}
	if p.snapshot == nil {
		return nil, nil
	}
	s := *p.snapshot
	return &s, nil
}

func (p *Playback) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return p.commandErr
}

func (p *Playback) Play(context.Context) error         { return p.record("play") }
func (p *Playback) Pause(context.Context) error        { return p.record("pause") }
func (p *Playback) SkipNext(context.Context) error     { return p.record("next") }
func (p *Playback) SkipPrevious(context.Context) error { return p.record("previous") }

func (p *Playback) Seek(_ context.Context, positionMs int) error {
	return p.record(fmt.Sprintf("seek:%d", positionMs))
}

func (p *Playback) SetVolume(_ context.Context, percent int) error {
	return p.record(fmt.Sprintf("volume:%d", percent))
}

func (p *Playback) PlayContext(_ context.Context, playlistID models.PlaylistID, offset models.TrackURI) error {
	return p.record(fmt.Sprintf("context:%s:%s", playlistID, offset))
}

func (p *Playback) FetchQueue(context.Context) ([]models.APITrack, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queueCalls++
	return slices.Clone(p.queue), nil
}

func (p *Playback) FetchTracks(_ context.Context, id models.PlaylistID) ([]models.APITrack, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trackCalls = append(p.trackCalls, id)
	return slices.Clone(p.tracks[id]), nil
}

func (p *Playback) FetchPlaylists(context.Context) ([]models.Playlist, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.playlists), nil
}

// PositionStore is an in-memory last-write-wins store that records every Put.
type PositionStore struct {
	mu        sync.Mutex
	positions map[string]models.Position
	puts      []models.Position
	putErr    error
	getErr    error
	now       func() time.Time
}

func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[string]models.Position), now: time.Now}
}

func storeKey(userID string, playlistID models.PlaylistID) string {
	return userID + "\x00" + string(playlistID)
}

func (s *PositionStore) SetPutErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

func (s *PositionStore) SetGetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

// Puts returns every Put call in arrival order, including failed ones.
func (s *PositionStore) Puts() []models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.puts)
}

func (s *PositionStore) Get(_ context.Context, userID string, playlistID models.PlaylistID) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	pos, ok := s.positions[storeKey(userID, playlistID)]
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

func (s *PositionStore) Put(_ context.Context, userID string, playlistID models.PlaylistID, trackID models.APITrackID) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pos := models.Position{UserID: userID, PlaylistID: playlistID, TrackID: trackID, CreatedAt: now, UpdatedAt: now}
	s.puts = append(s.puts, pos)
	if s.putErr != nil {
		return nil, s.putErr
	}

	key := storeKey(userID, playlistID)
	if existing, ok := s.positions[key]; ok {
		pos.ID = existing.ID
		pos.CreatedAt = existing.CreatedAt
	} else {
		pos.ID = fmt.Sprintf("pos-%d", len(s.positions)+1)
	}
	s.positions[key] = pos
	return &pos, nil
}

func (s *PositionStore) Delete(_ context.Context, userID string, playlistID models.PlaylistID) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(userID, playlistID)
	pos, ok := s.positions[key]
	if !ok {
		return []models.Position{}, nil
	}
	delete(s.positions, key)
	return []models.Position{pos}, nil
}

func (s *PositionStore) List(_ context.Context, userID string) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Position
	for _, p := range s.positions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b models.Position) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}

// Tokens is a static token provider whose refresh can be made to fail.
type Tokens struct {
	mu         sync.Mutex
	access     string
	refreshed  string
	refreshErr error
	refreshes  int
}

func NewTokens(access, refreshed string) *Tokens {
	return &Tokens{access: access, refreshed: refreshed}
}

func (t *Tokens) SetRefreshErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refreshErr = err
}

func (t *Tokens) Refreshes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshes
}

func (t *Tokens) Token(context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.access, nil
}

func (t *Tokens) Refresh(context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refreshes++
	if t.refreshErr != nil {
		return "", t.refreshErr
	}
	t.access = t.refreshed
	return t.access, nil
}

// PushChannel fans emitted events out to current subscribers.
type PushChannel struct {
	mu   sync.Mutex
	subs map[int]func(models.SdkPlaybackEvent)
	next int
}

func NewPushChannel() *PushChannel {
	return &PushChannel{subs: make(map[int]func(models.SdkPlaybackEvent))}
}

func (c *PushChannel) Subscribe(fn func(models.SdkPlaybackEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *PushChannel) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *PushChannel) Emit(ev models.SdkPlaybackEvent) {
	c.mu.Lock()
	fns := make([]func(models.SdkPlaybackEvent), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
