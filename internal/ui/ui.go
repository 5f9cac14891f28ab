package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/progress"
	"github.com/desertthunder/playhead/internal/services"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/desertthunder/playhead/internal/tasks"
)

const (
	defaultFrameInterval = 100 * time.Millisecond
	seekStep             = 5 * time.Second
	volumeStep           = 10
	barIndent            = 2
	defaultBarWidth      = 40
)

// ViewState is the screen currently shown.
type ViewState int

const (
	NowPlayingView ViewState = iota
	TracksView
	QueueView
	PlaylistsView
)

// Player is the reconciled playback session driven by the TUI.
type Player interface {
	View() models.MergedPlaybackView
	Subscribe() (<-chan models.MergedPlaybackView, func())
	TogglePlay(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	SkipNext(ctx context.Context) error
	SkipPrevious(ctx context.Context) error
	SetVolume(ctx context.Context, percent int) error
	UserID() string
}

// Resumer starts a playlist at its saved position.
type Resumer interface {
	Resume(ctx context.Context, progress chan<- tasks.ProgressUpdate, userID string, playlistID models.PlaylistID) (*tasks.ResumeResult, error)
}

type Options struct {
	Player Player
	// Starter plays a track of the current playlist from the tracks screen. Optional.
	Starter services.ContextPlayer
	// Playlists and Resumer back the playlists screen. Both optional.
	Playlists     services.PlaylistLister
	Resumer       Resumer
	FrameInterval time.Duration
	Clock         progress.Clock
	Logger        *log.Logger
}

// baseline is the part of a view that positions the progress bar.
type baseline struct {
	positionMs int
	durationMs int
	paused     bool
	at         time.Time
}

// Model is the now playing screen.
type Model struct {
	ctx       context.Context
	player    Player
	starter   services.ContextPlayer
	playlists services.PlaylistLister
	resumer   Resumer
	interp    *progress.Interpolator
	logger    *log.Logger

	updates     <-chan models.MergedPlaybackView
	unsubscribe func()
	current     models.MergedPlaybackView
	synced      baseline

	view         ViewState
	trackList    list.Model
	queueList    list.Model
	playlistList list.Model
	library      []models.Playlist
	listKey      string
	status       string
	dragging     bool
	frame        time.Duration
	width        int
	height       int
	help         help.Model
	keys         keyMap
}

func NewModel(ctx context.Context, opts Options) *Model {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = defaultFrameInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	updates, unsubscribe := opts.Player.Subscribe()
	m := &Model{
		ctx:          ctx,
		player:       opts.Player,
		starter:      opts.Starter,
		playlists:    opts.Playlists,
		resumer:      opts.Resumer,
		logger:       shared.WithLogger(opts.Logger, "component", "ui"),
		updates:      updates,
		unsubscribe:  unsubscribe,
		frame:        opts.FrameInterval,
		help:         help.New(),
		keys:         newKeyMap(),
		trackList:    newList("Tracks"),
		queueList:    newList("Up Next"),
		playlistList: newList("Playlists"),
	}
	m.interp = progress.New(progress.Options{Seeker: opts.Player, Clock: opts.Clock, Logger: opts.Logger})
	return m
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// Init starts listening for views and schedules the first frame.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForView(), m.nextFrame())
}

// Close stops the view subscription and waits for pending seeks.
func (m *Model) Close() {
	m.unsubscribe()
	m.interp.Close()
}

// Progress exposes the interpolator driving the bar.
func (m *Model) Progress() *progress.Interpolator {
	return m.interp
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trackList.SetSize(msg.Width-4, msg.Height-4)
		m.queueList.SetSize(msg.Width-4, msg.Height-4)
		m.playlistList.SetSize(msg.Width-4, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgViewUpdated:
		m.applyView(msg.data.(models.MergedPlaybackView))
		return m, m.waitForView()

	case MsgViewClosed:
		m.updates = nil
		return m, nil

	case MsgFrame:
		m.interp.Tick()
		return m, m.nextFrame()

	case MsgCommandDone:
		res := msg.data.(commandResult)
		if res.err != nil {
			m.logger.Error("command failed", "op", res.op, "err", res.err)
			m.status = fmt.Sprintf("%s failed: %v", res.op, res.err)
		} else {
			m.status = ""
		}
		return m, nil

	case MsgPlaylistsLoaded:
		res := msg.data.(playlistsResult)
		if res.err != nil {
			m.logger.Error("failed to load playlists", "err", res.err)
			m.status = fmt.Sprintf("playlists failed: %v", res.err)
			return m, nil
		}
		m.library = res.playlists
		m.playlistList.SetItems(playlistItems(m.library, m.current.PlaylistID))
		return m, nil
	}
	return m, nil
}

// applyView moves the bar only when the view carries a new authoritative position.
// Views published for queue or track refreshes keep the animated position.
func (m *Model) applyView(v models.MergedPlaybackView) {
	m.current = v
	next := baseline{positionMs: v.PositionMs, durationMs: v.DurationMs, paused: v.Paused, at: v.UpdatedAt}

	switch {
	case next.positionMs != m.synced.positionMs || !next.at.Equal(m.synced.at) || next.durationMs != m.synced.durationMs:
		m.interp.Update(v.PositionMs, v.DurationMs, v.Paused)
	case next.paused != m.synced.paused:
		m.interp.SetPaused(v.Paused)
	}
	m.synced = next
	m.refreshLists()
}

func (m *Model) refreshLists() {
	current := currentURI(m.current)
	var b strings.Builder
	b.WriteString(string(m.current.PlaylistID))
	b.WriteString(string(current))
	fmt.Fprintf(&b, ":%d:%d", len(m.current.Tracks), len(m.current.Queue))
	for _, t := range m.current.Queue {
		b.WriteString(string(t.URI))
	}
	if b.String() == m.listKey {
		return
	}
	m.listKey = b.String()
	m.trackList.SetItems(trackItems(m.current.Tracks, current))
	m.queueList.SetItems(trackItems(m.current.Queue, ""))
	if m.library != nil {
		m.playlistList.SetItems(playlistItems(m.library, m.current.PlaylistID))
	}
}

// currentURI prefers the pulled track and falls back to the pushed one.
func currentURI(v models.MergedPlaybackView) models.TrackURI {
	switch {
	case v.Track != nil:
		return v.Track.URI
	case v.SDKTrack != nil:
		return v.SDKTrack.URI
	}
	return ""
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.view != NowPlayingView && m.activeList().FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		return m, m.command("toggle", m.player.TogglePlay)
	case key.Matches(msg, m.keys.next):
		return m, m.command("next", m.player.SkipNext)
	case key.Matches(msg, m.keys.prev):
		return m, m.command("previous", m.player.SkipPrevious)
	case key.Matches(msg, m.keys.volUp):
		return m, m.volume(volumeStep)
	case key.Matches(msg, m.keys.volDown):
		return m, m.volume(-volumeStep)
	case key.Matches(msg, m.keys.tracks):
		m.view = TracksView
		return m, nil
	case key.Matches(msg, m.keys.queue):
		m.view = QueueView
		return m, nil
	case key.Matches(msg, m.keys.library):
		m.view = PlaylistsView
		return m, m.loadPlaylists()
	case key.Matches(msg, m.keys.back):
		m.view = NowPlayingView
		return m, nil
	}

	if m.view == NowPlayingView {
		switch {
		case key.Matches(msg, m.keys.forward):
			m.interp.SeekBy(seekStep)
		case key.Matches(msg, m.keys.backward):
			m.interp.SeekBy(-seekStep)
		}
		return m, nil
	}

	if m.view == TracksView && key.Matches(msg, m.keys.enter) {
		if item, ok := m.trackList.SelectedItem().(trackItem); ok {
			return m, m.startTrack(item.track)
		}
		return m, nil
	}
	if m.view == PlaylistsView && key.Matches(msg, m.keys.enter) {
		if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.resume(item.playlist)
		}
		return m, nil
	}
	return m.updateLists(msg)
}

// handleMouse maps presses on the bar to drag and click seeks.
func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.view != NowPlayingView {
		return m.updateLists(msg)
	}

	width := m.barWidth()
	fraction := progress.FractionAt(float64(msg.X-barIndent), float64(width))

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || msg.Y != m.barRow() {
			return m, nil
		}
		if msg.X < barIndent || msg.X >= barIndent+width {
			return m, nil
		}
		m.dragging = true
		m.interp.BeginDrag(fraction)
	case tea.MouseActionMotion:
		if m.dragging {
			m.interp.DragTo(fraction)
		}
	case tea.MouseActionRelease:
		if m.dragging {
			m.dragging = false
			m.interp.DragTo(fraction)
			m.interp.EndDrag()
		}
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case TracksView:
		m.trackList, cmd = m.trackList.Update(msg)
	case QueueView:
		m.queueList, cmd = m.queueList.Update(msg)
	case PlaylistsView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	}
	return m, cmd
}

func (m *Model) activeList() *list.Model {
	switch m.view {
	case QueueView:
		return &m.queueList
	case PlaylistsView:
		return &m.playlistList
	}
	return &m.trackList
}

func (m *Model) command(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg(op, fn(m.ctx))
	}
}

func (m *Model) volume(delta int) tea.Cmd {
	target := min(max(m.current.Volume+delta, 0), 100)
	return m.command("volume", func(ctx context.Context) error {
		return m.player.SetVolume(ctx, target)
	})
}

func (m *Model) startTrack(track models.APITrack) tea.Cmd {
	if m.starter == nil || m.current.PlaylistID == "" {
		return nil
	}
	playlistID, uri := m.current.PlaylistID, track.URI
	m.view = NowPlayingView
	return m.command("play track", func(ctx context.Context) error {
		return m.starter.PlayContext(ctx, playlistID, uri)
	})
}

func (m *Model) loadPlaylists() tea.Cmd {
	if m.playlists == nil {
		return nil
	}
	return func() tea.Msg {
		playlists, err := m.playlists.FetchPlaylists(m.ctx)
		return playlistsLoadedMsg(playlists, err)
	}
}

// resume starts the playlist at its saved position and returns to the now playing screen.
func (m *Model) resume(p models.Playlist) tea.Cmd {
	if m.resumer == nil {
		return nil
	}
	userID := m.player.UserID()
	m.view = NowPlayingView
	return m.command("resume", func(ctx context.Context) error {
		_, err := m.resumer.Resume(ctx, nil, userID, p.ID)
		return err
	})
}

func (m *Model) waitForView() tea.Cmd {
	updates := m.updates
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return viewClosedMsg()
		case v, ok := <-updates:
			if !ok {
				return viewClosedMsg()
			}
			return viewUpdatedMsg(v)
		}
	}
}

func (m *Model) nextFrame() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m *Model) View() string {
	switch m.view {
	case TracksView:
		return m.renderList(m.trackList, m.keys.enter)
	case QueueView:
		return m.renderList(m.queueList)
	case PlaylistsView:
		return m.renderList(m.playlistList, m.keys.enter)
	default:
		return m.renderNowPlaying()
	}
}

func (m *Model) barWidth() int {
	if m.width <= 0 {
		return defaultBarWidth
	}
	return min(max(m.width-2*barIndent, 10), 100)
}

// header is everything above the progress bar. Its line count places the bar for mouse hits.
func (m *Model) header() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("playhead"))
	b.WriteString("\n")

	v := m.current
	switch {
	case v.NeedsLogin:
		b.WriteString(styles.err.Render("✗ Not authenticated. Run `playhead auth login`."))
	case v.Paused:
		b.WriteString(styles.warn.Render("❚❚ Paused"))
	default:
		b.WriteString(styles.ok.Render("▶ Playing"))
	}
	b.WriteString("\n")

	name, artists := v.Title()
	if name == "" {
		name = "Nothing playing"
	}
	b.WriteString(styles.track.Render(name))
	b.WriteString("\n")

	detail := artists
	if v.Track != nil && v.Track.Album != "" {
		detail = fmt.Sprintf("%s • %s", detail, v.Track.Album)
	}
	if v.PlaylistID != "" {
		detail = fmt.Sprintf("%s  [playlist %s]", detail, v.PlaylistID)
	}
	b.WriteString(detail)
	b.WriteString("\n\n")
	return b.String()
}

func (m *Model) barRow() int {
	return strings.Count(m.header(), "\n")
}

func (m *Model) renderNowPlaying() string {
	var b strings.Builder
	b.WriteString(m.header())

	indent := strings.Repeat(" ", barIndent)
	b.WriteString(indent + styles.Bar(m.interp.Fraction(), m.barWidth()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s%s / %s   vol %d%%\n", indent, m.interp.Display(), progress.Format(m.interp.Duration()), m.current.Volume)

	if len(m.current.Queue) > 0 {
		fmt.Fprintf(&b, "\nUp next: %s\n", m.current.Queue[0].Name)
	}
	if m.status != "" {
		b.WriteString("\n" + styles.err.Render(m.status) + "\n")
	} else if m.current.LastError != "" && !m.current.NeedsLogin {
		b.WriteString("\n" + styles.warn.Render(m.current.LastError) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderList(l list.Model, extra ...key.Binding) string {
	keys := append(extra, m.keys.back, m.keys.quit)
	return fmt.Sprintf("%s\n\n%s", l.View(), m.help.ShortHelpView(keys))
}
