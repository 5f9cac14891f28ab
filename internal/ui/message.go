package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playhead/internal/models"
)

// MsgKind enumerates the messages the model reacts to besides keys, mouse and resizes.
type MsgKind int

// Msg is the message union of the TUI.
type Msg struct {
	kind MsgKind
	data any
}

var _ tea.Msg = Msg{}

const (
	MsgViewUpdated MsgKind = iota
	MsgViewClosed
	MsgFrame
	MsgCommandDone
	MsgPlaylistsLoaded
)

type playlistsResult struct {
	playlists []models.Playlist
	err       error
}

type commandResult struct {
	op  string
	err error
}

// viewUpdatedMsg is the constructor for [MsgViewUpdated]
func viewUpdatedMsg(v models.MergedPlaybackView) Msg {
	return Msg{kind: MsgViewUpdated, data: v}
}

func viewClosedMsg() Msg {
	return Msg{kind: MsgViewClosed}
}

// frameMsg is the constructor for [MsgFrame]
func frameMsg(at time.Time) Msg {
	return Msg{kind: MsgFrame, data: at}
}

// playlistsLoadedMsg is the constructor for [MsgPlaylistsLoaded]
func playlistsLoadedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsLoaded, data: playlistsResult{playlists: playlists, err: err}}
}

// commandDoneMsg is the constructor for [MsgCommandDone]
func commandDoneMsg(op string, err error) Msg {
	return Msg{kind: MsgCommandDone, data: commandResult{op: op, err: err}}
}
