// package formatter renders saved positions, track lists and playback state for the CLI (text, CSV, Markdown, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/progress"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/dustin/go-humanize"
)

// Format selects an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts text, csv, markdown (or md) and json. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// PositionsToCSV writes columns ID, UserID, PlaylistID, TrackID, TrackURI, UpdatedAt.
func PositionsToCSV(positions []models.Position) ([]byte, error) {
	records := make([][]string, 0, len(positions))
	for _, p := range positions {
		records = append(records, []string{
			p.ID,
			p.UserID,
			string(p.PlaylistID),
			string(p.TrackID),
			string(p.TrackURI()),
			p.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return writeCSV([]string{"ID", "UserID", "PlaylistID", "TrackID", "TrackURI", "UpdatedAt"}, records)
}

// PositionsToMarkdown renders a table of positions with relative update times.
func PositionsToMarkdown(positions []models.Position, now time.Time) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Saved positions\n\n")
	fmt.Fprintf(&buf, "**Playlists**: %d\n\n", len(positions))
	if len(positions) == 0 {
		return buf.Bytes()
	}

	buf.WriteString("| Playlist | Track | Updated |\n")
	buf.WriteString("|---|---|---|\n")
	for _, p := range positions {
		fmt.Fprintf(&buf, "| %s | %s | %s |\n", p.PlaylistID, p.TrackURI(), relative(p.UpdatedAt, now))
	}
	return buf.Bytes()
}

// PositionsToText renders one line per position.
func PositionsToText(positions []models.Position, now time.Time) []byte {
	var buf bytes.Buffer
	if len(positions) == 0 {
		buf.WriteString("No saved positions\n")
		return buf.Bytes()
	}

	for _, p := range positions {
		fmt.Fprintf(&buf, "%s  %s  (updated %s)\n", p.PlaylistID, p.TrackURI(), relative(p.UpdatedAt, now))
	}
	fmt.Fprintf(&buf, "\n%s saved\n", humanize.Comma(int64(len(positions))))
	return buf.Bytes()
}

// TracksToCSV writes columns ID, URI, Name, Artists, Album, DurationMs.
func TracksToCSV(tracks []models.APITrack) ([]byte, error) {
	records := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		records = append(records, []string{
			string(t.ID),
			string(t.URI),
			t.Name,
			t.ArtistNames(),
			t.Album,
			strconv.Itoa(t.DurationMs),
		})
	}
	return writeCSV([]string{"ID", "URI", "Name", "Artists", "Album", "DurationMs"}, records)
}

// TracksToMarkdown renders a numbered list under title. current marks the playing track.
func TracksToMarkdown(title string, tracks []models.APITrack, current models.TrackURI) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(tracks))
	for i, t := range tracks {
		marker := ""
		if t.SameAs(current) {
			marker = " **(playing)**"
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]%s\n", i+1, t.ArtistNames(), t.Name, albumPart(t.Album), progress.Format(t.DurationMs), marker)
	}
	return buf.Bytes()
}

// TracksToText renders a numbered list. current marks the playing track.
func TracksToText(title string, tracks []models.APITrack, current models.TrackURI) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", title)
	fmt.Fprintf(&buf, "Tracks: %d (%s)\n\n", len(tracks), totalDuration(tracks))
	for i, t := range tracks {
		marker := "  "
		if t.SameAs(current) {
			marker = "▶ "
		}
		fmt.Fprintf(&buf, "%s%d. %s - %s [%s]\n", marker, i+1, t.ArtistNames(), t.Name, progress.Format(t.DurationMs))
	}
	return buf.Bytes()
}

// PlaylistsToCSV writes columns ID, Name, Owner, Tracks.
func PlaylistsToCSV(playlists []models.Playlist) ([]byte, error) {
	records := make([][]string, 0, len(playlists))
	for _, p := range playlists {
		records = append(records, []string{string(p.ID), p.Name, p.Owner, strconv.Itoa(p.TrackCount)})
	}
	return writeCSV([]string{"ID", "Name", "Owner", "Tracks"}, records)
}

// PlaylistsToMarkdown renders a table of playlists. current marks the one playing.
func PlaylistsToMarkdown(playlists []models.Playlist, current models.PlaylistID) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Playlists\n\n")
	fmt.Fprintf(&buf, "**Playlists**: %d\n\n", len(playlists))
	if len(playlists) == 0 {
		return buf.Bytes()
	}

	buf.WriteString("| Name | ID | Owner | Tracks |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, p := range playlists {
		name := p.Name
		if current != "" && p.ID == current {
			name += " **(playing)**"
		}
		fmt.Fprintf(&buf, "| %s | %s | %s | %d |\n", name, p.ID, p.Owner, p.TrackCount)
	}
	return buf.Bytes()
}

// PlaylistsToText renders one line per playlist with the id to pass to --playlist.
func PlaylistsToText(playlists []models.Playlist, current models.PlaylistID) []byte {
	var buf bytes.Buffer
	if len(playlists) == 0 {
		buf.WriteString("No playlists\n")
		return buf.Bytes()
	}

	for _, p := range playlists {
		marker := "  "
		if current != "" && p.ID == current {
			marker = "▶ "
		}
		fmt.Fprintf(&buf, "%s%s  %s (%s tracks)\n", marker, p.ID, p.Name, humanize.Comma(int64(p.TrackCount)))
	}
	return buf.Bytes()
}

// StatusToText summarizes a merged playback view.
func StatusToText(v models.MergedPlaybackView) []byte {
	var buf bytes.Buffer

	if v.NeedsLogin {
		buf.WriteString("✗ Not authenticated\n")
		return buf.Bytes()
	}

	name, artists := v.Title()
	if name == "" {
		buf.WriteString("Nothing playing\n")
		return buf.Bytes()
	}

	state := "▶ Playing"
	if v.Paused {
		state = "❚❚ Paused"
	}
	fmt.Fprintf(&buf, "%s: %s - %s\n", state, artists, name)
	fmt.Fprintf(&buf, "Position: %s / %s\n", progress.Format(v.PositionMs), progress.Format(v.DurationMs))
	if v.PlaylistID != "" {
		fmt.Fprintf(&buf, "Playlist: %s\n", v.PlaylistID)
	}
	fmt.Fprintf(&buf, "Volume: %d%%\n", v.Volume)
	if len(v.Queue) > 0 {
		fmt.Fprintf(&buf, "Up next: %s - %s\n", v.Queue[0].ArtistNames(), v.Queue[0].Name)
	}
	return buf.Bytes()
}

// WritePositions encodes positions to w in format.
func WritePositions(w io.Writer, format Format, positions []models.Position, now time.Time) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = PositionsToCSV(positions)
	case FormatMarkdown:
		data = PositionsToMarkdown(positions, now)
	case FormatJSON:
		data, err = marshalJSON(positions)
	default:
		data = PositionsToText(positions, now)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteTracks encodes tracks to w in format.
func WriteTracks(w io.Writer, format Format, title string, tracks []models.APITrack, current models.TrackURI) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = TracksToCSV(tracks)
	case FormatMarkdown:
		data = TracksToMarkdown(title, tracks, current)
	case FormatJSON:
		data, err = marshalJSON(tracks)
	default:
		data = TracksToText(title, tracks, current)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WritePlaylists encodes playlists to w in format.
func WritePlaylists(w io.Writer, format Format, playlists []models.Playlist, current models.PlaylistID) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = PlaylistsToCSV(playlists)
	case FormatMarkdown:
		data = PlaylistsToMarkdown(playlists, current)
	case FormatJSON:
		data, err = marshalJSON(playlists)
	default:
		data = PlaylistsToText(playlists, current)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	if err := writer.WriteAll(records); err != nil {
		return nil, fmt.Errorf("failed to write CSV records: %w", err)
	}
	return buf.Bytes(), nil
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func relative(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func albumPart(album string) string {
	if album == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", album)
}

func totalDuration(tracks []models.APITrack) string {
	total := 0
	for _, t := range tracks {
		total += t.DurationMs
	}
	d := time.Duration(total) * time.Millisecond
	if d >= time.Hour {
		return fmt.Sprintf("%dh %02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return progress.Format(total)
}
