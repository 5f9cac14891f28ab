package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/services"
	"github.com/desertthunder/playhead/internal/shared"
)

const defaultPollInterval = 5 * time.Second

// SnapshotSink consumes polled snapshots. The reconciler implements it.
type SnapshotSink interface {
	OnSnapshot(snap *models.PlaybackSnapshot)
	OnSnapshotError(err error)
}

// Poller fetches the pull channel on a fixed interval.
type Poller struct {
	source   services.SnapshotFetcher
	sink     SnapshotSink
	interval time.Duration
	logger   *log.Logger
}

func NewPoller(source services.SnapshotFetcher, sink SnapshotSink, interval time.Duration, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Poller{
		source:   source,
		sink:     sink,
		interval: interval,
		logger:   shared.WithLogger(logger, "component", "poller"),
	}
}

// Run polls once immediately and then every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce fetches one snapshot and hands it to the sink. Failures are reported to the sink and logged.
func (p *Poller) PollOnce(ctx context.Context) (*models.PlaybackSnapshot, error) {
	snap, err := p.source.FetchSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Error("poll failed", "err", err)
		p.sink.OnSnapshotError(err)
		return nil, err
	}

	p.sink.OnSnapshot(snap)
	return snap, nil
}
