package progress

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playhead/internal/shared"
)

const seekTimeout = 10 * time.Second

// State is the interpolator mode.
type State int

const (
	Synced State = iota
	Animating
	Dragging
)

func (s State) String() string {
	switch s {
	case Animating:
		return "animating"
	case Dragging:
		return "dragging"
	default:
		return "synced"
	}
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Seeker issues the remote seek for a drag release or click.
type Seeker interface {
	Seek(ctx context.Context, positionMs int) error
}

type Options struct {
	Seeker Seeker
	Clock  Clock
	Logger *log.Logger
}

// Interpolator advances a display position between authoritative updates.
type Interpolator struct {
	seeker Seeker
	clock  Clock
	logger *log.Logger
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      State
	paused     bool
	durationMs int
	display    float64
	lastTick   time.Time
	generation uint64
}

func New(opts Options) *Interpolator {
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Interpolator{
		seeker:   opts.Seeker,
		clock:    opts.Clock,
		logger:   shared.WithLogger(opts.Logger, "component", "progress"),
		paused:   true,
		lastTick: opts.Clock.Now(),
	}
}

// Update adopts an authoritative position as the new baseline and restarts the tick timer.
//
// While dragging only the duration and paused flag are taken; the pointer keeps control of the position.
func (i *Interpolator) Update(positionMs, durationMs int, paused bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.durationMs = max(durationMs, 0)
	i.paused = paused
	if i.state == Dragging {
		return
	}

	i.generation++
	i.display = i.clamp(float64(positionMs))
	i.lastTick = i.clock.Now()
	i.state = Synced
}

// SetPaused freezes or resumes animation without moving the position.
func (i *Interpolator) SetPaused(paused bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.paused = paused
	i.lastTick = i.clock.Now()
	if paused && i.state == Animating {
		i.state = Synced
	}
}

// Tick advances the display position by the wall-clock time since the previous tick.
func (i *Interpolator) Tick() int {
	i.mu.Lock()
	gen := i.generation
	i.mu.Unlock()

	i.tick(gen, i.clock.Now())
	return i.Position()
}

// tick applies one frame. Frames from before the current baseline, or scheduled under an older generation, are dropped.
func (i *Interpolator) tick(gen uint64, now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if gen != i.generation || now.Before(i.lastTick) {
		return false
	}
	if i.paused || i.state == Dragging {
		i.lastTick = now
		return false
	}

	delta := now.Sub(i.lastTick)
	i.lastTick = now
	i.display = i.clamp(i.display + float64(delta)/float64(time.Millisecond))
	i.state = Animating
	return true
}

// BeginDrag suspends animation and follows the pointer at fraction of the track.
func (i *Interpolator) BeginDrag(fraction float64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.state = Dragging
	i.generation++
	i.display = i.atFraction(fraction)
}

// DragTo moves the display position while dragging. It is ignored otherwise.
func (i *Interpolator) DragTo(fraction float64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != Dragging {
		return
	}
	i.display = i.atFraction(fraction)
}

// EndDrag seeks to the dragged position and shows it immediately. It returns the seek target.
func (i *Interpolator) EndDrag() int {
	i.mu.Lock()
	if i.state != Dragging {
		i.mu.Unlock()
		return i.Position()
	}
	target := int(math.Round(i.display))
	i.mu.Unlock()

	return i.seekTo(target)
}

// Click is a direct seek to fraction of the track, with the same semantics as a drag release.
func (i *Interpolator) Click(fraction float64) int {
	i.mu.Lock()
	target := int(math.Round(i.atFraction(fraction)))
	i.mu.Unlock()

	return i.seekTo(target)
}

// SeekBy moves relative to the displayed position, e.g. for keyboard scrubbing.
func (i *Interpolator) SeekBy(delta time.Duration) int {
	i.mu.Lock()
	target := int(math.Round(i.clamp(i.display + float64(delta.Milliseconds()))))
	i.mu.Unlock()

	return i.seekTo(target)
}

func (i *Interpolator) seekTo(target int) int {
	i.mu.Lock()
	i.generation++
	i.display = float64(target)
	i.lastTick = i.clock.Now()
	i.state = Synced
	i.mu.Unlock()

	if i.seeker == nil {
		return target
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), seekTimeout)
		defer cancel()

		if err := i.seeker.Seek(ctx, target); err != nil {
			i.logger.Error("seek failed", "position_ms", target, "err", err)
		}
	}()
	return target
}

// Run ticks every interval and reports each changed position to onFrame until ctx ends.
// onFrame may be nil.
func (i *Interpolator) Run(ctx context.Context, interval time.Duration, onFrame func(positionMs int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.mu.Lock()
			gen := i.generation
			i.mu.Unlock()

			if i.tick(gen, i.clock.Now()) && onFrame != nil {
				onFrame(i.Position())
			}
		}
	}
}

// Position is the display position in milliseconds.
func (i *Interpolator) Position() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return int(math.Round(i.display))
}

func (i *Interpolator) Duration() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.durationMs
}

func (i *Interpolator) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Fraction is the displayed position relative to the duration, for drawing a bar.
func (i *Interpolator) Fraction() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.durationMs <= 0 {
		return 0
	}
	return i.display / float64(i.durationMs)
}

// Display renders the position as m:ss.
func (i *Interpolator) Display() string {
	return Format(i.Position())
}

// Close waits for pending seeks.
func (i *Interpolator) Close() {
	i.wg.Wait()
}

func (i *Interpolator) atFraction(fraction float64) float64 {
	if math.IsNaN(fraction) {
		fraction = 0
	}
	return math.Min(math.Max(fraction, 0), 1) * float64(i.durationMs)
}

func (i *Interpolator) clamp(ms float64) float64 {
	if ms < 0 {
		return 0
	}
	if i.durationMs > 0 && ms > float64(i.durationMs) {
		return float64(i.durationMs)
	}
	return ms
}
