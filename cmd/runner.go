package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playhead/internal/models"
	"github.com/desertthunder/playhead/internal/repositories"
	"github.com/desertthunder/playhead/internal/services"
	"github.com/desertthunder/playhead/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Playback is the remote session driven by the player commands.
type Playback interface {
	services.PlaybackSource
	services.ContextPlayer
	services.PlaylistLister
}

// deviceTargeter is implemented by playback sources that can aim commands at the SDK device.
type deviceTargeter interface {
	SetDeviceID(id string)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil in [RunnerOpts] are built from the config the first time a command needs them.
type Runner struct {
	config     *shared.Config
	configPath string
	store      models.PositionStore
	playback   Playback
	users      services.UserLookup
	tokens     services.TokenProvider
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time
	closers    []io.Closer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Store      models.PositionStore
	Playback   Playback
	Users      services.UserLookup
	Tokens     services.TokenProvider
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Now        func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		store:      opts.Store,
		playback:   opts.Playback,
		users:      opts.Users,
		tokens:     opts.Tokens,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        opts.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, positionsCommand, playerCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Load reads the config file named by the --config flag, applying .env files and environment overrides.
//
// A missing file is not an error: defaults are used so `setup config` can create it.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadEnvFiles(); err != nil {
		r.logger.Warn("failed to load .env", "error", err)
	}

	path := cmd.String("config")
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
		r.config = shared.DefaultConfig()
		r.config.ApplyEnv()
	}

	if err := r.config.Validate(); err != nil {
		return ctx, err
	}

	r.logger.SetLevel(shared.ParseLogLevel(r.config.Log.Level))
	return ctx, nil
}

// SetLogger replaces the logger used by the runner and the collaborators it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases database handles opened by the runner.
func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// positionStore returns the configured [models.PositionStore]: the HTTP client when player.store_url is set,
// otherwise the database selected by database.driver.
func (r *Runner) positionStore(ctx context.Context) (models.PositionStore, error) {
	if r.store != nil {
		return r.store, nil
	}

	if url := r.config.Player.StoreURL; url != "" {
		r.logger.Debug("using remote position store", "url", url)
		r.store = services.NewPositionClient(url, r.httpClient)
		return r.store, nil
	}

	switch r.config.Database.Driver {
	case shared.DriverPostgres:
		db, err := shared.NewPostgresDatabase(ctx, r.config.Database)
		if err != nil {
			return nil, err
		}
		store := repositories.NewPostgresPositionStore(db)
		if err := store.Init(ctx); err != nil {
			db.Close()
			return nil, err
		}
		r.closers = append(r.closers, db)
		r.store = store
	default:
		path, err := r.config.DatabasePath()
		if err != nil {
			return nil, err
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err := shared.NewDatabase(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		r.closers = append(r.closers, db)
		r.store = repositories.NewPositionRepository(db)
	}
	return r.store, nil
}

// tokenProvider builds an [services.OAuthTokenProvider] whose refreshed tokens are written back to the config file.
func (r *Runner) tokenProvider() (services.TokenProvider, error) {
	if r.tokens != nil {
		return r.tokens, nil
	}

	sc := r.config.Credentials.Spotify
	if sc.ClientID == "" || sc.ClientSecret == "" {
		return nil, fmt.Errorf("%w: credentials.spotify.client_id and client_secret must be set", shared.ErrMissingCredentials)
	}

	provider := services.NewOAuthTokenProvider(sc, "")
	provider.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := r.saveTokens(token); err != nil {
			r.logger.Warn("failed to persist refreshed token", "error", err)
		}
	})
	r.tokens = provider
	return provider, nil
}

// playbackSource returns the Spotify backed [Playback].
func (r *Runner) playbackSource() (Playback, error) {
	if r.playback != nil {
		return r.playback, nil
	}

	tokens, err := r.tokenProvider()
	if err != nil {
		return nil, err
	}

	svc, err := services.NewSpotifyService(services.SpotifyOpts{
		Tokens:    tokens,
		RateLimit: r.config.Player.RateLimitPerSec,
		Logger:    r.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}

	r.playback = svc
	if r.users == nil {
		r.users = svc
	}
	return svc, nil
}

// resolveUserID picks the --user flag, then player.user_id, then the authenticated Spotify profile.
func (r *Runner) resolveUserID(ctx context.Context, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if id := r.config.Player.UserID; id != "" {
		return id, nil
	}

	if r.users == nil {
		if _, err := r.playbackSource(); err != nil {
			return "", fmt.Errorf("%w: pass --user or set player.user_id (%v)", shared.ErrMissingArgument, err)
		}
	}
	if r.users == nil {
		return "", fmt.Errorf("%w: pass --user or set player.user_id", shared.ErrMissingArgument)
	}

	id, err := r.users.CurrentUserID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user id: %w", err)
	}
	return id, nil
}

// saveTokens stores token in the in-memory config and, when a config path is known, on disk.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
