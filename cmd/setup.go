package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/playhead/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase opens the configured position store, creating tables on the way.
//
// For sqlite this runs the embedded migrations; for postgres it creates the positions table.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if r.config.Player.StoreURL != "" {
		r.logger.Warn("player.store_url is set, positions are stored remotely", "url", r.config.Player.StoreURL)
	}

	driver := r.config.Database.Driver
	if driver == "" {
		driver = shared.DriverSQLite
	}
	r.logger.Info("initializing database", "driver", driver)

	if _, err := r.positionStore(ctx); err != nil {
		return err
	}

	target := r.config.Database.DSN
	if driver == shared.DriverSQLite {
		path, err := r.config.DatabasePath()
		if err != nil {
			return err
		}
		target = path
	}

	r.logger.Infof("setup complete for database: %v", target)
	return r.writePlain("✓ Database ready (%s)\n", driver)
}

// SetupConfig writes the embedded example config to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret\n")
	r.writePlain("2. Run 'playhead auth login'\n")
	r.writePlain("3. Run 'playhead setup database'\n")
	return nil
}
