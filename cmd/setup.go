package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/moviememo/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the credential database and runs migrations.
//
// A missing config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		}
	}

	config, err := shared.LoadConfigOrDefault(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		config = shared.DefaultConfig()
		config.ApplyEnv()
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return r.writePlain("✓ Database ready at %s\n", config.Database.Path)
}

// SetupConfig writes the configuration template and lists the values to fill in.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Configuration written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set catalog.bearer_token (or %s) to your TMDB read access token\n", shared.EnvCatalogToken)
	r.writePlain("2. Set identity.api_key (or %s) to your Firebase web API key\n", shared.EnvIdentityAPIKey)
	r.writePlain("3. Optionally set identity.google_client_id and google_client_secret for `auth login --google`\n")
	r.writePlain("4. Run 'moviememo setup database'\n")
	return nil
}
