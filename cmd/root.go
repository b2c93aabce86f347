package cmd

import (
	"fmt"
	"os"

	"rewind/config"
	"rewind/logging"
	"rewind/storage"

	"github.com/alecthomas/kong"
)

// CLI represents the command-line interface structure
type CLI struct {
	Version     kong.VersionFlag `help:"Show version information"`
	Debug       bool             `help:"Enable debug logging to file" short:"d"`
	DebugFile   string           `help:"Custom path for debug log file (disables automatic cleanup)"`
	MaxLogFiles int              `help:"Maximum number of log files to keep (0 = unlimited)" default:"1000"`
	DBPath      string           `help:"Path to SQLite database" type:"path" default:"~/.rewind/rewind.db" env:"REWIND_DB_PATH"`

	Setup       SetupCmd       `cmd:"setup" help:"Initialize the database and seed the default admin user"`
	Users       UsersCmd       `cmd:"users" help:"Manage user accounts"`
	Sessions    SessionsCmd    `cmd:"sessions" help:"Manage external sessions and their branches"`
	Checkpoints CheckpointsCmd `cmd:"checkpoints" help:"Manage checkpoints (list, info, del, cleanup)"`
	Rollback    RollbackCmd    `cmd:"rollback" help:"Roll back to a checkpoint by creating a branch"`

	// Internal field for settings (not a flag)
	settings *config.Settings `kong:"-"`
}

// SetSettings sets the settings on the CLI struct
func (c *CLI) SetSettings(settings *config.Settings) {
	c.settings = settings
}

// Settings returns the loaded settings (never nil)
func (c *CLI) Settings() *config.Settings {
	if c.settings == nil {
		return &config.Settings{}
	}
	return c.settings
}

// AfterApply initializes logging after CLI parsing and applies settings
func (c *CLI) AfterApply() error {
	// Precedence: CLI flags > env vars > settings.json > defaults. Only
	// apply a setting if the flag is at its default and no env var is set.
	if c.settings != nil {
		if c.DBPath == "~/.rewind/rewind.db" {
			if _, hasEnv := os.LookupEnv("REWIND_DB_PATH"); !hasEnv {
				if c.settings.DBPath != "" {
					c.DBPath = c.settings.DBPath
				}
			}
		}

		if c.MaxLogFiles == 1000 {
			if _, hasEnv := os.LookupEnv("REWIND_MAX_LOG_FILES"); !hasEnv {
				if c.settings.MaxLogFiles != nil {
					c.MaxLogFiles = *c.settings.MaxLogFiles
				}
			}
		}

		if !c.Debug {
			if _, hasEnv := os.LookupEnv("REWIND_DEBUG"); !hasEnv {
				if c.settings.Debug != nil && *c.settings.Debug {
					c.Debug = true
				}
			}
		}
	}

	logFilePath, err := logging.Initialize(c.Debug, c.DebugFile, c.MaxLogFiles)
	if err != nil {
		return err
	}

	// Export AFTER initialization so child processes inherit debug settings
	// and append to the same file
	if c.Debug || c.DebugFile != "" {
		os.Setenv("REWIND_DEBUG", "1")
		if logFilePath != "" {
			os.Setenv("REWIND_DEBUG_FILE", logFilePath)
		}
	}
	if c.MaxLogFiles != 1000 {
		os.Setenv("REWIND_MAX_LOG_FILES", fmt.Sprintf("%d", c.MaxLogFiles))
	}

	return nil
}

// openStore opens the configured database
func (c *CLI) openStore() (*storage.Store, error) {
	store, err := storage.NewStore(c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}
