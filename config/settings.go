package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings represents the structure of ~/.rewind/settings.json
type Settings struct {
	AutoCheckpoint  *bool  `json:"auto_checkpoint,omitempty"`
	CopyCheckpoints *bool  `json:"copy_checkpoints,omitempty"`
	DBPath          string `json:"db_path,omitempty"`
	Debug           *bool  `json:"debug,omitempty"`
	KeepLatest      *int   `json:"keep_latest,omitempty"`
	MaxLogFiles     *int   `json:"max_log_files,omitempty"`
	RollbackTools   *bool  `json:"rollback_tools,omitempty"`
}

// settingsPathFunc returns the settings file path (overridable in tests)
var settingsPathFunc = defaultSettingsPath

func defaultSettingsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".rewind", "settings.json"), nil
}

// Load reads settings from ~/.rewind/settings.json. A missing file yields
// empty settings, not an error; a malformed file is an error so a typo is
// not silently ignored.
func Load() (*Settings, error) {
	path, err := settingsPathFunc()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &settings, nil
}

// Save writes settings to ~/.rewind/settings.json
func (s *Settings) Save() error {
	path, err := settingsPathFunc()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
