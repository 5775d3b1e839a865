package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that relocate rembes before any config is read.
const (
	EnvConfigPath = "REMBES_CONFIG_PATH"
	EnvHome       = "REMBES_HOME"
)

// Paths locates what rembes needs before it has a config: the config file
// itself, the data directory new configs are rooted at, and the dotenv
// files holding the bot token.
type Paths struct {
	ConfigPath string // $REMBES_CONFIG_PATH, else ~/.config/rembes.toml
	BaseDir    string // $REMBES_HOME, else ~/.local/share/rembes
}

// DefaultPaths resolves Paths from the environment and the home directory.
// The home directory is only consulted for values the environment lacks.
func DefaultPaths() (Paths, error) {
	var home string
	resolve := func(env string, fallback ...string) (string, error) {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
		if home == "" {
			h, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory (set %s): %w", env, err)
			}
			home = h
		}
		return filepath.Join(append([]string{home}, fallback...)...), nil
	}

	configPath, err := resolve(EnvConfigPath, ".config", "rembes.toml")
	if err != nil {
		return Paths{}, err
	}
	baseDir, err := resolve(EnvHome, ".local", "share", "rembes")
	if err != nil {
		return Paths{}, err
	}
	return Paths{ConfigPath: configPath, BaseDir: baseDir}, nil
}

// EnvFile is the dotenv file kept next to the data.
func (p Paths) EnvFile() string {
	return filepath.Join(p.BaseDir, ".env")
}

// EnvFiles lists the dotenv files to load. Earlier files win, so the one in
// the data directory overrides a .env in the working directory.
func (p Paths) EnvFiles() []string {
	return []string{p.EnvFile(), ".env"}
}
