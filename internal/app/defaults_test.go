package app

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestDefaultPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name       string
		configPath string
		home       string
		want       Paths
	}{
		{
			name:       "environment wins",
			configPath: "/etc/rembes/rembes.toml",
			home:       "/srv/rembes",
			want:       Paths{ConfigPath: "/etc/rembes/rembes.toml", BaseDir: "/srv/rembes"},
		},
		{
			name: "home directory fallback",
			want: Paths{
				ConfigPath: filepath.Join(home, ".config", "rembes.toml"),
				BaseDir:    filepath.Join(home, ".local", "share", "rembes"),
			},
		},
		{
			name: "only the data directory moved",
			home: "/srv/rembes",
			want: Paths{ConfigPath: filepath.Join(home, ".config", "rembes.toml"), BaseDir: "/srv/rembes"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigPath, tt.configPath)
			t.Setenv(EnvHome, tt.home)

			got, err := DefaultPaths()
			if err != nil {
				t.Fatalf("DefaultPaths() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DefaultPaths() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPaths_EnvFiles(t *testing.T) {
	p := Paths{BaseDir: "/srv/rembes"}
	if got := p.EnvFile(); got != "/srv/rembes/.env" {
		t.Errorf("EnvFile() = %q", got)
	}
	if got, want := p.EnvFiles(), []string{"/srv/rembes/.env", ".env"}; !slices.Equal(got, want) {
		t.Errorf("EnvFiles() = %v, want %v", got, want)
	}
}
