// Package config loads the spawn keeper daemon configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the spawn keeper daemon.
type Server struct {
	// Worlds the daemon manages. Spawners referencing other worlds load
	// but never spawn.
	Worlds []string `yaml:"worlds"`

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	// Display
	DisplayLabels bool `yaml:"display_labels"`

	Spawn   Spawn   `yaml:"spawn"`
	Session Session `yaml:"session"`
	Storage Storage `yaml:"storage"`
}

// Spawn tunes the registry loops and population bounds.
type Spawn struct {
	TickInterval         time.Duration `yaml:"tick_interval"`          // spawn/respawn tick (default: 1s)
	PersistInterval      time.Duration `yaml:"persist_interval"`       // snapshot flush (default: 5m)
	SweepInterval        time.Duration `yaml:"sweep_interval"`         // stale handle sweep (default: 30s)
	GroupRebuildInterval time.Duration `yaml:"group_rebuild_interval"` // group index rebuild (default: 1m)

	MaxPerEntry            int           `yaml:"max_per_entry"`            // upper bound for one entry's count
	DefaultCapacity        int           `yaml:"default_capacity"`         // live+pending cap without override
	DefaultDetectionRadius float64       `yaml:"default_detection_radius"` // observer gate without override
	RespawnCooldown        time.Duration `yaml:"respawn_cooldown"`         // global per-key spacing
}

// Session tunes the interactive configuration dialogs.
type Session struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// Storage selects where spawner snapshots live. A configured database host
// selects PostgreSQL; otherwise snapshots go to the YAML file at
// SnapshotPath.
type Storage struct {
	SnapshotPath string         `yaml:"snapshot_path"`
	Database     DatabaseConfig `yaml:"database"`
}

// UsesDatabase reports whether snapshots are stored in PostgreSQL.
func (s Storage) UsesDatabase() bool {
	return s.Database.Host != ""
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		Worlds:        []string{"world"},
		LogLevel:      "info",
		DisplayLabels: true,
		Spawn: Spawn{
			TickInterval:           time.Second,
			PersistInterval:        5 * time.Minute,
			SweepInterval:          30 * time.Second,
			GroupRebuildInterval:   time.Minute,
			MaxPerEntry:            20,
			DefaultCapacity:        10,
			DefaultDetectionRadius: 32,
			RespawnCooldown:        2 * time.Second,
		},
		Session: Session{
			IdleTimeout: 5 * time.Minute,
		},
		Storage: Storage{
			SnapshotPath: "data/spawners.yaml",
			Database: DatabaseConfig{
				Host:     "", // empty selects the YAML snapshot store
				Port:     5432,
				User:     "spawnkeep",
				Password: "spawnkeep",
				DBName:   "spawnkeep",
				SSLMode:  "disable",
			},
		},
	}
}

// LoadServer loads daemon config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
