// Package config loads orbit settings. ORBIT_* environment variables
// override an optional orbit.yaml, which overrides defaults.
package config

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/viper"
)

const (
	AppName = "orbit"

	BackendSQLite = "sqlite"
	BackendBadger = "badger"

	DefaultSnapshotEvery = 200

	deviceIDFile = "device-id"
)

type Config struct {
	DB       DBConfig
	Device   DeviceConfig
	Log      LogConfig
	Snapshot SnapshotConfig
}

type DBConfig struct {
	Path    string
	Backend string // sqlite, badger
}

type DeviceConfig struct {
	ID string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

type SnapshotConfig struct {
	// Every is the number of events folded between automatic snapshots.
	// Zero disables automatic snapshots.
	Every int
}

// DefaultDBPath is where the database lives when db.path is unset.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, AppName, "orbit.db")
}

// Load reads configuration. file names an explicit config file; when empty,
// orbit.yaml is looked up in the working directory and the xdg config dir.
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		DB: DBConfig{
			Path:    v.GetString("db.path"),
			Backend: strings.ToLower(v.GetString("db.backend")),
		},
		Device: DeviceConfig{
			ID: v.GetString("device.id"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Snapshot: SnapshotConfig{
			Every: v.GetInt("snapshot.every"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.path", DefaultDBPath())
	v.SetDefault("db.backend", BackendSQLite)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("snapshot.every", DefaultSnapshotEvery)
}

func (c *Config) validate() error {
	if c.DB.Path == "" {
		return fmt.Errorf("db.path is required")
	}
	switch c.DB.Backend {
	case BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("db.backend must be %q or %q, got %q", BackendSQLite, BackendBadger, c.DB.Backend)
	}
	if c.Snapshot.Every < 0 {
		return fmt.Errorf("snapshot.every cannot be negative")
	}
	return nil
}

// DeviceIDPath is the file a generated device id is kept in, next to the
// database.
func (c *Config) DeviceIDPath() string {
	return filepath.Join(filepath.Dir(c.DB.Path), deviceIDFile)
}

// ResolveDeviceID returns device.id when set. Otherwise it reads the id
// persisted next to the database, generating and saving one on first use.
func (c *Config) ResolveDeviceID() (string, error) {
	if c.Device.ID != "" {
		return c.Device.ID, nil
	}

	path := c.DeviceIDPath()
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			c.Device.ID = id
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	id := NewDeviceID()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write device id: %w", err)
	}
	c.Device.ID = id
	return id, nil
}

// NewDeviceID generates a new ULID for device identification.
func NewDeviceID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
