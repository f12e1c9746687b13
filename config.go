package sjq

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// RedisConfig holds connection settings for the backing store.
type RedisConfig struct {
	// Addr is the Redis host:port.
	Addr string `toml:"addr"`

	// Password authenticates the connection. Empty means no auth.
	Password string `toml:"password"`

	// DB selects the Redis logical database.
	DB int `toml:"db"`
}

// WorkspaceConfig holds the on-disk layout of a queue workspace.
type WorkspaceConfig struct {
	// DataDir is where per-job artifacts (input, output, attachment,
	// metadata) are written.
	DataDir string `toml:"data_dir"`

	// HandlersDir holds one executable per topic; the file name without
	// extension is the topic name.
	HandlersDir string `toml:"handlers_dir"`
}

// WorkerConfig holds worker loop tuning.
type WorkerConfig struct {
	// ClaimTimeoutSeconds is how long a blocking claim waits per topic
	// before the loop re-checks for cancellation.
	ClaimTimeoutSeconds int `toml:"claim_timeout_seconds"`
}

// ClaimTimeout returns the claim timeout as a duration.
func (w WorkerConfig) ClaimTimeout() time.Duration {
	return time.Duration(w.ClaimTimeoutSeconds) * time.Second
}

// Config holds configuration for a queue workspace.
type Config struct {
	Redis     RedisConfig     `toml:"redis"`
	Workspace WorkspaceConfig `toml:"workspace"`
	Worker    WorkerConfig    `toml:"worker"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Workspace: WorkspaceConfig{
			DataDir:     "job_data",
			HandlersDir: "topics",
		},
		Worker: WorkerConfig{
			ClaimTimeoutSeconds: 1,
		},
	}
}

// LoadConfig reads a TOML configuration file and merges it over the
// defaults. A missing file is reported as ErrNoConfig so callers can
// distinguish it from a malformed one.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrNoConfig, path)
		}
		return cfg, fmt.Errorf("sjq: read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("sjq: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	if c.Redis.Addr == "" {
		return errors.New("sjq: redis.addr must not be empty")
	}
	if c.Workspace.DataDir == "" {
		return errors.New("sjq: workspace.data_dir must not be empty")
	}
	if c.Workspace.HandlersDir == "" {
		return errors.New("sjq: workspace.handlers_dir must not be empty")
	}
	if c.Worker.ClaimTimeoutSeconds <= 0 {
		return errors.New("sjq: worker.claim_timeout must be positive")
	}
	return nil
}
