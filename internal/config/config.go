package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"
)

// envVarPattern matches ${VAR_NAME} placeholders in config values.
var envVarPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)

// Manager handles configuration loading, watching, and hot-reload.
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	viper    *viper.Viper
	filePath string
	onChange []func(*Config)
}

// NewManager creates a configuration manager and loads config from the
// given path. An empty path searches the standard locations.
func NewManager(path string) (*Manager, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pulse"))
		}
	}

	v.SetEnvPrefix("PULSE")
	v.AutomaticEnv()

	m := &Manager{viper: v}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file: run on defaults.
		cfg := DefaultConfig()
		resolveEnvVars(cfg)
		m.config = cfg
		return m, nil
	}
	m.filePath = v.ConfigFileUsed()

	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// load unmarshals the current viper state into a fresh Config. The new
// config is fully resolved before it is published; snapshots returned by
// Get are never mutated afterwards.
func (m *Manager) load() error {
	cfg := DefaultConfig()
	if err := m.viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}
	resolveEnvVars(cfg)
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// resolveEnvVars expands ${VAR} placeholders in secret fields.
func resolveEnvVars(cfg *Config) {
	for name, p := range cfg.LLMProviders {
		p.APIKey = expandEnv(p.APIKey)
		cfg.LLMProviders[name] = p
	}
	cfg.Scraper.Token = expandEnv(cfg.Scraper.Token)
	cfg.Database.DSN = expandEnv(cfg.Database.DSN)
	cfg.Database.Password = expandEnv(cfg.Database.Password)
}

func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Get returns the current configuration snapshot.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnChange registers a callback invoked after each successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Watch enables hot-reload of the config file. No-op when running on
// defaults without a file.
func (m *Manager) Watch(logger *slog.Logger) {
	if m.filePath == "" {
		return
	}
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed, reloading", "file", e.Name)
		if err := m.load(); err != nil {
			logger.Error("config reload failed, keeping previous config", "error", err)
			return
		}
		m.mu.RLock()
		callbacks := append([]func(*Config){}, m.onChange...)
		cfg := m.config
		m.mu.RUnlock()
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	m.viper.WatchConfig()
}

// FilePath returns the path of the loaded config file, if any.
func (m *Manager) FilePath() string {
	return m.filePath
}

// WriteDefault writes the default configuration to the given path,
// refusing to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
