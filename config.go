package rivet

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ConnectionConfig describes one named database connection.
type ConnectionConfig struct {
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn"`
}

// Config is the YAML configuration of the connection manager:
//
//	default: primary
//	connections:
//	  primary:
//	    dialect: postgres
//	    dsn: postgres://localhost/app
//	  analytics:
//	    dialect: sqlite
//	    dsn: file:analytics.db
type Config struct {
	Default     string                      `yaml:"default"`
	Connections map[string]ConnectionConfig `yaml:"connections"`
}

// ParseConfig parses and validates a YAML configuration document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("rivet: parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rivet: reading config: %w", err)
	}
	return ParseConfig(data)
}

func (c *Config) validate() error {
	if len(c.Connections) == 0 {
		return fmt.Errorf("rivet: config declares no connections")
	}
	for name, conn := range c.Connections {
		if conn.Dialect == "" {
			return fmt.Errorf("rivet: connection %q has no dialect", name)
		}
		if conn.DSN == "" {
			return fmt.Errorf("rivet: connection %q has no dsn", name)
		}
	}
	if c.Default == "" {
		return fmt.Errorf("rivet: config has no default connection")
	}
	if _, ok := c.Connections[c.Default]; !ok {
		return fmt.Errorf("rivet: default connection %q is not declared", c.Default)
	}
	return nil
}

// WatchConfig watches the configuration file and calls onChange with the
// re-parsed config on every write. Parse failures are skipped so a
// half-written file cannot wipe a working setup. The returned stop function
// ends the watch.
func WatchConfig(path string, onChange func(*Config)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files on save, which drops
	// watches on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					continue
				}
				onChange(cfg)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return watcher.Close, nil
}
