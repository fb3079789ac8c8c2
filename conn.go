package rivet

import (
	"fmt"
	"sync"

	"github.com/rivetorm/rivet/dialect"
	"github.com/rivetorm/rivet/dialect/sql"
)

// ConnectionManager holds named database connections and hands out clients
// bound to them. It is the runtime counterpart of Config.
type ConnectionManager struct {
	mu          sync.RWMutex
	drivers     map[string]dialect.Driver
	defaultName string
}

// NewConnectionManager returns an empty manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{drivers: make(map[string]dialect.Driver)}
}

// OpenConnections opens every connection in the config and returns a
// manager holding them.
func OpenConnections(cfg *Config) (*ConnectionManager, error) {
	m := NewConnectionManager()
	for name, cc := range cfg.Connections {
		drv, err := sql.Open(cc.Dialect, cc.DSN)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("rivet: opening connection %q: %w", name, err)
		}
		m.Add(name, drv)
	}
	m.SetDefault(cfg.Default)
	return m, nil
}

// Add registers a driver under a name, closing any previous holder of the
// name. The first added connection becomes the default.
func (m *ConnectionManager) Add(name string, drv dialect.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.drivers[name]; ok {
		old.Close()
	}
	m.drivers[name] = drv
	if m.defaultName == "" {
		m.defaultName = name
	}
}

// SetDefault names the connection Driver() falls back to.
func (m *ConnectionManager) SetDefault(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultName = name
}

// Driver returns the named connection's driver, or the default one when
// name is empty.
func (m *ConnectionManager) Driver(name string) (dialect.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name == "" {
		name = m.defaultName
	}
	drv, ok := m.drivers[name]
	if !ok {
		return nil, fmt.Errorf("rivet: unknown connection %q", name)
	}
	return drv, nil
}

// Names returns the registered connection names.
func (m *ConnectionManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.drivers))
	for name := range m.drivers {
		out = append(out, name)
	}
	return out
}

// Close closes every connection. The first error wins.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for name, drv := range m.drivers {
		if err := drv.Close(); err != nil && first == nil {
			first = err
		}
		delete(m.drivers, name)
	}
	return first
}
