package backend

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	// ErrNoBackend is returned when no backend could be detected or configured.
	ErrNoBackend = errors.New("no backend available")

	// ErrUnknownBackend is returned when selecting a backend that was not
	// detected or registered.
	ErrUnknownBackend = errors.New("unknown backend")
)

// Logger is the minimal logging interface the adapters need.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Detect probes the environment for provider credentials and returns the
// available backends in priority order: Claude first, then OpenAI. The
// result is empty when no credentials are present.
func Detect(logger Logger) []Backend {
	if logger == nil {
		logger = noopLogger{}
	}

	var backends []Backend
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		b := NewClaude("")
		logger.Debug("detected backend", "name", b.Name(), "model", b.Model())
		backends = append(backends, b)
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		b := NewOpenAI("")
		logger.Debug("detected backend", "name", b.Name(), "model", b.Model())
		backends = append(backends, b)
	}
	if len(backends) == 0 {
		logger.Warn("no backend credentials found",
			"checked", []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY"})
	}
	return backends
}

// Manager holds the detected backend set and tracks the active one.
// Safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	order    []string
	backends map[string]Backend
	current  Backend
}

// NewManager creates a manager over the given backends. The first backend
// becomes the active one. Returns ErrNoBackend for an empty set.
func NewManager(backends []Backend) (*Manager, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackend
	}

	m := &Manager{
		backends: make(map[string]Backend, len(backends)),
	}
	for _, b := range backends {
		if _, dup := m.backends[b.Name()]; dup {
			return nil, fmt.Errorf("duplicate backend name: %s", b.Name())
		}
		m.backends[b.Name()] = b
		m.order = append(m.order, b.Name())
	}
	m.current = backends[0]
	return m, nil
}

// Use switches the active backend by name.
func (m *Manager) Use(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.backends[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	m.current = b
	return nil
}

// Current returns the active backend.
func (m *Manager) Current() Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Available returns the backend names in detection order.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}
