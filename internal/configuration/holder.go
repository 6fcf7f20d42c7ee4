package configuration

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNoBuilder is returned when the current configuration is requested
// before a builder was registered
var ErrNoBuilder = errors.New("no mapping configuration builder registered")

// BuilderFunc builds a mapping configuration on demand
type BuilderFunc func() (*MappingConfiguration, error)

// Holder owns the current mapping configuration of a process. The first
// call to Current builds it lazily; concurrent callers block until the
// build finishes and never observe a partially built graph.
type Holder struct {
	mu      sync.RWMutex
	current *MappingConfiguration
	builder BuilderFunc

	initialized atomic.Bool
	initMutex   sync.Mutex
}

// NewHolder creates a holder that builds its configuration with builder
func NewHolder(builder BuilderFunc) *Holder {
	return &Holder{builder: builder}
}

// SetBuilder replaces the builder used by Current and Rebuild
func (h *Holder) SetBuilder(builder BuilderFunc) {
	h.initMutex.Lock()
	defer h.initMutex.Unlock()
	h.builder = builder
}

// Current returns the current configuration, building it on first use
func (h *Holder) Current() (*MappingConfiguration, error) {
	if h.initialized.Load() {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.current, nil
	}

	h.initMutex.Lock()
	defer h.initMutex.Unlock()

	if h.initialized.Load() {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.current, nil
	}

	cfg, err := h.build()
	if err != nil {
		return nil, err
	}
	h.publish(cfg)
	return cfg, nil
}

// Rebuild builds a fresh configuration and publishes it. On failure the
// previous configuration stays current.
func (h *Holder) Rebuild() (*MappingConfiguration, error) {
	h.initMutex.Lock()
	defer h.initMutex.Unlock()

	cfg, err := h.build()
	if err != nil {
		return nil, err
	}
	h.publish(cfg)
	return cfg, nil
}

// SetCurrent publishes cfg. A nil cfg resets the holder so the next call
// to Current builds again.
func (h *Holder) SetCurrent(cfg *MappingConfiguration) {
	h.initMutex.Lock()
	defer h.initMutex.Unlock()

	if cfg == nil {
		h.reset()
		return
	}
	h.publish(cfg)
}

// Reset drops the current configuration. Used by tests.
func (h *Holder) Reset() {
	h.initMutex.Lock()
	defer h.initMutex.Unlock()
	h.reset()
}

// build must be called with initMutex held
func (h *Holder) build() (*MappingConfiguration, error) {
	if h.builder == nil {
		return nil, ErrNoBuilder
	}
	return h.builder()
}

func (h *Holder) publish(cfg *MappingConfiguration) {
	h.mu.Lock()
	h.current = cfg
	h.mu.Unlock()
	h.initialized.Store(true)
}

func (h *Holder) reset() {
	h.mu.Lock()
	h.current = nil
	h.mu.Unlock()
	h.initialized.Store(false)
}

var global = NewHolder(nil)

// SetBuilder registers the builder of the process-wide configuration
func SetBuilder(builder BuilderFunc) {
	global.SetBuilder(builder)
}

// Current returns the process-wide configuration, building it on first use
func Current() (*MappingConfiguration, error) {
	return global.Current()
}

// Rebuild rebuilds the process-wide configuration
func Rebuild() (*MappingConfiguration, error) {
	return global.Rebuild()
}

// SetCurrent replaces the process-wide configuration
func SetCurrent(cfg *MappingConfiguration) {
	global.SetCurrent(cfg)
}

// Reset drops the process-wide configuration
func Reset() {
	global.Reset()
}
