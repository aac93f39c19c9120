package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/sigreplay/internal/core"
	"go.uber.org/zap"
)

// Factory creates a fresh, uninitialised annotator.
type Factory func() Annotator

// Engine is the registry of available annotators.
type Engine struct {
	mu         sync.RWMutex
	annotators map[string]Annotator
	factories  map[string]Factory
	params     map[string]map[string]any
	logger     *zap.Logger
}

// NewEngine creates a new strategy engine
func NewEngine(logger ...*zap.Logger) *Engine {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Engine{
		annotators: make(map[string]Annotator),
		factories:  make(map[string]Factory),
		params:     make(map[string]map[string]any),
		logger:     l,
	}
}

// Register adds an annotator to the engine
func (e *Engine) Register(a Annotator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.annotators[a.Name()] = a
	e.logger.Debug("strategy registered", zap.String("strategy", a.Name()))
}

// RegisterFactory registers an annotator and keeps its factory so that independent
// instances can be created for concurrent runs.
func (e *Engine) RegisterFactory(f Factory) {
	a := f()
	e.Register(a)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.factories[a.Name()] = f
}

// Instantiate creates a new annotator initialised with the configured parameters of
// name overlaid with params.
func (e *Engine) Instantiate(name string, params map[string]any) (Annotator, error) {
	e.mu.RLock()
	f, ok := e.factories[name]
	base := e.params[name]
	e.mu.RUnlock()
	if !ok {
		return nil, core.WrapError(core.ErrStrategyNotFound, fmt.Errorf("%q", name))
	}

	merged := make(map[string]any, len(base)+len(params))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}

	a := f()
	if err := a.Init(Config{Enabled: true, Params: merged}); err != nil {
		return nil, fmt.Errorf("init strategy %s: %w", name, err)
	}
	return a, nil
}

// Get retrieves an annotator by name
func (e *Engine) Get(name string) (Annotator, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.annotators[name]
	if !ok {
		return nil, core.WrapError(core.ErrStrategyNotFound, fmt.Errorf("%q", name))
	}
	return a, nil
}

// Names returns the registered annotator names, sorted.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.annotators))
	for name := range e.annotators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configure initialises every registered annotator that has an entry in cfgs.
// Disabled entries are removed from the engine.
func (e *Engine) Configure(cfgs map[string]Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, cfg := range cfgs {
		a, ok := e.annotators[name]
		if !ok {
			e.logger.Warn("config for unknown strategy ignored", zap.String("strategy", name))
			continue
		}
		if !cfg.Enabled {
			delete(e.annotators, name)
			delete(e.factories, name)
			continue
		}
		e.params[name] = cfg.Params
		if err := a.Init(cfg); err != nil {
			return fmt.Errorf("init strategy %s: %w", name, err)
		}
	}
	return nil
}
