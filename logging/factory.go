package logging

import (
	"sync"

	"go.uber.org/zap"
)

// Factory hands out the named loggers of one host. Every named logger
// derives from the same root, so they share its cores and hooks.
type Factory struct {
	root    Logger
	loggers sync.Map // map[string]Logger
}

// NewFactory builds the root logger from config.
func NewFactory(config Config, hooks ...Hook) *Factory {
	return NewFactoryFrom(NewLogger(config), hooks...)
}

// NewFactoryFrom derives named loggers from root, with hooks attached.
func NewFactoryFrom(root Logger, hooks ...Hook) *Factory {
	if root == nil {
		root = NewNop()
	}
	return &Factory{root: WithHooks(root, hooks...)}
}

// Root returns the logger every named logger derives from.
func (f *Factory) Root() Logger {
	return f.root
}

// GetLogger returns the logger called name, creating it on first use.
func (f *Factory) GetLogger(name string) Logger {
	if v, ok := f.loggers.Load(name); ok {
		return v.(Logger)
	}
	actual, _ := f.loggers.LoadOrStore(name, f.root.Named(name))
	return actual.(Logger)
}

// Zap returns the zap logger called name, for packages that take one.
func (f *Factory) Zap(name string) *zap.Logger {
	return f.GetLogger(name).Zap()
}
