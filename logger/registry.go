package logger

import (
	"sync"
	"sync/atomic"
)

// Components used across pixelflow.
const (
	ComponentDAG     = "dag"
	ComponentNodes   = "nodes"
	ComponentProject = "project"
	ComponentRunner  = "runner"
	ComponentServer  = "server"
	ComponentSSE     = "sse"
	ComponentAPI     = "api"
)

var (
	global atomic.Pointer[Logger]

	// derived caches component loggers built from the current global
	// logger. It is dropped whenever the global logger changes.
	derivedMu sync.RWMutex
	derived   = map[string]*Logger{}
	overrides = map[string]*Logger{}
)

// SetGlobalLogger replaces the global logger. Component loggers returned by
// Get afterwards derive from l.
func SetGlobalLogger(l *Logger) {
	global.Store(l)
	derivedMu.Lock()
	derived = map[string]*Logger{}
	derivedMu.Unlock()
}

// GetGlobalLogger returns the global logger, creating a default one on
// first use.
func GetGlobalLogger() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	global.CompareAndSwap(nil, NewDefault("default"))
	return global.Load()
}

// Override makes Get(name) return l, also after SetGlobalLogger. A nil l
// removes the override.
func Override(name string, l *Logger) {
	derivedMu.Lock()
	defer derivedMu.Unlock()
	if l == nil {
		delete(overrides, name)
		return
	}
	overrides[name] = l
}

// Get returns the logger of a component: an override if one is set,
// otherwise the global logger tagged with name.
func Get(name string) *Logger {
	derivedMu.RLock()
	l, ok := overrides[name]
	if !ok {
		l, ok = derived[name]
	}
	derivedMu.RUnlock()
	if ok {
		return l
	}

	l = GetGlobalLogger().WithComponent(name)
	derivedMu.Lock()
	if cached, ok := derived[name]; ok {
		l = cached
	} else {
		derived[name] = l
	}
	derivedMu.Unlock()
	return l
}
