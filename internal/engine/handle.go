package engine

import (
	"context"
	"sync"
)

// Instance wraps one loaded engine behind an exclusive-use guard: at most
// one transcription call executes inside it at a time, system-wide.
// Streaming windows and one-shot requests contend for the same guard and
// must tolerate queuing delay.
type Instance struct {
	mu  sync.Mutex
	eng Engine
}

// NewInstance wraps eng for mutually-exclusive use.
func NewInstance(eng Engine) *Instance {
	return &Instance{eng: eng}
}

// Transcribe acquires the guard, runs the call, and releases the guard as
// soon as the call returns.
func (i *Instance) Transcribe(ctx context.Context, samples []float32, params Params) (Result, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.eng.Transcribe(ctx, samples, params)
}

// Close releases the underlying engine. Waits for any in-flight call.
func (i *Instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.eng.Close()
}

// Handle is the shared-ownership wrapper around the singleton engine
// instance. Many goroutines may cheaply check Loaded or fetch the instance
// without contending for the transcription guard. The instance is created
// once on successful load and never replaced while valid.
type Handle struct {
	mu   sync.RWMutex
	inst *Instance
}

// NewHandle returns an empty handle: Loaded reports false until Install.
func NewHandle() *Handle {
	return &Handle{}
}

// Loaded reports whether an engine instance has been installed.
func (h *Handle) Loaded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.inst != nil
}

// Get returns the installed instance, or (nil, false) when no load has
// succeeded yet.
func (h *Handle) Get() (*Instance, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.inst == nil {
		return nil, false
	}
	return h.inst, true
}

// Install publishes a freshly loaded engine. Later installs are ignored so
// an already-published instance is never torn out from under readers.
func (h *Handle) Install(eng Engine) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inst != nil {
		return
	}
	h.inst = NewInstance(eng)
}
