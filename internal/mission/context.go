package mission

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Run identifies one collection run.
type Run struct {
	ID        string
	URL       string
	StartedAt time.Time
	Phase     string
}

// Context holds the run currently in progress
type Context struct {
	mu  sync.RWMutex
	run Run
}

// NewContext creates a new Context with no run started
func NewContext() *Context {
	return &Context{
		run: Run{Phase: "idle"},
	}
}

// Begin starts a new run against url and returns it
func (mc *Context) Begin(url string, now time.Time) Run {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.run = Run{
		ID:        uuid.NewString(),
		URL:       url,
		StartedAt: now,
		Phase:     "init",
	}
	return mc.run
}

// Current returns the run in progress
func (mc *Context) Current() Run {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.run
}

// SetPhase records the phase the run is in
func (mc *Context) SetPhase(phase string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.run.Phase = phase
}

// LogAttrs returns the run attributes added to every log record.
func (mc *Context) LogAttrs() []slog.Attr {
	run := mc.Current()
	if run.ID == "" {
		return nil
	}
	return []slog.Attr{
		slog.String("runId", run.ID),
		slog.String("phase", run.Phase),
	}
}
