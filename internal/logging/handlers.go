package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// RunAttrs returns the attributes of the collection run in progress, or nil
// when no run has started.
type RunAttrs func() []slog.Attr

// fanout delivers each record to every sink enabled for its level. A failing
// sink does not stop delivery to the others.
type fanout []slog.Handler

func newFanout(sinks ...slog.Handler) fanout {
	return slices.DeleteFunc(sinks, func(h slog.Handler) bool { return h == nil })
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) derive(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// runHandler stamps every record with the attributes of the current run at
// the time the record is handled.
type runHandler struct {
	slog.Handler
	attrs RunAttrs
}

func (h runHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.attrs != nil {
		r.AddAttrs(h.attrs()...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return runHandler{Handler: h.Handler.WithAttrs(attrs), attrs: h.attrs}
}

func (h runHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return runHandler{Handler: h.Handler.WithGroup(name), attrs: h.attrs}
}
