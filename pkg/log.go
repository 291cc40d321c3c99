package pkg

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/alchemy/rotoslog"
	"github.com/phsym/console-slog"

	"m7s.live/framering/pkg/config"
)

const TraceLevel = slog.Level(-8)

var _ slog.Handler = (*MultiLogHandler)(nil)

func ParseLevel(level string) slog.Level {
	var lv slog.LevelVar
	if level == "trace" {
		lv.Set(TraceLevel)
	} else {
		lv.UnmarshalText([]byte(level))
	}
	return lv.Level()
}

// MultiLogHandler 把同一条日志分发给多个 handler
// WithAttrs/WithGroup 派生的子 handler 会跟随 Add 和 Remove
type MultiLogHandler struct {
	mu       sync.RWMutex
	handlers []slog.Handler
	origins  []slog.Handler // handlers[i] 由 origins[i] 派生
	children map[*MultiLogHandler]func(slog.Handler) slog.Handler
	level    slog.Leveler
}

func NewMultiLogHandler(level slog.Leveler, handlers ...slog.Handler) *MultiLogHandler {
	return &MultiLogHandler{handlers: handlers, origins: slices.Clone(handlers), level: level}
}

func (m *MultiLogHandler) add(origin, h slog.Handler) {
	m.mu.Lock()
	m.handlers = append(m.handlers, h)
	m.origins = append(m.origins, origin)
	children := maps.Clone(m.children)
	m.mu.Unlock()
	for child, derive := range children {
		child.add(origin, derive(h))
	}
}

func (m *MultiLogHandler) Add(h slog.Handler) {
	m.add(h, h)
}

func (m *MultiLogHandler) Remove(h slog.Handler) {
	m.mu.Lock()
	if i := slices.Index(m.origins, h); i != -1 {
		// Handle 可能正在遍历旧的切片
		m.handlers = slices.Delete(slices.Clone(m.handlers), i, i+1)
		m.origins = slices.Delete(slices.Clone(m.origins), i, i+1)
	}
	children := maps.Clone(m.children)
	m.mu.Unlock()
	for child := range children {
		child.Remove(h)
	}
}

// Enabled implements slog.Handler.
func (m *MultiLogHandler) Enabled(_ context.Context, l slog.Level) bool {
	if m.level == nil {
		return l >= slog.LevelInfo
	}
	return l >= m.level.Level()
}

// Handle implements slog.Handler.
func (m *MultiLogHandler) Handle(ctx context.Context, rec slog.Record) error {
	m.mu.RLock()
	handlers := m.handlers
	m.mu.RUnlock()
	for _, h := range handlers {
		if !h.Enabled(ctx, rec.Level) {
			continue
		}
		if err := h.Handle(ctx, rec.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiLogHandler) derive(fn func(slog.Handler) slog.Handler) *MultiLogHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := &MultiLogHandler{
		handlers: make([]slog.Handler, len(m.handlers)),
		origins:  slices.Clone(m.origins),
		level:    m.level,
	}
	for i, h := range m.handlers {
		result.handlers[i] = fn(h)
	}
	if m.children == nil {
		m.children = make(map[*MultiLogHandler]func(slog.Handler) slog.Handler)
	}
	m.children[result] = fn
	return result
}

// WithAttrs implements slog.Handler.
func (m *MultiLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler {
		return h.WithAttrs(attrs)
	})
}

// WithGroup implements slog.Handler.
func (m *MultiLogHandler) WithGroup(name string) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler {
		return h.WithGroup(name)
	})
}

// NewLogHandler 控制台输出，配置了 Path 时同时写入滚动日志文件
func NewLogHandler(conf *config.Log) (h *MultiLogHandler, err error) {
	level := ParseLevel(conf.Level)
	h = NewMultiLogHandler(level, console.NewHandler(os.Stdout, &console.HandlerOptions{Level: level, TimeFormat: "15:04:05.000"}))
	if conf.Path == "" {
		return
	}
	builder := func(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
		return console.NewHandler(w, &console.HandlerOptions{NoColor: true, Level: level, TimeFormat: "2006-01-02 15:04:05.000"})
	}
	var file slog.Handler
	if file, err = rotoslog.NewHandler(rotoslog.LogHandlerBuilder(builder), rotoslog.LogDir(conf.Path), rotoslog.MaxFileSize(conf.Size), rotoslog.DateTimeLayout(conf.Formatter), rotoslog.MaxRotatedFiles(conf.MaxFiles)); err == nil {
		h.Add(file)
	}
	return
}
