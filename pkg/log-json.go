package pkg

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	slogcommon "github.com/samber/slog-common"
)

var _ slog.Handler = (*JSONLogHandler)(nil)

var ErrorKeys = []string{"error", "err"}

type Converter func(addSource bool, replaceAttr func(groups []string, a slog.Attr) slog.Attr, loggerAttr []slog.Attr, groups []string, record *slog.Record) map[string]any

func DefaultConverter(addSource bool, replaceAttr func(groups []string, a slog.Attr) slog.Attr, loggerAttr []slog.Attr, groups []string, record *slog.Record) map[string]any {
	attrs := slogcommon.AppendRecordAttrsToAttrs(loggerAttr, groups, record)
	if addSource {
		attrs = append(attrs, slogcommon.Source("source", record))
	}
	attrs = slogcommon.ReplaceAttrs(replaceAttr, []string{}, attrs...)
	attrs = slogcommon.RemoveEmptyAttrs(attrs)
	extra := slogcommon.AttrsToMap(attrs...)
	payload := map[string]any{
		"timestamp": record.Time.UTC(),
		"level":     record.Level.String(),
		"message":   record.Message,
	}
	for _, errorKey := range ErrorKeys {
		if v, ok := extra[errorKey]; ok {
			if err, ok := v.(error); ok {
				payload[errorKey] = slogcommon.FormatError(err)
				delete(extra, errorKey)
				break
			}
		}
	}
	// 环名提到顶层，方便按环过滤
	if ring, ok := extra["ring"]; ok {
		payload["ring"] = ring
		delete(extra, "ring")
	}
	payload["extra"] = extra
	return payload
}

// JSONLogHandler 每条日志输出一行 JSON，用于采集到日志系统
type JSONLogHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	opts      slog.HandlerOptions
	attrs     []slog.Attr
	groups    []string
	converter Converter
}

func NewJSONLogHandler(w io.Writer, opts *slog.HandlerOptions, converter Converter) *JSONLogHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}
	if converter == nil {
		converter = DefaultConverter
	}
	return &JSONLogHandler{mu: &sync.Mutex{}, w: w, opts: *opts, converter: converter}
}

func (h *JSONLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.Level == nil {
		return level >= slog.LevelInfo
	}
	return level >= h.opts.Level.Level()
}

func (h *JSONLogHandler) Handle(ctx context.Context, r slog.Record) error {
	fromContext := slogcommon.ContextExtractor(ctx, nil)
	payload := h.converter(h.opts.AddSource, h.opts.ReplaceAttr, append(h.attrs, fromContext...), h.groups, &r)
	line, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(append(line, '\n'))
	return err
}

func (h *JSONLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JSONLogHandler{
		mu:        h.mu,
		w:         h.w,
		opts:      h.opts,
		attrs:     slogcommon.AppendAttrsToGroup(h.groups, h.attrs, attrs...),
		groups:    h.groups,
		converter: h.converter,
	}
}

func (h *JSONLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JSONLogHandler{
		mu:        h.mu,
		w:         h.w,
		opts:      h.opts,
		attrs:     h.attrs,
		groups:    append(append([]string(nil), h.groups...), name),
		converter: h.converter,
	}
}
