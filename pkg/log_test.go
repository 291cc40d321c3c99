package pkg

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"m7s.live/framering/pkg/config"
)

func TestParseLevel(t *testing.T) {
	for s, expect := range map[string]slog.Level{
		"trace": TraceLevel,
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		if l := ParseLevel(s); l != expect {
			t.Errorf("%s: %s", s, l)
		}
	}
}

func TestMultiLogHandler(t *testing.T) {
	var debug, warn bytes.Buffer
	dh := slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug})
	wh := slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn})
	h := NewMultiLogHandler(slog.LevelDebug, dh)
	h.Add(wh)
	rb := NewRingBuffer(64, 1, "log")
	rb.Logger = slog.New(h).With("ring", rb.Name())
	rb.Put(frame(64, 0), 0, false, nil) // 超过容量
	rb.Put(frame(8, 0), 0, false, nil)
	rb.Put(frame(8, 0), 0, false, nil) // 空间不足
	if !strings.Contains(warn.String(), "drop frame bigger than ring") || strings.Contains(warn.String(), "ring is full") {
		t.Fatalf("warn output: %s", warn.String())
	}
	if !strings.Contains(debug.String(), "drop frame for ring is full") || !strings.Contains(debug.String(), "ring=log") {
		t.Fatalf("debug output: %s", debug.String())
	}
	h.Remove(wh)
	warn.Reset()
	rb.Put(frame(64, 0), 0, false, nil)
	if warn.Len() != 0 {
		t.Fatal("removed handler still called")
	}
	// 先派生的 logger 也能收到之后添加的 handler
	var late bytes.Buffer
	sinkLogger := slog.New(h).With("ring", "late").WithGroup("sink")
	h.Add(slog.NewTextHandler(&late, nil))
	rb.Put(frame(64, 0), 0, false, nil)
	sinkLogger.Info("started", "name", "rtp")
	if out := late.String(); !strings.Contains(out, "ring=log") || !strings.Contains(out, "ring=late sink.name=rtp") {
		t.Fatalf("late output: %s", out)
	}
}

func TestNewLogHandler(t *testing.T) {
	h, err := NewLogHandler(&config.Log{Level: "debug"})
	if err != nil || len(h.handlers) != 1 {
		t.Fatal(err)
	}
	h, err = NewLogHandler(&config.Log{Level: "trace", Path: t.TempDir(), Size: 1 << 20, Formatter: "2006-01-02T15", MaxFiles: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(h.handlers) != 2 || !h.Enabled(context.Background(), TraceLevel) {
		t.Fatal("file handler missing")
	}
	slog.New(h).Debug("log to file", "ring", "test")
}

func TestJSONLogHandler(t *testing.T) {
	var out bytes.Buffer
	h := NewJSONLogHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}, nil)
	rb := NewRingBuffer(64, 1, "json")
	rb.Logger = slog.New(h).With("ring", rb.Name())
	rb.corrupt("element invalid", "error", ErrRecordTrailer, "index", 8)
	var payload map[string]any
	if err := json.Unmarshal(out.Bytes(), &payload); err != nil {
		t.Fatal(err, out.String())
	}
	if payload["ring"] != "json" || payload["message"] != "element invalid" || payload["level"] != "ERROR" {
		t.Fatalf("payload %v", payload)
	}
	if _, ok := payload["error"].(map[string]any); !ok {
		t.Fatalf("error %v", payload["error"])
	}
	if extra, ok := payload["extra"].(map[string]any); !ok || extra["index"] != float64(8) {
		t.Fatalf("extra %v", payload["extra"])
	}
	out.Reset()
	slog.New(h.WithGroup("sink")).Log(context.Background(), TraceLevel, "skip")
	if out.Len() != 0 {
		t.Fatal("trace level written")
	}
}
