package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefault 测试默认值标签
func TestDefault(t *testing.T) {
	t.Run(t.Name(), func(t *testing.T) {
		var demo Demo
		if err := Parse(&demo, nil); err != nil {
			t.Fatal(err)
		}
		if demo.Ring.ElementSize != 65536 || demo.Ring.ElementCount != 32 || demo.Ring.Name != "video" {
			t.Errorf("ring %+v", demo.Ring)
		}
		if demo.RTP.Interval != 5*time.Millisecond || demo.RTP.PayloadType != 96 || !demo.RTP.Enable {
			t.Errorf("rtp %+v", demo.RTP)
		}
		if demo.Log.Formatter != "2006-01-02T15" || demo.Record.Enable {
			t.Fail()
		}
	})
}

// TestUserFile 测试配置文件覆盖默认值，环境变量覆盖配置文件
func TestUserFile(t *testing.T) {
	t.Setenv("FRAMERING_RING_NAME", "env")
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := []byte("ring:\n  elementsize: 1024\n  name: file\nrtp:\n  interval: 10ms\nsource:\n  duration: 2s\n")
	if err := os.WriteFile(file, content, 0644); err != nil {
		t.Fatal(err)
	}
	var demo Demo
	if err := LoadFile(file, &demo, "FRAMERING"); err != nil {
		t.Fatal(err)
	}
	if demo.Ring.ElementSize != 1024 {
		t.Errorf("elementsize %d", demo.Ring.ElementSize)
	}
	if demo.Ring.ElementCount != 32 {
		t.Errorf("elementcount %d", demo.Ring.ElementCount)
	}
	if demo.Ring.Name != "env" {
		t.Errorf("name %s", demo.Ring.Name)
	}
	if demo.RTP.Interval != 10*time.Millisecond || demo.Source.Duration != 2*time.Second {
		t.Errorf("durations %s %s", demo.RTP.Interval, demo.Source.Duration)
	}
}

func TestInvalidDuration(t *testing.T) {
	var demo Demo
	err := Parse(&demo, map[string]any{"rtp": map[string]any{"interval": 100}})
	if err == nil {
		t.Error("duration without unit must fail")
	}
}

func TestMissingFile(t *testing.T) {
	var ring struct{ Ring }
	if err := LoadFile(filepath.Join(t.TempDir(), "none.yaml"), &ring); err != nil {
		t.Fatal(err)
	}
	if ring.ElementCount != 32 {
		t.Fail()
	}
	var c Config
	if err := c.Parse(&ring); err != nil {
		t.Fatal(err)
	}
	if !c.Has("ring") || c.Get("ring").Get("elementcount").Desc() == "" {
		t.Fail()
	}
	if c.GetMap() == nil {
		t.Fail()
	}
}
