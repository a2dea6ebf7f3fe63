package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := fixture(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if !filepath.IsAbs(cfg.Global.SavePath) {
		t.Fatalf("SavePath 应被转换为绝对路径: %s", cfg.Global.SavePath)
	}
	if cfg.Global.AutoSaveInterval.DurationValue() != 2*time.Minute {
		t.Fatalf("AutoSaveInterval 解析错误: %s", cfg.Global.AutoSaveInterval.DurationValue())
	}
	if cfg.Global.DataVersion != DefaultDataVersion {
		t.Fatalf("DataVersion 应使用默认值，实际 %d", cfg.Global.DataVersion)
	}
	if cfg.Capture.Advancements || !cfg.Capture.Players || !cfg.Capture.Entities {
		t.Fatalf("Capture 段解析错误: %+v", cfg.Capture)
	}
	wantBehavior := BehaviorConfig{ModifyEntityBehavior: true, NoAI: true, Invulnerable: true}
	if diff := cmp.Diff(wantBehavior, cfg.Entity.Behavior); diff != "" {
		t.Fatalf("Behavior 段不符 (-want +got):\n%s", diff)
	}
	if !cfg.Entity.Metadata.CaptureTimestamp {
		t.Fatalf("CaptureTimestamp 默认应开启")
	}
	if cfg.Entity.Censor.LastDeathLocation {
		t.Fatalf("LastDeathLocation 应被配置关闭")
	}
	wantDims := []string{"minecraft:overworld", "minecraft:the_end"}
	if diff := cmp.Diff(wantDims, cfg.Simulation.Dimensions); diff != "" {
		t.Fatalf("维度应被规范化 (-want +got):\n%s", diff)
	}
	if cfg.Simulation.Players != 1 {
		t.Fatalf("Simulation.Players 应使用默认值")
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cfgPath := fixture(t, "missing.toml")

	_, err := Load(cfgPath)
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("应返回 FieldError，实际: %v", err)
	}
	if fieldErr.Field != "Global.SavePath" {
		t.Fatalf("unexpected field %s", fieldErr.Field)
	}
}

func TestValidateRules(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad log level", func(c *Config) { c.Global.LogLevel = "loud" }, "Global.LogLevel"},
		{"negative autosave", func(c *Config) { c.Global.AutoSaveInterval = Duration(-time.Second) }, "Global.AutoSaveInterval"},
		{"zero tick", func(c *Config) { c.Global.TickRate = 0 }, "Global.TickRate"},
		{"zero data version", func(c *Config) { c.Global.DataVersion = 0 }, "Global.DataVersion"},
		{"negative actors", func(c *Config) { c.Simulation.Actors = -1 }, "Simulation.Actors"},
		{"actors without dimensions", func(c *Config) { c.Simulation.Dimensions = nil }, "Simulation.Dimensions"},
		{"duplicate dimension", func(c *Config) {
			c.Simulation.Dimensions = []string{"overworld", "minecraft:overworld"}
		}, "Simulation.Dimensions[1]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			var fieldErr FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fieldErr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, fieldErr.Field)
			}
		})
	}
}

func TestValidateListenAddr(t *testing.T) {
	testCases := []struct {
		addr      string
		shouldErr bool
	}{
		{"", false},
		{"127.0.0.1:7070", false},
		{":8080", false},
		{"localhost", true},
		{"127.0.0.1:70000", true},
	}

	for _, tc := range testCases {
		t.Run(tc.addr, func(t *testing.T) {
			cfg := validConfig()
			cfg.Global.ListenAddr = tc.addr
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for %q", tc.addr)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for %q: %v", tc.addr, err)
			}
		})
	}
}

func TestEnabledSources(t *testing.T) {
	got := CaptureConfig{Players: true, Entities: true}.EnabledSources()
	if diff := cmp.Diff([]string{"entities", "players"}, got); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			LogLevel:    "info",
			SavePath:    "./world",
			TickRate:    Duration(50 * time.Millisecond),
			DataVersion: DefaultDataVersion,
		},
		Capture: CaptureConfig{Players: true, Advancements: true, Entities: true},
		Simulation: SimulationConfig{
			Actors:     4,
			Players:    1,
			Dimensions: []string{"minecraft:overworld"},
		},
	}
}
