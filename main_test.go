package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/worldsnap/worldsnap/internal/config"
	"github.com/worldsnap/worldsnap/internal/stats"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("WORLDSNAP_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml", "-save-once", "20"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
	if opts.saveOnce != 20 {
		t.Fatalf("save-once 解析错误: %d", opts.saveOnce)
	}

	if _, err := parseCLIFlags([]string{"-save-once", "-1"}); err == nil {
		t.Fatalf("负数 save-once 应报错")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	cli := captureCLI(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d (stderr=%s)", code, cli.err.String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	cli := captureCLI(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(cli.err.String(), "SavePath") {
		t.Fatalf("错误输出应指明字段，得到 %s", cli.err.String())
	}
}

func TestRunVersionOutput(t *testing.T) {
	cli := captureCLI(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(cli.out.String(), "worldsnap") {
		t.Fatalf("version 输出应包含 worldsnap 标识")
	}
	if !strings.Contains(cli.out.String(), fmt.Sprintf("data-version=%d", config.DefaultDataVersion)) {
		t.Fatalf("version 输出应包含默认 DataVersion，得到 %s", cli.out.String())
	}
}

func TestRunSaveOnceWritesWorld(t *testing.T) {
	dir := t.TempDir()
	savePath := filepath.Join(dir, "world")
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "warn"
SavePath = "%s"

[Simulation]
Seed = 3
Actors = 12
Players = 1
Dimensions = ["minecraft:overworld", "minecraft:the_end"]
`, savePath))

	cli := captureCLI(t)
	code := run(cliOptions{configPath: configPath, saveOnce: 40})
	if code != 0 {
		t.Fatalf("save-once 应成功，得到 %d (stderr=%s)", code, cli.err.String())
	}

	var report stats.Report
	out := cli.out.Bytes()
	if err := json.Unmarshal(out[bytes.IndexByte(out, '{'):], &report); err != nil {
		t.Fatalf("报告应为 JSON: %v", err)
	}
	if report.Counters[stats.CounterEntities] != 12 {
		t.Fatalf("expected 12 entities, got %v", report.Counters)
	}
	if report.Counters[stats.CounterPlayers] != 1 || report.Counters[stats.CounterAdvancements] != 1 {
		t.Fatalf("player and advancements should be saved, got %v", report.Counters)
	}
	for _, sub := range []string{"playerdata", "advancements"} {
		entries, err := os.ReadDir(filepath.Join(savePath, sub))
		if err != nil || len(entries) != 1 {
			t.Fatalf("expected one file in %s, got %v (%v)", sub, entries, err)
		}
	}
}

func TestCaptureOptionsCopiesConfig(t *testing.T) {
	cfg := &config.Config{
		Global:  config.GlobalConfig{DataVersion: 3955},
		Capture: config.CaptureConfig{Players: true},
		Entity: config.EntityConfig{
			Behavior: config.BehaviorConfig{ModifyEntityBehavior: true, Silent: true},
			Censor:   config.CensorConfig{LastDeathLocation: true},
		},
	}
	opts := captureOptions(cfg)
	if opts.DataVersion != 3955 || !opts.Players || opts.Entities || !opts.ModifyEntityBehavior || !opts.Silent || !opts.CensorLastDeathLocation {
		t.Fatalf("unexpected options %+v", opts)
	}
}
