package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数。
type GlobalConfig struct {
	LogLevel         string   `mapstructure:"LogLevel"`
	LogFilePath      string   `mapstructure:"LogFilePath"`
	LogMaxSize       int      `mapstructure:"LogMaxSize"`
	LogMaxBackups    int      `mapstructure:"LogMaxBackups"`
	LogCompress      bool     `mapstructure:"LogCompress"`
	SavePath         string   `mapstructure:"SavePath"`
	ListenAddr       string   `mapstructure:"ListenAddr"`
	AutoSaveInterval Duration `mapstructure:"AutoSaveInterval"`
	TickRate         Duration `mapstructure:"TickRate"`
	DataVersion      int      `mapstructure:"DataVersion"`
}

// CaptureConfig 控制哪些来源参与保存。
type CaptureConfig struct {
	Players      bool `mapstructure:"Players"`
	Advancements bool `mapstructure:"Advancements"`
	Entities     bool `mapstructure:"Entities"`
}

// BehaviorConfig 在 ModifyEntityBehavior 开启时覆盖实体记录中的行为字段。
type BehaviorConfig struct {
	ModifyEntityBehavior bool `mapstructure:"ModifyEntityBehavior"`
	NoAI                 bool `mapstructure:"NoAI"`
	NoGravity            bool `mapstructure:"NoGravity"`
	Invulnerable         bool `mapstructure:"Invulnerable"`
	Silent               bool `mapstructure:"Silent"`
}

// MetadataConfig 控制附加的采集元数据。
type MetadataConfig struct {
	CaptureTimestamp bool `mapstructure:"CaptureTimestamp"`
}

// CensorConfig 列出写盘前需要剔除的隐私字段。
type CensorConfig struct {
	LastDeathLocation bool `mapstructure:"LastDeathLocation"`
}

// EntityConfig 对应 [Entity.*] 配置段。
type EntityConfig struct {
	Behavior BehaviorConfig `mapstructure:"Behavior"`
	Metadata MetadataConfig `mapstructure:"Metadata"`
	Censor   CensorConfig   `mapstructure:"Censor"`
}

// SimulationConfig 描述内置模拟世界的规模。
type SimulationConfig struct {
	Seed       int64    `mapstructure:"Seed"`
	Actors     int      `mapstructure:"Actors"`
	Players    int      `mapstructure:"Players"`
	Dimensions []string `mapstructure:"Dimensions"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global     GlobalConfig     `mapstructure:",squash"`
	Capture    CaptureConfig    `mapstructure:"Capture"`
	Entity     EntityConfig     `mapstructure:"Entity"`
	Simulation SimulationConfig `mapstructure:"Simulation"`
}

// EnabledSources 返回已开启的采集来源名称，供启动日志使用。
func (c CaptureConfig) EnabledSources() []string {
	var result []string
	if c.Entities {
		result = append(result, "entities")
	}
	if c.Players {
		result = append(result, "players")
	}
	if c.Advancements {
		result = append(result, "advancements")
	}
	return result
}
