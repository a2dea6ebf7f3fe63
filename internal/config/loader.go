package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// 未知字段视为错误，避免拼写错误让隐私相关开关静默失效。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectLegacyKeys(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absSave, err := filepath.Abs(cfg.Global.SavePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析存档目录: %w", err)
	}
	cfg.Global.SavePath = absSave

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("SavePath", "./world")
	v.SetDefault("ListenAddr", "")
	v.SetDefault("AutoSaveInterval", "5m")
	v.SetDefault("TickRate", "50ms")
	v.SetDefault("DataVersion", DefaultDataVersion)

	v.SetDefault("Capture.Players", true)
	v.SetDefault("Capture.Advancements", true)
	v.SetDefault("Capture.Entities", true)

	v.SetDefault("Entity.Behavior.ModifyEntityBehavior", false)
	v.SetDefault("Entity.Behavior.NoAI", true)
	v.SetDefault("Entity.Behavior.NoGravity", false)
	v.SetDefault("Entity.Behavior.Invulnerable", true)
	v.SetDefault("Entity.Behavior.Silent", true)
	v.SetDefault("Entity.Metadata.CaptureTimestamp", true)
	v.SetDefault("Entity.Censor.LastDeathLocation", true)

	v.SetDefault("Simulation.Seed", 1)
	v.SetDefault("Simulation.Actors", 64)
	v.SetDefault("Simulation.Players", 1)
	v.SetDefault("Simulation.Dimensions", []string{"minecraft:overworld", "minecraft:the_nether"})
}

// DefaultDataVersion 是写入记录的默认数据版本（1.21.1）。
const DefaultDataVersion = 3955

func applyGlobalDefaults(g *GlobalConfig) {
	if g.TickRate.DurationValue() == 0 {
		g.TickRate = Duration(50 * time.Millisecond)
	}
	if g.DataVersion == 0 {
		g.DataVersion = DefaultDataVersion
	}
	g.LogLevel = strings.ToLower(strings.TrimSpace(g.LogLevel))
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectLegacyKeys 拒绝早期版本使用的 StoragePath/ListenPort，提示改用新字段。
func rejectLegacyKeys(v *viper.Viper) error {
	if v.InConfig("StoragePath") {
		return newFieldError("Global.StoragePath", "字段已弃用，请改用 SavePath")
	}
	if v.InConfig("ListenPort") {
		return newFieldError("Global.ListenPort", "字段已弃用，请改用 ListenAddr")
	}
	return nil
}
