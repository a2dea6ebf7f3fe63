package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/worldsnap/worldsnap/internal/dimension"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	if strings.TrimSpace(g.SavePath) == "" {
		return newFieldError("Global.SavePath", "不能为空")
	}
	if g.AutoSaveInterval.DurationValue() < 0 {
		return newFieldError("Global.AutoSaveInterval", "不能为负数")
	}
	if g.TickRate.DurationValue() <= 0 {
		return newFieldError("Global.TickRate", "必须大于 0")
	}
	if g.DataVersion <= 0 {
		return newFieldError("Global.DataVersion", "必须大于 0")
	}
	if g.LogMaxSize < 0 || g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxSize/LogMaxBackups", "不能为负数")
	}
	if g.ListenAddr != "" {
		if err := validateListenAddr(g.ListenAddr); err != nil {
			return fmt.Errorf("Global.ListenAddr: %w", err)
		}
	}

	s := &c.Simulation
	if s.Actors < 0 {
		return newFieldError("Simulation.Actors", "不能为负数")
	}
	if s.Players < 0 {
		return newFieldError("Simulation.Players", "不能为负数")
	}
	if s.Actors > 0 && len(s.Dimensions) == 0 {
		return newFieldError("Simulation.Dimensions", "至少需要一个维度")
	}
	seen := map[string]struct{}{}
	for i, raw := range s.Dimensions {
		key, err := dimension.NormalizeKey(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", indexedField("Simulation.Dimensions", i), err)
		}
		if _, dup := seen[key]; dup {
			return newFieldError(indexedField("Simulation.Dimensions", i), "重复")
		}
		seen[key] = struct{}{}
		s.Dimensions[i] = key
	}

	return nil
}

func validateListenAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.Contains(host, " ") {
		return errors.New("主机名不允许包含空格")
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("端口必须在 1-65535: %s", port)
	}
	return nil
}
