package version

import "fmt"

// Version/Commit 可在构建时通过 -ldflags 注入，默认使用开发占位符。
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Info 是 /-/status 等诊断接口返回的构建信息。
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// Current 返回当前进程的构建信息。
func Current() Info {
	return Info{Version: Version, Commit: Commit}
}

// String 返回便于 CLI 打印的完整版本信息。
func (i Info) String() string {
	return fmt.Sprintf("worldsnap %s (%s)", i.Version, i.Commit)
}

// Full 等价于 Current().String()。
func Full() string {
	return Current().String()
}
