package main

import (
	"fmt"

	"github.com/worldsnap/worldsnap/internal/config"
	"github.com/worldsnap/worldsnap/internal/version"
)

// printVersion 输出构建信息以及默认写入存档的 DataVersion。
func printVersion() {
	fmt.Fprintf(stdOut, "%s data-version=%d\n", version.Full(), config.DefaultDataVersion)
}
