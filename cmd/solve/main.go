// solve 离线求解命令行工具，直接读取 CSV 文件，不依赖数据库和消息队列
package main

import (
	"os"

	"github.com/sysu-ecnc-dev/workforce-optimizer/backend/cmd/solve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
