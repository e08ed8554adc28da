package main

import (
	"context"
	"fmt"
	"os"

	"gridpointer/commands"
	"gridpointer/fault"
	"gridpointer/logger"
)

// gridpointer 入口：解析子命令并运行；致命错误退出码为 1
func main() {
	err := commands.New().ExecuteContext(context.Background())
	logger.Sync()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "gridpointer: %v\n", err)
		if fault.KindOf(err) == fault.KindFatal {
			logger.Log.Errorf("fatal: %v", err)
		}
		os.Exit(1)
	}
}
