package cmd

import (
	"context"
	"fmt"
	"os"

	"DMPlayer/config"
	"DMPlayer/logger"

	"github.com/spf13/cobra"
)

// quietAnnotation 标记接管终端的命令，日志不输出到 stdout
const quietAnnotation = "quiet-log"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dmplayer",
	Short: "DMPlayer 切换点MP3播放器及项目服务器",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.Config{
			Level:         logger.LogLevel(cfg.LogLevel),
			OutputPath:    cfg.LogFile,
			MaxSize:       cfg.LogMaxSizeMB,
			MaxBackups:    cfg.LogMaxBackups,
			MaxAge:        cfg.LogMaxAgeDays,
			Compress:      true,
			DisableStdout: cmd.Annotations[quietAnnotation] == "true",
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	// 默认启动服务器
	RunE: runServer,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Sync()
		os.Exit(1)
	}
}
