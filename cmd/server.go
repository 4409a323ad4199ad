package cmd

import (
	"DMPlayer/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动DMPlayer服务器",
	Long:  `启动DMPlayer的HTTP服务器，提供项目管理API、音频流、WebSocket事件和Web界面`,
	RunE:  runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	return server.Start(cfg)
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
