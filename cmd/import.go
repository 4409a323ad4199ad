package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"DMPlayer/cache"
	"DMPlayer/core/project"
	"DMPlayer/db"
	"DMPlayer/logger"
	"DMPlayer/model"
	"DMPlayer/repository"
	"DMPlayer/server"

	"github.com/spf13/cobra"
)

var (
	importProject string
	importOwner   string
	importWatch   bool
	importSettle  time.Duration
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "批量导入目录中的MP3到项目",
	Long:  `将本地目录中的MP3文件导入到指定项目，使用 --watch 持续监听新文件。`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			return err
		}
		defer db.CloseGormDB(gdb)
		if err := db.AutoMigrate(gdb); err != nil {
			return err
		}

		owner, err := repository.NewGormUserRepository(gdb).GetByEmail(ctx, importOwner)
		if err != nil {
			return err
		}
		if owner == nil {
			return fmt.Errorf("用户不存在: %s", importOwner)
		}

		// 服务器使用缓存时需要同步失效
		projectCache := cache.NewProjectCache(nil, cfg.CacheTTL)
		if cfg.RedisAddr() != "" {
			if err := db.ConnectRedis(cfg); err != nil {
				return err
			}
			defer db.CloseRedis()
			projectCache = cache.NewProjectCache(db.RedisClient, cfg.CacheTTL)
		}

		store, err := server.NewAudioStore(ctx, cfg)
		if err != nil {
			return err
		}
		svc := project.NewService(
			repository.NewGormProjectRepository(gdb),
			repository.NewGormTrackRepository(gdb),
			repository.NewGormCueRepository(gdb),
			store,
			project.WithCache(projectCache),
			project.WithUploadConcurrency(cfg.UploadConcurrency),
		)

		im := project.NewImporter(svc, owner.ID, importProject, args[0])
		im.Settle = importSettle

		tracks, err := im.ImportDir(ctx)
		if err != nil {
			return err
		}
		printImported(tracks)
		if !importWatch {
			return nil
		}

		fmt.Printf("监听目录 %s，按 Ctrl+C 退出\n", args[0])
		err = im.Watch(ctx, printImported)
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func printImported(tracks []model.Track) {
	for _, t := range tracks {
		fmt.Printf("  + %s (%s, %.1fs)\n", t.DisplayName, t.OriginalName, t.Duration)
	}
	if len(tracks) > 0 {
		logger.Info("Tracks imported", logger.Int("count", len(tracks)))
	}
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importProject, "project", "", "目标项目ID")
	importCmd.Flags().StringVar(&importOwner, "owner-email", "", "项目所有者的邮箱")
	importCmd.Flags().BoolVarP(&importWatch, "watch", "w", false, "导入后继续监听新文件")
	importCmd.Flags().DurationVar(&importSettle, "settle", time.Second, "文件停止变化多久后导入")
	importCmd.MarkFlagRequired("project")
	importCmd.MarkFlagRequired("owner-email")
}
