package cmd

import (
	"fmt"
	"os"

	"DMPlayer/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioList   bool
	minioDelete bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和管理MinIO存储桶中的音频文件，支持统计信息、列出文件、按前缀删除。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}
		fmt.Println("MinIO连接成功！")

		if minioDelete {
			if minioPrefix == "" {
				return fmt.Errorf("删除操作需要指定目录前缀")
			}
			fmt.Printf("\n删除目录: %s\n", minioPrefix)
			if err := store.DeletePrefix(ctx, minioPrefix); err != nil {
				return fmt.Errorf("删除目录失败: %w", err)
			}
			fmt.Println("删除完成")
			return nil
		}

		return storage.PrintBucketStatus(ctx, os.Stdout, store, minioPrefix, minioList)
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件或指定要删除的目录")
	minioCmd.Flags().BoolVarP(&minioList, "list", "l", false, "列出文件")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定目录及其下的所有文件")

	minioCmd.Example = `  # 显示存储桶统计信息
  dmplayer minio

  # 列出某个项目的音频文件
  dmplayer minio -l -p "projects/<id>/"

  # 删除目录及其下的所有文件
  dmplayer minio -d -p "projects/<id>/"`
}
