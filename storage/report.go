package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// PrintBucketStatus 打印存储状态报告
func PrintBucketStatus(ctx context.Context, w io.Writer, store AudioStore, prefix string, listFiles bool) error {
	objects, stats, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "前缀过滤: %q\n", prefix)
	fmt.Fprintf(w, "总文件数: %d\n", stats.TotalObjects)
	fmt.Fprintf(w, "总存储大小: %s\n", formatSize(stats.TotalSize))
	if !stats.LastModified.IsZero() {
		fmt.Fprintf(w, "最后更新时间: %s\n", stats.LastModified.Format(time.DateTime))
	}
	if !listFiles {
		return nil
	}

	fmt.Fprintln(w, "\n文件列表:")
	for _, obj := range objects {
		fmt.Fprintf(w, "  ├─ %s (%s, %s)\n", obj.Key, formatSize(obj.Size), obj.LastModified.Format(time.DateTime))
	}
	return nil
}

// formatSize 格式化文件大小
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
