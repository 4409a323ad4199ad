package project

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"DMPlayer/logger"
	"DMPlayer/model"

	"github.com/fsnotify/fsnotify"
)

// Importer 将本地目录中的 MP3 文件批量导入到项目
type Importer struct {
	svc       *Service
	userID    int64
	projectID string
	dir       string

	// Settle is how long a file must stay unchanged before it is imported
	// while watching.
	Settle time.Duration

	imported map[string]bool
}

func NewImporter(svc *Service, userID int64, projectID, dir string) *Importer {
	return &Importer{
		svc:       svc,
		userID:    userID,
		projectID: projectID,
		dir:       dir,
		Settle:    time.Second,
		imported:  make(map[string]bool),
	}
}

func fileUpload(path string) (Upload, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Upload{}, err
	}
	return Upload{
		Filename:    filepath.Base(path),
		ContentType: "audio/mpeg",
		Size:        st.Size(),
		Open: func() (io.ReadSeekCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func isMP3Path(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}

// ImportDir imports every MP3 in the directory that was not imported yet.
func (im *Importer) ImportDir(ctx context.Context) ([]model.Track, error) {
	entries, err := os.ReadDir(im.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", im.dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isMP3Path(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(im.dir, e.Name()))
	}
	sort.Strings(paths)
	return im.importFiles(ctx, paths)
}

func (im *Importer) importFiles(ctx context.Context, paths []string) ([]model.Track, error) {
	var uploads []Upload
	var accepted []string
	for _, p := range paths {
		if im.imported[p] {
			continue
		}
		up, err := fileUpload(p)
		if err != nil {
			logger.Warn("skip file", logger.String("file", p), logger.ErrorField(err))
			continue
		}
		uploads = append(uploads, up)
		accepted = append(accepted, p)
	}
	if len(uploads) == 0 {
		return nil, nil
	}

	tracks, err := im.svc.AddTracks(ctx, im.userID, im.projectID, uploads)
	// 探测失败的文件同样不再重试
	for _, p := range accepted {
		im.imported[p] = true
	}
	return tracks, err
}

// Watch imports the directory, then keeps importing MP3 files as they appear
// until ctx is cancelled. onImport is called after each batch.
func (im *Importer) Watch(ctx context.Context, onImport func([]model.Track)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(im.dir); err != nil {
		return fmt.Errorf("监听目录失败: %w", err)
	}

	tracks, err := im.ImportDir(ctx)
	if err != nil {
		return err
	}
	if len(tracks) > 0 && onImport != nil {
		onImport(tracks)
	}

	// 文件稳定性检查的延迟队列
	pendingFiles := make(map[string]time.Time)
	interval := im.Settle / 4
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	checkTicker := time.NewTicker(interval)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && isMP3Path(event.Name) {
				pendingFiles[event.Name] = time.Now()
			}

		case <-checkTicker.C:
			now := time.Now()
			var ready []string
			for path, last := range pendingFiles {
				if now.Sub(last) < im.Settle {
					continue // 文件可能还在写入
				}
				ready = append(ready, path)
				delete(pendingFiles, path)
			}
			if len(ready) == 0 {
				continue
			}
			sort.Strings(ready)
			tracks, err := im.importFiles(ctx, ready)
			if err != nil {
				logger.Error("import failed", logger.Strings("files", ready), logger.ErrorField(err))
				continue
			}
			if len(tracks) > 0 && onImport != nil {
				onImport(tracks)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("文件监听错误", logger.ErrorField(err))
		}
	}
}
