package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

func (s *BucketStats) add(obj ObjectInfo) {
	s.TotalObjects++
	s.TotalSize += obj.Size
	if obj.LastModified.After(s.LastModified) {
		s.LastModified = obj.LastModified
	}
}

// Object is an opened stored file. It supports seeking so it can back
// byte-range responses.
type Object interface {
	io.ReadSeekCloser
}

// AudioStore keeps uploaded audio files.
type AudioStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (Object, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object under prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error)
}

// TrackKey is the storage key of an uploaded track.
func TrackKey(projectID, trackID string) string {
	return path.Join("projects", projectID, "audio", trackID+".mp3")
}

// ProjectPrefix is the key prefix holding every file of a project.
func ProjectPrefix(projectID string) string {
	return path.Join("projects", projectID) + "/"
}

// cleanKey rejects keys escaping the store root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || strings.HasPrefix(key, "/") || cleaned != strings.TrimSuffix(key, "/") {
		return "", errors.New("invalid object key: " + key)
	}
	return cleaned, nil
}
