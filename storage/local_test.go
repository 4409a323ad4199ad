package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := TrackKey("p1", "t1")
	if key != "projects/p1/audio/t1.mp3" {
		t.Fatalf("TrackKey = %q", key)
	}
	body := []byte("ID3 fake mp3 body")
	if err := store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "audio/mpeg"); err != nil {
		t.Fatal(err)
	}

	obj, info, err := store.Open(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	defer obj.Close()
	if info.Size != int64(len(body)) || info.ContentType != "audio/mpeg" {
		t.Fatalf("info = %+v", info)
	}
	if _, err := obj.Seek(4, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	rest, _ := io.ReadAll(obj)
	if string(rest) != "fake mp3 body" {
		t.Fatalf("read after seek = %q", rest)
	}
}

func TestLocalStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := NewLocalStore(t.TempDir())

	for _, key := range []string{TrackKey("p1", "a"), TrackKey("p1", "b"), TrackKey("p2", "c")} {
		if err := store.Put(ctx, key, strings.NewReader(key), 0, ""); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.Delete(ctx, TrackKey("p1", "a")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, TrackKey("p1", "a")); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("second delete: %v", err)
	}

	if err := store.DeletePrefix(ctx, ProjectPrefix("p1")); err != nil {
		t.Fatal(err)
	}
	objects, stats, err := store.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 1 || objects[0].Key != TrackKey("p2", "c") || stats.TotalObjects != 1 {
		t.Fatalf("objects = %+v", objects)
	}
	if _, _, err := store.Open(ctx, TrackKey("p1", "b")); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("open deleted: %v", err)
	}
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir())
	for _, key := range []string{"../etc/passwd", "a/../../b", "/abs", ""} {
		if err := store.Put(context.Background(), key, strings.NewReader("x"), 1, ""); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range tests {
		if got := formatSize(in); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", in, got, want)
		}
	}
}
