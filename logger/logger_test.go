package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestUninitializedLoggerIsNoop(t *testing.T) {
	Info("not initialised", String("k", "v"))
	Sync()
}

func TestLevelMapping(t *testing.T) {
	tests := map[LogLevel]zapcore.Level{
		DebugLevel: zapcore.DebugLevel,
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		"verbose":  zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := in.zapLevel(); got != want {
			t.Errorf("%q: got %v, want %v", in, got, want)
		}
	}
}

func TestBuildWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	l := build(Config{Level: WarnLevel, OutputPath: path, MaxSize: 1, DisableStdout: true})

	l.Info("dropped")
	l.Warn("kept", Int("n", 3))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") || !strings.Contains(out, `"msg":"kept"`) || !strings.Contains(out, `"n":3`) {
		t.Fatalf("unexpected log file content: %s", out)
	}
}
