package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestWatch_ReloadsExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := OpenSettings(path)
	if err != nil {
		t.Fatalf("OpenSettings() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan Settings, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, zaptest.NewLogger(t), func(st Settings) { changes <- st })
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("autoSuspend: false\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got.AutoSuspend {
			t.Errorf("reloaded AutoSuspend = true, want false")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after external edit")
	}
}
