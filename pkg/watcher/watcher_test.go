package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileWatcher_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "form.json")
	if err := os.WriteFile(path, []byte(`{"type":"object"}`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	fw, err := NewFileWatcher(path)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fw.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"type":"object","title":"Updated"}`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case event := <-fw.Events():
		if filepath.Base(event.Path) != "form.json" {
			t.Errorf("Expected event for form.json, got %s", event.Path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for change event")
	}
}

func TestFileWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "form.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	fw, err := NewFileWatcher(path)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fw.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// a change to an unrelated file in the same directory is filtered out
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case event := <-fw.Events():
		t.Errorf("Expected no event for a sibling file, got %+v", event)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFileWatcher_CoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "form.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	fw, err := NewFileWatcher(path)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fw.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// several rapid writes coalesce into one event
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	select {
	case <-fw.Events():
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for coalesced event")
	}

	select {
	case event := <-fw.Events():
		t.Errorf("Expected the burst to coalesce into one event, got another: %+v", event)
	case <-time.After(300 * time.Millisecond):
	}
}
