package logview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitLine(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for a line")
		return ""
	}
}

func TestFollowReplayAndStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enricher.log")

	var seed string
	for i := 1; i <= 12; i++ {
		seed += fmt.Sprintf("line-%02d\n", i)
	}
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	got := make(chan string, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, 10, func(s string) { got <- s })
	}()

	// Replay keeps only the last ten lines.
	if first := waitLine(t, got); first != "line-03" {
		t.Fatalf("First replayed line = %q, want line-03", first)
	}
	for i := 4; i <= 12; i++ {
		if line := waitLine(t, got); line != fmt.Sprintf("line-%02d", i) {
			t.Fatalf("Replay out of order at %d: %q", i, line)
		}
	}

	// Appends stream through.
	appendLine(t, path, "line-13\n")
	if line := waitLine(t, got); line != "line-13" {
		t.Fatalf("Appended line = %q", line)
	}

	// Truncation rewinds to the start.
	if err := os.Truncate(path, 0); err != nil {
		t.Fatal(err)
	}
	appendLine(t, path, "fresh-01\n")
	if line := waitLine(t, got); line != "fresh-01" {
		t.Fatalf("Post-truncate line = %q", line)
	}

	// Rotation reopens the new file.
	if err := os.Rename(path, path+".1"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("rotated-01\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if line := waitLine(t, got); line != "rotated-01" {
		t.Fatalf("Post-rotation line = %q", line)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Follow did not stop on cancel")
	}
}

func TestFollowPartialLinesHeldBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "enricher.log")
	if err := os.WriteFile(path, []byte("complete\npartial"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := make(chan string, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Follow(ctx, path, -1, func(s string) { got <- s })

	if line := waitLine(t, got); line != "complete" {
		t.Fatalf("Replayed line = %q", line)
	}

	// The unfinished line must not surface until its newline arrives.
	select {
	case line := <-got:
		t.Fatalf("Partial line emitted early: %q", line)
	case <-time.After(700 * time.Millisecond):
	}

	appendLine(t, path, " now complete\n")
	if line := waitLine(t, got); line != "partial now complete" {
		t.Fatalf("Joined line = %q", line)
	}
}

func TestFollowMissingFile(t *testing.T) {
	err := Follow(context.Background(), filepath.Join(t.TempDir(), "absent.log"), 10, func(string) {})
	if err == nil {
		t.Fatal("Follow accepted a missing file")
	}
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.Fatal(err)
	}
}
