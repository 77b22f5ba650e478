package logview

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// followPollInterval is the fallback read cadence when no watcher event
// arrives.
const followPollInterval = 500 * time.Millisecond

type follower struct {
	path    string
	fn      func(string)
	file    *os.File
	offset  int64
	pending []byte
}

// Follow emits the last lastN lines of the file (all lines when lastN is
// negative), then streams every appended line to fn until ctx is
// cancelled. Rotated or truncated files are reopened from the start.
// Filesystem events drive the reads when a watcher is available; a 500 ms
// poll covers the rest.
func Follow(ctx context.Context, path string, lastN int, fn func(line string)) error {
	f := &follower{path: filepath.Clean(path), fn: fn}
	if err := f.open(); err != nil {
		return err
	}
	defer f.close()

	f.replay(lastN)

	var events chan fsnotify.Event
	var watchErrs chan error
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(f.path)); err == nil {
			events = watcher.Events
			watchErrs = watcher.Errors
		}
	}

	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
		case _, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
			}
			continue
		case <-ticker.C:
		}

		f.checkRotation()
		f.drain()
	}
}

func (f *follower) open() error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	f.file = file
	return nil
}

func (f *follower) close() {
	if f.file != nil {
		f.file.Close()
	}
}

// replay reads the existing file once and emits its trailing lines. An
// unfinished last line stays pending until its newline arrives.
func (f *follower) replay(lastN int) {
	content, err := io.ReadAll(f.file)
	if err != nil {
		return
	}
	f.offset = int64(len(content))

	text := string(content)
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		f.pending = append(f.pending, content[i+1:]...)
		text = text[:i]
	} else {
		f.pending = append(f.pending, content...)
		text = ""
	}
	if text == "" {
		return
	}

	lines := strings.Split(text, "\n")
	if lastN >= 0 && len(lines) > lastN {
		lines = lines[len(lines)-lastN:]
	}
	for _, line := range lines {
		f.fn(line)
	}
}

// drain reads everything appended since the last wake and emits the
// complete lines.
func (f *follower) drain() {
	if f.file == nil {
		return
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := f.file.Read(buf)
		if n > 0 {
			f.offset += int64(n)
			f.pending = append(f.pending, buf[:n]...)
		}
		if err != nil {
			break
		}
	}

	for {
		i := bytes.IndexByte(f.pending, '\n')
		if i < 0 {
			return
		}
		f.fn(string(f.pending[:i]))
		f.pending = f.pending[i+1:]
	}
}

// checkRotation reopens when the path now names a different file and
// rewinds when the current file shrank underneath the read offset.
func (f *follower) checkRotation() {
	pstat, err := os.Stat(f.path)
	if err != nil {
		// Mid-rotation; the old handle may still receive final writes.
		return
	}
	if f.file == nil {
		f.reopen()
		return
	}
	fstat, err := f.file.Stat()
	if err != nil || !os.SameFile(pstat, fstat) {
		f.reopen()
		return
	}
	if pstat.Size() < f.offset {
		f.file.Seek(0, io.SeekStart)
		f.offset = 0
		f.pending = nil
	}
}

func (f *follower) reopen() {
	if f.file != nil {
		f.file.Close()
		f.file = nil
	}
	file, err := os.Open(f.path)
	if err != nil {
		return
	}
	f.file = file
	f.offset = 0
	f.pending = nil
}
