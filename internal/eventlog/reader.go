// Package eventlog implements the incremental byte-offset reader over
// the engine's append-only JSON-lines file (spec.md §4 "Event Log
// Reader", §5 ordering guarantees).
//
// Grounded on the teacher's channel/worker texture (exec.go's
// consumer/result pattern), generalized from a directory walker into an
// incremental tail-follower. File-growth notification is grounded on
// fsnotify usage across the retrieval pack (see SPEC_FULL.md DOMAIN STACK).
package eventlog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/brood-studio/canvasrt/internal/events"
)

// Reader incrementally tails an append-only JSON-lines file, preserving
// line order across partial reads by buffering an unterminated tail
// (spec.md §5).
type Reader struct {
	path string

	mu     sync.Mutex
	offset int64
	tail   []byte

	watcher *fsnotify.Watcher
}

// New opens a Reader at offset 0 against path. The file need not exist
// yet; Poll simply returns no events until it appears.
func New(path string) (*Reader, error) {
	r := &Reader{path: path}
	w, err := fsnotify.NewWatcher()
	if err == nil {
		// Best-effort: watching the containing directory lets Poll be
		// driven by Events() instead of being called on a fixed
		// interval. Failure to watch falls back to plain polling,
		// matching spec.md's "full-file fallback" framing for when the
		// incremental mechanism isn't available.
		if watchErr := w.Add(dirOf(path)); watchErr == nil {
			r.watcher = w
		} else {
			w.Close()
		}
	}
	return r, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// Close releases the underlying file watcher, if any.
func (r *Reader) Close() error {
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

// Events exposes the fsnotify event channel so callers can select on it
// as a suspension point (spec.md §5); nil if watching isn't available.
func (r *Reader) Events() <-chan fsnotify.Event {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Events
}

// Offset returns the current monotonically non-decreasing byte offset.
func (r *Reader) Offset() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offset
}

// Poll reads every complete line appended since the last call and
// decodes each into an events.Event, applied strictly in file order
// (spec.md §5). A line with no trailing newline is buffered as the
// tail and re-attempted on the next call, rather than decoded early.
func (r *Reader) Poll() ([]events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("eventlog: open %s: %w", r.path, err)
	}
	defer f.Close()

	if _, err := f.Seek(r.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("eventlog: seek %s: %w", r.path, err)
	}

	buf := bufio.NewReader(f)
	var out []events.Event
	for {
		chunk, err := buf.ReadBytes('\n')
		if len(chunk) > 0 {
			// r.offset always points past everything consumed so far,
			// including any previously-stashed tail: advance it now so
			// a partial read is never re-decoded from scratch.
			r.offset += int64(len(chunk))
			full := append(r.tail, chunk...)
			r.tail = nil

			if full[len(full)-1] != '\n' {
				// still no newline: stash the combined bytes and stop.
				r.tail = full
				break
			}
			line := bytes.TrimRight(full, "\r\n")
			if len(line) > 0 {
				if ev, decErr := events.Decode(line); decErr == nil {
					out = append(out, ev)
				}
				// malformed line: skip, keep draining.
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return out, fmt.Errorf("eventlog: read %s: %w", r.path, err)
		}
	}
	return out, nil
}

// Reset rewinds the reader to offset 0, used for the "full-file
// fallback" path spec.md §4 describes when incremental state is lost
// (e.g. the log file was rotated to a new inode).
func (r *Reader) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offset = 0
	r.tail = nil
}
