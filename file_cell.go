package cohere

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileCell is a Cell backed by a file on disk. The file holds one
// codec-encoded value. External writes to the file are picked up through
// fsnotify and notify subscribers, so a controller bound to a FileCell
// tracks edits made outside the process.
type FileCell[V any] struct {
	path  string
	codec Codec

	mu   sync.Mutex
	v    V
	subs map[int]func()
	next int

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileCell opens a FileCell over path using codec. The file must exist
// and decode; a cell that cannot produce an initial value is unusable for
// pull-mode binding.
func NewFileCell[V any](path string, codec Codec) (*FileCell[V], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var v V
	if err := codec.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch file %s: %w", path, err)
	}

	c := &FileCell[V]{
		path:    path,
		codec:   codec,
		v:       v,
		subs:    make(map[int]func()),
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go c.watch()
	return c, nil
}

// Get returns the last decoded value.
func (c *FileCell[V]) Get() V {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

// Set encodes v and writes it to the file.
func (c *FileCell[V]) Set(v V) error {
	data, err := c.codec.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.v = v
	c.mu.Unlock()

	return os.WriteFile(c.path, data, 0o644)
}

// Subscribe registers fn to run after the file changes on disk. The
// returned cancel function revokes the subscription.
func (c *FileCell[V]) Subscribe(fn func()) func() {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close stops watching the file. The cell keeps serving its cached value.
func (c *FileCell[V]) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	close(c.done)
	return c.watcher.Close()
}

func (c *FileCell[V]) watch() {
	for {
		select {
		case <-c.done:
			return

		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			data, err := os.ReadFile(c.path)
			if err != nil {
				continue
			}
			var v V
			if err := c.codec.Unmarshal(data, &v); err != nil {
				continue
			}

			c.mu.Lock()
			c.v = v
			fns := make([]func(), 0, len(c.subs))
			for _, fn := range c.subs {
				fns = append(fns, fn)
			}
			c.mu.Unlock()

			for _, fn := range fns {
				fn()
			}

		case _, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			// Continue watching despite errors
		}
	}
}

// Ensure FileCell implements Cell.
var _ Cell[int] = (*FileCell[int])(nil)
