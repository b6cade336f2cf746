package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	ferrors "github.com/chibaminto/compactalarm/internal/foundation/errors"
)

// FileKV persists keys in a single JSON file. Writes go through a temporary
// file and rename so readers never observe a torn payload. The backing file
// is watched with fsnotify so edits made outside this process still reach
// AlarmStore subscribers.
type FileKV struct {
	path string

	mu sync.Mutex

	watcher   *fsnotify.Watcher
	changes   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewFileKV creates the parent directory if needed and starts the file watch.
// A failed watch is a degradation, not an error: the store still works, it
// just cannot see out-of-band edits.
func NewFileKV(path string) (*FileKV, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryPersistence, "create state directory").
			WithContext("dir", dir).
			Build()
	}

	kv := &FileKV{
		path:    path,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("File watch unavailable, external edits will not be noticed", "error", err)
		return kv, nil
	}
	if err := watcher.Add(dir); err != nil {
		slog.Warn("File watch unavailable, external edits will not be noticed", "error", err, "dir", dir)
		_ = watcher.Close()
		return kv, nil
	}

	kv.watcher = watcher
	go kv.watch()
	return kv, nil
}

// Get returns the value for key, with ok=false for an absent key or file.
func (f *FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payload, err := f.readUnlocked()
	if err != nil {
		return nil, false, err
	}
	value, ok := payload[key]
	return value, ok, nil
}

// Set stores the value and atomically rewrites the file.
func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	payload, err := f.readUnlocked()
	if err != nil {
		// A corrupt file is replaced rather than kept broken.
		payload = nil
	}
	if payload == nil {
		payload = make(map[string]json.RawMessage)
	}
	payload[key] = value

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPersistence, "marshal kv payload").Build()
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPersistence, "write temporary state file").
			WithContext("path", tempPath).
			Build()
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPersistence, "replace state file").
			WithContext("path", f.path).
			Build()
	}
	return nil
}

// Changes implements ChangeNotifier.
func (f *FileKV) Changes() <-chan struct{} {
	return f.changes
}

// Close stops the watcher. Safe to call more than once.
func (f *FileKV) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		if f.watcher != nil {
			err = f.watcher.Close()
		}
	})
	return err
}

func (f *FileKV) readUnlocked() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryPersistence, "read state file").
			WithContext("path", f.path).
			Build()
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryPersistence, "decode state file").
			WithContext("path", f.path).
			Build()
	}
	return payload, nil
}

func (f *FileKV) watch() {
	for {
		select {
		case <-f.done:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			// Coalesce bursts into a single pending signal.
			select {
			case f.changes <- struct{}{}:
			default:
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("File watch error", "error", err)
		}
	}
}
