// Package localfs is the local side of a transfer: plain operating system
// access plus a lock table that knows which files carry unsaved changes.
package localfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwantia/goremote/pkg/remote"
)

// DiscardFunc drops the unsaved changes a holder keeps for a file.
type DiscardFunc func() error

type FileSystem struct {
	atomic sync.Mutex

	mu      sync.Mutex
	holders map[string]DiscardFunc
	locked  map[string]struct{}
	// overridden files are writable once despite an editor swap file.
	overridden map[string]struct{}

	dirMode      fs.FileMode
	fileMode     fs.FileMode
	detectEditor bool
}

type Option func(*FileSystem)

// WithEditorSwapDetection treats vim swap files (.name.swp) and emacs lock
// files (.#name) next to a file as unsaved changes held for it. Discard never
// touches those files; it only allows the next Lock to overwrite the file.
func WithEditorSwapDetection() Option {
	return func(f *FileSystem) {
		f.detectEditor = true
	}
}

func WithModes(dir, file fs.FileMode) Option {
	return func(f *FileSystem) {
		f.dirMode = dir
		f.fileMode = file
	}
}

func New(opts ...Option) *FileSystem {
	f := &FileSystem{
		holders:    make(map[string]DiscardFunc),
		locked:     make(map[string]struct{}),
		overridden: make(map[string]struct{}),
		dirMode:    0o755,
		fileMode:   0o644,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var _ remote.LocalFileSystem = (*FileSystem)(nil)

func (f *FileSystem) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(name)
}

func (f *FileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (f *FileSystem) MkdirAll(name string) error {
	return os.MkdirAll(name, f.dirMode)
}

func (f *FileSystem) Open(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// Hold registers unsaved changes for name. The returned function removes the
// registration without discarding anything.
func (f *FileSystem) Hold(name string, discard DiscardFunc) func() {
	key := filepath.Clean(name)

	f.mu.Lock()
	f.holders[key] = discard
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.holders, key)
		f.mu.Unlock()
	}
}

func (f *FileSystem) holder(key string) (DiscardFunc, bool) {
	if discard, ok := f.holders[key]; ok {
		return discard, true
	}
	if !f.detectEditor {
		return nil, false
	}
	if _, ok := f.overridden[key]; ok {
		return nil, false
	}
	for _, swap := range editorFiles(key) {
		if _, err := os.Lstat(swap); err == nil {
			// The editor keeps its buffer; the swap file is its recovery data.
			return func() error {
				f.mu.Lock()
				f.overridden[key] = struct{}{}
				f.mu.Unlock()
				return nil
			}, true
		}
	}
	return nil, false
}

func editorFiles(name string) []string {
	dir, base := filepath.Split(name)
	return []string{
		filepath.Join(dir, "."+base+".swp"),
		filepath.Join(dir, ".#"+base),
	}
}

func (f *FileSystem) Lock(name string) (remote.FileLock, error) {
	key := filepath.Clean(name)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.holder(key); ok {
		return nil, fmt.Errorf("%w: '%s' has unsaved changes", remote.ErrFileLocked, name)
	}
	if _, ok := f.locked[key]; ok {
		return nil, fmt.Errorf("%w: '%s' is being written", remote.ErrFileLocked, name)
	}
	f.locked[key] = struct{}{}
	return &fileLock{fs: f, path: key}, nil
}

func (f *FileSystem) Discard(name string) error {
	key := filepath.Clean(name)

	f.mu.Lock()
	discard, ok := f.holder(key)
	delete(f.holders, key)
	f.mu.Unlock()

	if !ok {
		return nil
	}
	if err := discard(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to discard changes of '%s': %w", name, err)
	}
	return nil
}

// RunAtomic serializes fn against every other atomic action of f.
func (f *FileSystem) RunAtomic(fn func() error) error {
	f.atomic.Lock()
	defer f.atomic.Unlock()
	return fn()
}

type fileLock struct {
	fs       *FileSystem
	path     string
	released bool
}

// Write stages content next to the target and renames it into place, keeping
// the mode of an existing file.
func (l *fileLock) Write(r io.Reader) error {
	if l.released {
		return fmt.Errorf("lock of '%s' already released", l.path)
	}

	mode := l.fs.fileMode
	if st, err := os.Stat(l.path); err == nil {
		mode = st.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), "."+filepath.Base(l.path)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write '%s': %w", l.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), l.path)
}

func (l *fileLock) Release() error {
	if l.released {
		return nil
	}
	l.released = true

	l.fs.mu.Lock()
	delete(l.fs.locked, l.path)
	delete(l.fs.overridden, l.path)
	l.fs.mu.Unlock()
	return nil
}
