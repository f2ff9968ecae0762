package remote

import (
	"io"
	"io/fs"
)

// FileLock is an exclusive claim on a local file. Write replaces the file
// content atomically.
type FileLock interface {
	Write(r io.Reader) error
	Release() error
}

// LocalFileSystem is the local side of a transfer.
type LocalFileSystem interface {
	Lstat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	MkdirAll(name string) error
	Open(name string) (io.ReadCloser, error)
	// Lock returns ErrFileLocked if the file is held with unsaved changes.
	Lock(name string) (FileLock, error)
	// Discard drops any unsaved changes held for the file.
	Discard(name string) error
	// RunAtomic runs fn as one local write action.
	RunAtomic(fn func() error) error
}
