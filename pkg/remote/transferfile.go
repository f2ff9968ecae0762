package remote

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TransferFile is a node of the unified local/remote tree of one batch.
// Identity is the slash separated path relative to the sync root; a node
// built from a local directory entry equals one built from a remote listing
// when both address the same relative path.
type TransferFile struct {
	client  *Client
	parent  *TransferFile
	name    string
	relPath string
	kind    Kind
	size    int64
	modTime time.Time

	mu             sync.Mutex
	remoteChildren []*TransferFile
	remoteFetched  bool
	localFetched   bool
}

func newRootFile(c *Client) *TransferFile {
	return &TransferFile{
		client: c,
		name:   filepath.Base(c.opts.BaseLocalDirectory),
		kind:   KindDirectory,
		size:   -1,
	}
}

func (f *TransferFile) child(name string, kind Kind, size int64, modTime time.Time) *TransferFile {
	rel := name
	if f.relPath != "" {
		rel = f.relPath + "/" + name
	}
	return &TransferFile{
		client:  f.client,
		parent:  f,
		name:    name,
		relPath: rel,
		kind:    kind,
		size:    size,
		modTime: modTime,
	}
}

// validEntryName reports whether name is a single path segment that cannot
// leave its parent directory on either side.
func validEntryName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// WithinRoot reports whether the node resolves below the sync root on both
// sides.
func (f *TransferFile) WithinRoot() bool {
	if f.relPath == "" {
		return true
	}
	if strings.ContainsRune(f.relPath, 0) || path.Clean(f.relPath) != f.relPath ||
		path.IsAbs(f.relPath) || f.relPath == ".." || strings.HasPrefix(f.relPath, "../") {
		return false
	}
	base := f.client.opts.BaseLocalDirectory
	rel, err := filepath.Rel(base, filepath.Join(base, filepath.FromSlash(f.relPath)))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func fromLocal(parent *TransferFile, info fs.FileInfo) *TransferFile {
	kind := KindOther
	size := int64(-1)
	switch mode := info.Mode(); {
	case mode&fs.ModeSymlink != 0:
		kind = KindLink
	case mode.IsDir():
		kind = KindDirectory
	case mode.IsRegular():
		kind = KindFile
		size = info.Size()
	}
	return parent.child(info.Name(), kind, size, info.ModTime())
}

func fromRemote(parent *TransferFile, rf RemoteFile) *TransferFile {
	size := rf.Size
	if rf.Kind != KindFile {
		size = -1
	}
	return parent.child(rf.Name, rf.Kind, size, rf.ModTime)
}

func (f *TransferFile) Name() string          { return f.name }
func (f *TransferFile) RelativePath() string  { return f.relPath }
func (f *TransferFile) Parent() *TransferFile { return f.parent }
func (f *TransferFile) Kind() Kind            { return f.kind }
func (f *TransferFile) IsRoot() bool          { return f.relPath == "" }
func (f *TransferFile) IsDirectory() bool     { return f.kind == KindDirectory }
func (f *TransferFile) IsFile() bool          { return f.kind == KindFile }
func (f *TransferFile) IsLink() bool          { return f.kind == KindLink }
func (f *TransferFile) ModTime() time.Time    { return f.modTime }

// Size is -1 when unknown.
func (f *TransferFile) Size() int64 { return f.size }

// Key is the identity of the node within a transfer set.
func (f *TransferFile) Key() string { return f.relPath }

func (f *TransferFile) Equal(other *TransferFile) bool {
	return other != nil && f.relPath == other.relPath
}

// Depth is the number of path segments below the sync root.
func (f *TransferFile) Depth() int {
	if f.relPath == "" {
		return 0
	}
	return strings.Count(f.relPath, "/") + 1
}

// ResolveLocalFile returns the absolute local path of the node, regardless of
// the side it was discovered on.
func (f *TransferFile) ResolveLocalFile() string {
	base := f.client.opts.BaseLocalDirectory
	if f.relPath == "" {
		return base
	}
	return filepath.Join(base, filepath.FromSlash(f.relPath))
}

func (f *TransferFile) RemotePath() string {
	base := f.client.BaseRemoteDirectory()
	if f.relPath == "" {
		return base
	}
	return path.Join(base, f.relPath)
}

func (f *TransferFile) ParentRemotePath() string {
	if f.parent != nil {
		return f.parent.RemotePath()
	}
	return path.Dir(f.RemotePath())
}

// linkOnPath reports whether the node or one of its ancestors, excluding the
// sync root, is a symbolic link.
func (f *TransferFile) linkOnPath() bool {
	for n := f; n != nil && !n.IsRoot(); n = n.parent {
		if n.kind == KindLink {
			return true
		}
	}
	return false
}

// LocalChildren re-reads the local directory on every call. Invisible
// entries are dropped.
func (f *TransferFile) LocalChildren() ([]*TransferFile, error) {
	if f.kind != KindDirectory {
		return nil, nil
	}
	local := f.ResolveLocalFile()
	entries, err := f.client.local.ReadDir(local)
	if err != nil {
		return nil, fmt.Errorf("failed to read local directory '%s': %w", local, err)
	}

	children := make([]*TransferFile, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		c := fromLocal(f, info)
		if !f.client.isVisible(c) {
			continue
		}
		children = append(children, c)
	}

	f.mu.Lock()
	f.localFetched = true
	f.mu.Unlock()
	return children, nil
}

// RemoteChildren lists the remote directory once and memoizes the result.
func (f *TransferFile) RemoteChildren() ([]*TransferFile, error) {
	if f.kind != KindDirectory {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remoteFetched {
		return f.remoteChildren, nil
	}

	children, err := f.client.listRemoteChildren(f)
	if err != nil {
		return nil, err
	}
	f.remoteChildren = children
	f.remoteFetched = true
	return children, nil
}

func (f *TransferFile) HasRemoteChildrenFetched() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remoteFetched
}

func (f *TransferFile) HasLocalChildrenFetched() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.localFetched
}

func (f *TransferFile) String() string {
	if f.relPath == "" {
		return "/"
	}
	return f.relPath
}
