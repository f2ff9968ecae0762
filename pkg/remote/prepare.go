package remote

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// Root returns the node of the sync root.
func (c *Client) Root() *TransferFile {
	return newRootFile(c)
}

// LocalFile builds the node of a local path, absolute or relative to the
// local base directory, together with its ancestor chain.
func (c *Client) LocalFile(name string) (*TransferFile, error) {
	base := c.opts.BaseLocalDirectory
	abs := name
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(base, name)
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: '%s'", ErrOutsideRoot, name)
	}

	current := c.Root()
	if rel == "." {
		return current, nil
	}
	walked := base
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		walked = filepath.Join(walked, segment)
		info, err := c.local.Lstat(walked)
		if err != nil {
			return nil, err
		}
		current = fromLocal(current, info)
	}
	return current, nil
}

// RemoteFile builds the node of a remote path, absolute under the remote
// base directory or relative to it.
func (c *Client) RemoteFile(ctx context.Context, name string) (*TransferFile, error) {
	if err := c.EnsureConnected(ctx); err != nil {
		return nil, err
	}

	base := c.BaseRemoteDirectory()
	rel := name
	if path.IsAbs(name) {
		cleaned := path.Clean(name)
		switch {
		case cleaned == path.Clean(base):
			rel = ""
		case strings.HasPrefix(cleaned, strings.TrimSuffix(base, "/")+"/"):
			rel = strings.TrimPrefix(cleaned, strings.TrimSuffix(base, "/")+"/")
		default:
			return nil, fmt.Errorf("%w: '%s'", ErrOutsideRoot, name)
		}
	} else {
		rel = path.Clean(name)
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return nil, fmt.Errorf("%w: '%s'", ErrOutsideRoot, name)
		}
	}

	current := c.Root()
	if rel == "" || rel == "." {
		return current, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, segment := range strings.Split(rel, "/") {
		full := path.Join(current.RemotePath(), segment)
		rf, err := c.provider.ListFile(full)
		if err != nil {
			return nil, fmt.Errorf("failed to stat remote file '%s': %w", full, err)
		}
		if rf == nil {
			return nil, fmt.Errorf("remote file '%s': %w", full, fs.ErrNotExist)
		}
		entry := *rf
		entry.Name = segment
		current = fromRemote(current, entry)
	}
	return current, nil
}

// PrepareUpload expands the roots into their visible local subtrees.
func (c *Client) PrepareUpload(ctx context.Context, roots ...*TransferFile) (*TransferSet, error) {
	return c.prepare(ctx, OperationUpload, roots, true, (*TransferFile).LocalChildren)
}

// PrepareDownload expands the roots into their visible remote subtrees.
func (c *Client) PrepareDownload(ctx context.Context, roots ...*TransferFile) (*TransferSet, error) {
	if err := c.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return c.prepare(ctx, OperationDownload, roots, true, (*TransferFile).RemoteChildren)
}

// PrepareDelete expands the roots into their visible remote subtrees. The
// sync root itself is never part of the result.
func (c *Client) PrepareDelete(ctx context.Context, roots ...*TransferFile) (*TransferSet, error) {
	if err := c.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return c.prepare(ctx, OperationDelete, roots, false, (*TransferFile).RemoteChildren)
}

func (c *Client) prepare(ctx context.Context, op Operation, roots []*TransferFile, includeRoot bool,
	children func(*TransferFile) ([]*TransferFile, error)) (*TransferSet, error) {
	set := NewTransferSet()
	expanded := make(map[string]struct{})

	var walk func(file *TransferFile) error
	walk = func(file *TransferFile) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !c.isVisible(file) {
			c.log.Debug("Skipping invisible file '%s'", file)
			return nil
		}
		if !file.IsRoot() || includeRoot {
			set.Add(file)
		}
		if !file.IsDirectory() {
			return nil
		}
		if _, ok := expanded[file.Key()]; ok {
			return nil
		}
		expanded[file.Key()] = struct{}{}

		kids, err := children(file)
		if err != nil {
			c.log.Warn("Unable to expand '%s' for %s: %v", file, op, err)
			return nil
		}
		for _, kid := range kids {
			if err := walk(kid); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if root == nil {
			continue
		}
		if err := walk(root); err != nil {
			return nil, err
		}
	}
	return set, nil
}
