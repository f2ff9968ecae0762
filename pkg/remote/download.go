package remote

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// Download transfers every node of the set from the server.
func (c *Client) Download(ctx context.Context, set *TransferSet) (*TransferInfo, error) {
	return c.runBatch(ctx, OperationDownload, set.Files(), c.downloadOne)
}

func (c *Client) downloadOne(_ context.Context, file *TransferFile, info *TransferInfo) []*TransferFile {
	switch {
	case !file.WithinRoot():
		info.AddIgnoredFile(file, ErrOutsideRoot.Error())
	case file.linkOnPath():
		info.AddIgnoredFile(file, "symbolic links are not followed")
	case file.IsDirectory():
		return c.downloadDirectory(file, info)
	case file.IsFile():
		if err := c.local.RunAtomic(func() error {
			return c.downloadFile(file, info)
		}); err != nil && !info.Has(file) {
			info.AddFailedFile(file, err.Error())
		}
	default:
		info.AddIgnoredFile(file, "not a regular file or directory")
	}
	return nil
}

func (c *Client) downloadDirectory(file *TransferFile, info *TransferInfo) []*TransferFile {
	local := file.ResolveLocalFile()
	if st, err := c.local.Lstat(local); err == nil && !st.IsDir() {
		info.AddIgnoredFile(file, fmt.Sprintf("local file '%s' exists where a directory is expected", local))
		return nil
	}
	if err := c.local.MkdirAll(local); err != nil {
		info.AddIgnoredFile(file, fmt.Sprintf("cannot create local directory '%s': %v", local, err))
		return nil
	}
	info.AddTransferredFile(file)

	if file.HasRemoteChildrenFetched() {
		return nil
	}
	children, err := file.RemoteChildren()
	if err != nil {
		c.log.Warn("Unable to list '%s': %v", file, err)
		return nil
	}
	return children
}

func (c *Client) downloadFile(file *TransferFile, info *TransferInfo) error {
	local := file.ResolveLocalFile()
	parent := filepath.Dir(local)
	if st, err := c.local.Lstat(parent); err == nil && !st.IsDir() {
		info.AddIgnoredFile(file, fmt.Sprintf("local file '%s' exists where a directory is expected", parent))
		return nil
	}
	if err := c.local.MkdirAll(parent); err != nil {
		info.AddIgnoredFile(file, fmt.Sprintf("cannot create local directory '%s': %v", parent, err))
		return nil
	}
	if st, err := c.local.Lstat(local); err == nil && st.IsDir() {
		info.AddIgnoredFile(file, fmt.Sprintf("local directory '%s' exists where a file is expected", local))
		return nil
	}

	tmp, err := NewTmpLocalFile(file.Size(), c.opts.MemoryThreshold, c.opts.TempDir)
	if err != nil {
		info.AddIgnoredFile(file, err.Error())
		return nil
	}
	defer func() {
		if err := tmp.Cleanup(); err != nil {
			c.log.Debug("Unable to clean up staging file of '%s': %v", file, err)
		}
	}()

	if reason, ok := c.retrieve(file, tmp); !ok {
		c.log.Warn("Download of '%s' failed: %s", file, reason)
		info.AddFailedFile(file, reason)
		return nil
	}

	err = c.writeLocal(local, tmp)
	switch {
	case errors.Is(err, ErrDownloadSkipped):
		info.AddIgnoredFile(file, "local file has unsaved changes")
	case err != nil:
		c.log.Warn("Unable to write '%s': %v", local, err)
		info.AddFailedFile(file, err.Error())
	default:
		info.AddTransferredFile(file)
	}
	return nil
}

func (c *Client) retrieve(file *TransferFile, tmp TmpLocalFile) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent := file.ParentRemotePath()
	if ok, err := c.cdRemoteDirectory(parent, false); !ok {
		return c.cdFailureReason(parent, err), false
	}

	retrieved, err := c.retry("retrieve "+file.String(), func() (bool, error) {
		w, err := tmp.OutputStream()
		if err != nil {
			return false, err
		}
		return c.provider.RetrieveFile(file.Name(), w)
	})
	if !retrieved {
		return c.operationFailure(OperationDownload, file, err), false
	}
	return "", true
}

// writeLocal commits staged content. A file held with unsaved changes is only
// overwritten when the resolver agrees.
func (c *Client) writeLocal(local string, tmp TmpLocalFile) error {
	lock, err := c.local.Lock(local)
	if errors.Is(err, ErrFileLocked) {
		resolution := ResolutionSkip
		if c.opts.Resolver != nil {
			resolution = c.opts.Resolver.Resolve(local)
		}
		if resolution != ResolutionOverwrite {
			return ErrDownloadSkipped
		}
		if err := c.local.Discard(local); err != nil {
			return fmt.Errorf("failed to discard local changes: %w", err)
		}
		lock, err = c.local.Lock(local)
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			c.log.Debug("Unable to release '%s': %v", local, err)
		}
	}()

	r, err := tmp.InputStream()
	if err != nil {
		return err
	}
	defer r.Close()
	return lock.Write(r)
}
