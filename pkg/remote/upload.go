package remote

import (
	"context"
	"fmt"
)

// Upload transfers every node of the set to the server.
func (c *Client) Upload(ctx context.Context, set *TransferSet) (*TransferInfo, error) {
	return c.runBatch(ctx, OperationUpload, set.Files(), c.uploadOne)
}

func (c *Client) uploadOne(_ context.Context, file *TransferFile, info *TransferInfo) []*TransferFile {
	switch {
	case !file.WithinRoot():
		info.AddIgnoredFile(file, ErrOutsideRoot.Error())
	case file.linkOnPath():
		info.AddIgnoredFile(file, "symbolic links are not followed")
	case file.IsDirectory():
		return c.uploadDirectory(file, info)
	case file.IsFile():
		c.uploadFile(file, info)
	default:
		info.AddIgnoredFile(file, "not a regular file or directory")
	}
	return nil
}

func (c *Client) uploadDirectory(file *TransferFile, info *TransferInfo) []*TransferFile {
	remotePath := file.RemotePath()

	c.mu.Lock()
	ok, err := c.cdRemoteDirectory(remotePath, true)
	reason := ""
	if !ok {
		reason = c.cdFailureReason(remotePath, err)
	}
	c.mu.Unlock()

	if !ok {
		info.AddIgnoredFile(file, reason)
		return nil
	}
	info.AddTransferredFile(file)

	if file.HasLocalChildrenFetched() {
		return nil
	}
	children, err := file.LocalChildren()
	if err != nil {
		c.log.Warn("Unable to list '%s': %v", file, err)
		return nil
	}
	return children
}

func (c *Client) uploadFile(file *TransferFile, info *TransferInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent := file.ParentRemotePath()
	if ok, err := c.cdRemoteDirectory(parent, true); !ok {
		info.AddIgnoredFile(file, c.cdFailureReason(parent, err))
		return
	}

	name := file.Name()
	perms := -1
	if c.opts.PreservePermissions {
		perms = c.permissions(name)
	} else {
		c.log.Debug("Not reading permissions of '%s', preservation is disabled", file)
	}

	target := name
	if !c.opts.UploadDirectly {
		target = name + newFileSuffix
	}

	local := file.ResolveLocalFile()
	stored, err := c.retry("store "+file.String(), func() (bool, error) {
		r, err := c.local.Open(local)
		if err != nil {
			return false, err
		}
		defer r.Close()
		return c.provider.StoreFile(target, r)
	})
	if stored && !c.opts.UploadDirectly {
		stored, err = c.moveRemoteFile(target, name)
	}

	if !stored {
		reason := c.operationFailure(OperationUpload, file, err)
		if !c.opts.UploadDirectly {
			if _, derr := c.provider.DeleteFile(target); derr != nil {
				c.log.Debug("Unable to remove '%s': %v", target, derr)
			}
		}
		c.log.Warn("Upload of '%s' failed: %s", file, reason)
		info.AddFailedFile(file, reason)
		return
	}

	if perms != -1 && !c.restorePermissions(perms, name) {
		info.AddPartiallyFailedFile(file, fmt.Sprintf("permissions %o could not be restored", perms))
		return
	}
	info.AddTransferredFile(file)
}

// permissions returns -1 when unknown. Must be called with c.mu held.
func (c *Client) permissions(name string) int {
	perms, err := c.provider.GetPermissions(name)
	if err != nil {
		c.log.Debug("Unable to read permissions of '%s': %v", name, err)
		return -1
	}
	return perms
}

// restorePermissions must be called with c.mu held.
func (c *Client) restorePermissions(perms int, name string) bool {
	if c.permissions(name) == perms {
		return true
	}
	ok, err := c.provider.SetPermissions(perms, name)
	if err != nil || !ok {
		c.log.Debug("Unable to restore permissions %o of '%s'", perms, name)
		return false
	}
	return true
}
