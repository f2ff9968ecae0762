package remote

import (
	"context"
	"fmt"
	"sort"
)

// Delete removes every node of the set from the server: files first, then
// directories deepest first.
func (c *Client) Delete(ctx context.Context, set *TransferSet) (*TransferInfo, error) {
	var files, dirs []*TransferFile
	for _, f := range set.Files() {
		if f.IsDirectory() {
			dirs = append(dirs, f)
		} else {
			files = append(files, f)
		}
	}
	sort.SliceStable(dirs, func(i, j int) bool {
		return dirs[i].Depth() > dirs[j].Depth()
	})
	return c.runBatch(ctx, OperationDelete, append(files, dirs...), c.deleteOne)
}

func (c *Client) deleteOne(_ context.Context, file *TransferFile, info *TransferInfo) []*TransferFile {
	if file.IsRoot() {
		info.AddIgnoredFile(file, "the synchronization root is never deleted")
		return nil
	}
	if !file.WithinRoot() {
		info.AddIgnoredFile(file, ErrOutsideRoot.Error())
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if file.IsDirectory() {
		c.deleteDirectory(file, info)
		return nil
	}

	ok, err := c.provider.DeleteFile(file.RemotePath())
	if err != nil || !ok {
		reason := c.operationFailure(OperationDelete, file, err)
		c.log.Warn("Delete of '%s' failed: %s", file, reason)
		info.AddFailedFile(file, reason)
		return nil
	}
	info.AddTransferredFile(file)
	return nil
}

// deleteDirectory must be called with c.mu held.
func (c *Client) deleteDirectory(file *TransferFile, info *TransferInfo) {
	remotePath := file.RemotePath()
	ok, err := c.provider.DeleteDirectory(remotePath)
	if err == nil && ok {
		info.AddTransferredFile(file)
		return
	}
	reason := c.operationFailure(OperationDelete, file, err)

	existing, lerr := c.provider.ListFile(remotePath)
	if lerr == nil && existing == nil {
		info.AddIgnoredFile(file, "file does not exist")
		return
	}
	if cd, _ := c.provider.ChangeWorkingDirectory(remotePath); cd {
		if entries, lerr := c.provider.ListFiles(); lerr == nil && countEntries(entries) > 0 {
			info.AddFailedFile(file, fmt.Sprintf("folder '%s' not empty", file.Name()))
			return
		}
	}
	c.log.Warn("Delete of '%s' failed: %s", file, reason)
	info.AddFailedFile(file, reason)
}

func countEntries(entries []RemoteFile) int {
	n := 0
	for _, e := range entries {
		if e.Name != "." && e.Name != ".." {
			n++
		}
	}
	return n
}
