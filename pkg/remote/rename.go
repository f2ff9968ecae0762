package remote

// moveRemoteFile promotes src to dst within the current remote directory.
// At every step either the previous or the new content is reachable under
// dst. Must be called with c.mu held.
func (c *Client) moveRemoteFile(src, dst string) (bool, error) {
	ok, err := c.provider.Rename(src, dst)
	if err == nil && ok {
		return true, nil
	}
	c.log.Debug("Direct rename of '%s' to '%s' refused, swapping through '%s'", src, dst, dst+oldFileSuffix)

	old := dst + oldFileSuffix
	if _, err := c.provider.DeleteFile(old); err != nil {
		c.log.Debug("Unable to remove stale '%s': %v", old, err)
	}

	ok, err = c.provider.Rename(dst, old)
	if err != nil || !ok {
		c.log.Debug("Unable to move '%s' aside", dst)
		return false, err
	}

	ok, err = c.provider.Rename(src, dst)
	if err != nil || !ok {
		c.log.Debug("Unable to promote '%s', restoring '%s'", src, dst)
		if restored, rerr := c.provider.Rename(old, dst); rerr != nil || !restored {
			c.log.Warn("Unable to restore '%s' from '%s'", dst, old)
		}
		return false, err
	}

	if deleted, err := c.provider.DeleteFile(old); err != nil || !deleted {
		c.log.Debug("Unable to remove '%s'", old)
	}
	return true, nil
}
