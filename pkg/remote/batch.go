package remote

import (
	"context"
	"time"
)

// fileHandler processes one node and returns children discovered on the way
// that still need processing.
type fileHandler func(ctx context.Context, file *TransferFile, info *TransferInfo) []*TransferFile

func (c *Client) runBatch(ctx context.Context, op Operation, files []*TransferFile, handle fileHandler) (*TransferInfo, error) {
	if err := c.EnsureConnected(ctx); err != nil {
		return nil, err
	}

	info := NewTransferInfo()
	start := time.Now()
	c.opts.Monitor.OperationStart(op, len(files))
	defer func() {
		info.SetRuntime(time.Since(start))
		c.opts.Monitor.OperationFinish(op, info)
		c.log.Info("Finished %s: %s", op, info.Summary())
	}()

	queue := append([]*TransferFile(nil), files...)
	for i := 0; i < len(queue); i++ {
		if c.shouldStop(ctx) {
			c.log.Info("Cancelled %s with %d files left", op, len(queue)-i)
			break
		}
		file := queue[i]
		if info.Has(file) {
			continue
		}

		c.opts.Monitor.OperationProcess(op, file)
		if more := handle(ctx, file, info); len(more) > 0 {
			c.opts.Monitor.AddUnits(op, len(more))
			queue = append(queue, more...)
		}
	}
	return info, nil
}

// List returns the visible remote children of dir.
func (c *Client) List(ctx context.Context, dir *TransferFile) ([]*TransferFile, error) {
	if err := c.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	if !dir.IsDirectory() {
		return []*TransferFile{dir}, nil
	}
	return dir.RemoteChildren()
}
