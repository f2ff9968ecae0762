package remote

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mwantia/goremote/internal/config"
	"github.com/mwantia/goremote/pkg/log"
)

// State of the remote session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	DefaultRetryCount      = 3
	DefaultMemoryThreshold = 500 * 1024

	newFileSuffix = ".new"
	oldFileSuffix = ".old"
)

type Options struct {
	BaseLocalDirectory  string
	BaseRemoteDirectory string

	// UploadDirectly stores over the target name instead of staging a
	// ".new" file that is renamed into place.
	UploadDirectly      bool
	PreservePermissions bool
	RetryCount          int
	MemoryThreshold     int64
	TempDir             string

	Visibility *Visibility
	Monitor    OperationMonitor
	Resolver   ConflictResolver
	Logger     log.LoggerService
}

// Client drives one remote session. Every provider call is serialized on the
// client; batch iteration and monitor callbacks run outside that lock.
type Client struct {
	mu       sync.Mutex
	provider Provider
	local    LocalFileSystem
	opts     Options
	log      log.LoggerService

	baseMu     sync.RWMutex
	baseRemote string

	state     atomic.Int32
	cancelled atomic.Bool
}

func NewClient(provider Provider, local LocalFileSystem, opts Options) *Client {
	if opts.RetryCount <= 0 {
		opts.RetryCount = DefaultRetryCount
	}
	if opts.MemoryThreshold <= 0 {
		opts.MemoryThreshold = DefaultMemoryThreshold
	}
	if opts.Visibility == nil {
		opts.Visibility = NewVisibility(false)
	}
	if opts.Monitor == nil {
		opts.Monitor = NoopMonitor{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLoggerServiceWithWriter("remote", config.LogConfig{}, io.Discard)
	}
	if opts.BaseRemoteDirectory == "" {
		opts.BaseRemoteDirectory = "/"
	}

	return &Client{
		provider:   provider,
		local:      local,
		opts:       opts,
		log:        opts.Logger,
		baseRemote: opts.BaseRemoteDirectory,
	}
}

func (c *Client) State() State {
	return State(c.state.Load())
}

// BaseRemoteDirectory may differ from the configured one after connecting,
// when the server resolved a symbolic link.
func (c *Client) BaseRemoteDirectory() string {
	c.baseMu.RLock()
	defer c.baseMu.RUnlock()
	return c.baseRemote
}

func (c *Client) setBaseRemoteDirectory(dir string) {
	c.baseMu.Lock()
	defer c.baseMu.Unlock()
	c.baseRemote = dir
}

func (c *Client) BaseLocalDirectory() string {
	return c.opts.BaseLocalDirectory
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connect(ctx)
}

// EnsureConnected connects only if the session is not already up.
func (c *Client) EnsureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() == StateConnected && c.provider.IsConnected() {
		return nil
	}
	return c.connect(ctx)
}

func (c *Client) connect(ctx context.Context) error {
	c.state.Store(int32(StateConnecting))
	if err := c.provider.Connect(ctx); err != nil {
		c.state.Store(int32(StateDisconnected))
		c.log.Error("Unable to connect to remote server: %v", err)
		return &ConnectionError{
			Message: "cannot connect to remote server",
			Reply:   c.provider.GetReplyString(),
			Err:     err,
		}
	}

	base := c.BaseRemoteDirectory()
	ok, err := c.cdRemoteDirectory(base, true)
	if !ok {
		reply := c.provider.GetNegativeReplyString()
		if derr := c.provider.Disconnect(); derr != nil {
			c.log.Debug("Disconnect after failed directory change: %v", derr)
		}
		c.state.Store(int32(StateDisconnected))
		c.log.Error("Unable to change to remote directory '%s'", base)
		return &ConnectionError{
			Message: fmt.Sprintf("cannot change to remote directory '%s'", base),
			Reply:   reply,
			Err:     err,
		}
	}

	pwd, err := c.provider.PrintWorkingDirectory()
	if err != nil {
		c.log.Debug("Unable to read working directory: %v", err)
	} else if pwd != "" && path.Clean(pwd) != path.Clean(base) {
		c.log.Debug("Remote directory '%s' resolves to '%s', adopting it", base, pwd)
		c.setBaseRemoteDirectory(pwd)
	}

	c.state.Store(int32(StateConnected))
	c.log.Debug("Connected, remote base directory is '%s'", c.BaseRemoteDirectory())
	return nil
}

// Disconnect is a no-op on a closed session unless force is set, in which
// case the provider is torn down regardless and its error only logged.
func (c *Client) Disconnect(force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() == StateDisconnected && !force {
		return nil
	}
	err := c.provider.Disconnect()
	c.state.Store(int32(StateDisconnected))
	if err != nil && force {
		c.log.Debug("Forced disconnect: %v", err)
		return nil
	}
	return err
}

// Cancel stops the running batch before its next file.
func (c *Client) Cancel() {
	c.cancelled.Store(true)
}

func (c *Client) IsCancelled() bool {
	return c.cancelled.Load()
}

// Reset clears a previous cancellation.
func (c *Client) Reset() {
	c.cancelled.Store(false)
}

func (c *Client) shouldStop(ctx context.Context) bool {
	return c.cancelled.Load() || ctx.Err() != nil
}

// cdRemoteDirectory must be called with c.mu held.
func (c *Client) cdRemoteDirectory(dir string, create bool) (bool, error) {
	ok, err := c.provider.ChangeWorkingDirectory(dir)
	if err != nil {
		return false, err
	}
	if ok || !create {
		return ok, nil
	}
	return c.createAndCdRemoteDirectory(dir)
}

// createAndCdRemoteDirectory creates dir one segment at a time, entering
// every segment before creating the next one.
func (c *Client) createAndCdRemoteDirectory(dir string) (bool, error) {
	c.log.Debug("Creating remote directory '%s'", dir)
	if strings.HasPrefix(dir, "/") {
		ok, err := c.provider.ChangeWorkingDirectory("/")
		if err != nil || !ok {
			return false, err
		}
	}

	for _, segment := range strings.Split(dir, "/") {
		if segment == "" {
			continue
		}
		ok, err := c.provider.ChangeWorkingDirectory(segment)
		if err != nil {
			return false, err
		}
		if ok {
			continue
		}
		ok, err = c.provider.MakeDirectory(segment)
		if err != nil {
			return false, err
		}
		if !ok {
			c.log.Debug("Unable to create remote directory '%s': %s", segment, c.provider.GetNegativeReplyString())
			return false, nil
		}
		ok, err = c.provider.ChangeWorkingDirectory(segment)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// cdFailureReason must be called with c.mu held.
func (c *Client) cdFailureReason(dir string, err error) string {
	if err != nil {
		return fmt.Sprintf("cannot change to remote directory '%s': %v", dir, err)
	}
	if reply := c.provider.GetNegativeReplyString(); reply != "" {
		return fmt.Sprintf("cannot change to remote directory '%s': %s", dir, reply)
	}
	return fmt.Sprintf("cannot change to remote directory '%s'", dir)
}

// operationFailure prefers the raw negative server reply over a generic
// message. Must be called with c.mu held.
func (c *Client) operationFailure(op Operation, file *TransferFile, err error) string {
	if err != nil {
		return fmt.Sprintf("cannot %s '%s': %v", op, file.Name(), err)
	}
	if reply := c.provider.GetNegativeReplyString(); reply != "" {
		return reply
	}
	return fmt.Sprintf("cannot %s '%s'", op, file.Name())
}

// retry runs fn up to RetryCount times, stopping at the first success.
func (c *Client) retry(what string, fn func() (bool, error)) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.RetryCount; attempt++ {
		ok, err := fn()
		if err == nil && ok {
			return true, nil
		}
		lastErr = err
		c.log.Debug("Attempt %d/%d to %s failed", attempt, c.opts.RetryCount, what)
	}
	return false, lastErr
}

func (c *Client) isVisible(file *TransferFile) bool {
	return c.opts.Visibility.IsVisible(file.relPath, file.kind == KindDirectory)
}

func (c *Client) listRemoteChildren(dir *TransferFile) ([]*TransferFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remotePath := dir.RemotePath()
	ok, err := c.cdRemoteDirectory(remotePath, false)
	if !ok {
		return nil, fmt.Errorf("%s", c.cdFailureReason(remotePath, err))
	}
	entries, err := c.provider.ListFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to list remote directory '%s': %w", remotePath, err)
	}

	children := make([]*TransferFile, 0, len(entries))
	for _, entry := range entries {
		if !validEntryName(entry.Name) {
			if entry.Name != "." && entry.Name != ".." {
				c.log.Warn("Ignoring remote entry '%s' in '%s': not a plain file name", entry.Name, remotePath)
			}
			continue
		}
		child := fromRemote(dir, entry)
		if !c.isVisible(child) {
			continue
		}
		children = append(children, child)
	}
	return children, nil
}
