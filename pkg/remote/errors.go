package remote

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected    = errors.New("not connected")
	ErrUnknownProtocol = errors.New("unknown remote protocol")
	// ErrDownloadSkipped is returned when the user keeps unsaved local changes.
	ErrDownloadSkipped = errors.New("download skipped")
	// ErrFileLocked is returned by LocalFileSystem.Lock when another holder owns the file.
	ErrFileLocked  = errors.New("file is locked")
	ErrOutsideRoot = errors.New("path is outside of the synchronization root")
)

// ConnectionError aborts a whole batch. Reply carries the raw server reply, if any.
type ConnectionError struct {
	Message string
	Reply   string
	Err     error
}

func (e *ConnectionError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Reply != "" {
		msg = fmt.Sprintf("%s (server reply: %s)", msg, e.Reply)
	}
	return msg
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
