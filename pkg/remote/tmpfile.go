package remote

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// TmpLocalFile buffers downloaded content before it is written to its
// local destination. OutputStream may be requested repeatedly; each call
// discards previously written data.
type TmpLocalFile interface {
	OutputStream() (io.Writer, error)
	InputStream() (io.ReadCloser, error)
	Cleanup() error
}

// NewTmpLocalFile keeps content in memory when the expected size is known
// and below threshold, and spills to a temp file otherwise.
func NewTmpLocalFile(size, threshold int64, dir string) (TmpLocalFile, error) {
	if size >= 0 && size < threshold {
		return &memoryTmpFile{}, nil
	}
	return newDiskTmpFile(dir)
}

type memoryTmpFile struct {
	buf bytes.Buffer
}

func (m *memoryTmpFile) OutputStream() (io.Writer, error) {
	m.buf.Reset()
	return &m.buf, nil
}

func (m *memoryTmpFile) InputStream() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.buf.Bytes())), nil
}

func (m *memoryTmpFile) Cleanup() error {
	m.buf = bytes.Buffer{}
	return nil
}

type diskTmpFile struct {
	file *os.File
}

func newDiskTmpFile(dir string) (*diskTmpFile, error) {
	f, err := os.CreateTemp(dir, "goremote-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	return &diskTmpFile{file: f}, nil
}

func (d *diskTmpFile) OutputStream() (io.Writer, error) {
	if err := d.file.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return d.file, nil
}

func (d *diskTmpFile) InputStream() (io.ReadCloser, error) {
	f, err := os.Open(d.file.Name())
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d *diskTmpFile) Cleanup() error {
	name := d.file.Name()
	closeErr := d.file.Close()
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return closeErr
}
