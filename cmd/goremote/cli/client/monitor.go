package client

import (
	"fmt"
	"io"
	"sync"

	"github.com/mwantia/goremote/pkg/remote"
	"github.com/schollz/progressbar/v3"
)

// progressMonitor renders one bar per batch. Units discovered while the
// batch runs extend the bar.
type progressMonitor struct {
	mu  sync.Mutex
	out io.Writer
	bar *progressbar.ProgressBar
}

func newProgressMonitor(out io.Writer) *progressMonitor {
	return &progressMonitor{out: out}
}

func (m *progressMonitor) OperationStart(op remote.Operation, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(m.out),
		progressbar.OptionSetDescription(string(op)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

func (m *progressMonitor) OperationProcess(op remote.Operation, file *remote.TransferFile) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bar == nil {
		return
	}
	m.bar.Describe(fmt.Sprintf("%s %s", op, file))
	m.bar.Add(1)
}

func (m *progressMonitor) AddUnits(op remote.Operation, units int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bar != nil {
		m.bar.AddMax(units)
	}
}

func (m *progressMonitor) OperationFinish(op remote.Operation, info *remote.TransferInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bar != nil {
		m.bar.Finish()
		m.bar = nil
	}
}
