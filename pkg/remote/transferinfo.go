package remote

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Outcome is the disposition of a file within one batch.
type Outcome string

const (
	OutcomeTransferred     Outcome = "transferred"
	OutcomeFailed          Outcome = "failed"
	OutcomePartiallyFailed Outcome = "partially_failed"
	OutcomeIgnored         Outcome = "ignored"
)

// Disposition is one recorded result.
type Disposition struct {
	File    *TransferFile
	Outcome Outcome
	Reason  string
}

// TransferInfo collects the per-file outcomes of a batch. A file receives at
// most one disposition: the first one recorded wins.
type TransferInfo struct {
	mu      sync.Mutex
	entries map[string]Disposition
	order   []string
	runtime time.Duration
}

func NewTransferInfo() *TransferInfo {
	return &TransferInfo{entries: make(map[string]Disposition)}
}

func (t *TransferInfo) record(file *TransferFile, outcome Outcome, reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := file.Key()
	if _, ok := t.entries[key]; ok {
		return false
	}
	t.entries[key] = Disposition{File: file, Outcome: outcome, Reason: reason}
	t.order = append(t.order, key)
	return true
}

func (t *TransferInfo) AddTransferredFile(file *TransferFile) bool {
	return t.record(file, OutcomeTransferred, "")
}

func (t *TransferInfo) AddFailedFile(file *TransferFile, reason string) bool {
	return t.record(file, OutcomeFailed, reason)
}

func (t *TransferInfo) AddPartiallyFailedFile(file *TransferFile, reason string) bool {
	return t.record(file, OutcomePartiallyFailed, reason)
}

func (t *TransferInfo) AddIgnoredFile(file *TransferFile, reason string) bool {
	return t.record(file, OutcomeIgnored, reason)
}

// Has reports whether the file already received a disposition.
func (t *TransferInfo) Has(file *TransferFile) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[file.Key()]
	return ok
}

// Outcome returns the disposition of file, if any.
func (t *TransferInfo) Outcome(file *TransferFile) (Disposition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.entries[file.Key()]
	return d, ok
}

func (t *TransferInfo) collect(outcome Outcome) []Disposition {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]Disposition, 0)
	for _, key := range t.order {
		if d := t.entries[key]; d.Outcome == outcome {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].File.Key() < result[j].File.Key()
	})
	return result
}

func (t *TransferInfo) TransferredFiles() []Disposition {
	return t.collect(OutcomeTransferred)
}

func (t *TransferInfo) FailedFiles() []Disposition {
	return t.collect(OutcomeFailed)
}

func (t *TransferInfo) PartiallyFailedFiles() []Disposition {
	return t.collect(OutcomePartiallyFailed)
}

func (t *TransferInfo) IgnoredFiles() []Disposition {
	return t.collect(OutcomeIgnored)
}

// All returns every disposition in recording order.
func (t *TransferInfo) All() []Disposition {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]Disposition, 0, len(t.order))
	for _, key := range t.order {
		result = append(result, t.entries[key])
	}
	return result
}

func (t *TransferInfo) HasAnyFailure() bool {
	return len(t.FailedFiles()) > 0 || len(t.PartiallyFailedFiles()) > 0
}

func (t *TransferInfo) SetRuntime(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runtime = d
}

func (t *TransferInfo) Runtime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runtime
}

// Summary renders a one-line overview of the batch.
func (t *TransferInfo) Summary() string {
	return fmt.Sprintf("%d transferred, %d failed, %d partially failed, %d ignored in %s",
		len(t.TransferredFiles()),
		len(t.FailedFiles()),
		len(t.PartiallyFailedFiles()),
		len(t.IgnoredFiles()),
		t.Runtime().Round(time.Millisecond))
}
