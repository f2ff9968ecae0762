package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/mwantia/goremote/pkg/remote"
	"github.com/rjeczalik/notify"
)

const defaultDebounce = 2 * time.Second

// changeTracker remembers the digest of the content last uploaded per path,
// so saves that did not change a file are not uploaded again.
type changeTracker struct {
	mu      sync.Mutex
	digests map[string]uint64
}

func newChangeTracker() *changeTracker {
	return &changeTracker{digests: make(map[string]uint64)}
}

func digestFile(name string) (uint64, error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// changed returns the paths below base that still exist and differ from
// their last upload, together with the digests to commit afterwards.
// Directories are always returned.
func (t *changeTracker) changed(base string, rels []string) ([]string, map[string]uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var result []string
	digests := make(map[string]uint64)
	for _, rel := range rels {
		full := filepath.Join(base, filepath.FromSlash(rel))
		info, err := os.Lstat(full)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			sum, err := digestFile(full)
			if err == nil {
				if last, ok := t.digests[rel]; ok && last == sum {
					continue
				}
				digests[rel] = sum
			}
		}
		result = append(result, rel)
	}
	return result, digests
}

// commit stores the digests of the files info reports as transferred.
func (t *changeTracker) commit(info *remote.TransferInfo, digests map[string]uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, d := range info.TransferredFiles() {
		if sum, ok := digests[d.File.RelativePath()]; ok {
			t.digests[d.File.RelativePath()] = sum
		}
	}
}

// changeSet collects the relative paths of local change events below base
// until they are flushed.
type changeSet struct {
	base    string
	scopes  []string
	pending map[string]struct{}
}

func newChangeSet(base string, scopes []string) *changeSet {
	if resolved, err := filepath.EvalSymlinks(base); err == nil {
		base = resolved
	}
	cleaned := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scope = path.Clean(filepath.ToSlash(scope))
		if scope != "." && scope != "" {
			cleaned = append(cleaned, scope)
		}
	}
	return &changeSet{
		base:    base,
		scopes:  cleaned,
		pending: make(map[string]struct{}),
	}
}

// add records name and reports whether it lies below base and inside one of
// the scopes, if any are configured.
func (s *changeSet) add(name string) bool {
	rel, err := filepath.Rel(s.base, name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}
	if !s.inScope(rel) {
		return false
	}
	s.pending[rel] = struct{}{}
	return true
}

func (s *changeSet) inScope(rel string) bool {
	if len(s.scopes) == 0 {
		return true
	}
	for _, scope := range s.scopes {
		if rel == scope || strings.HasPrefix(rel, scope+"/") {
			return true
		}
	}
	return false
}

func (s *changeSet) flush() []string {
	paths := make([]string, 0, len(s.pending))
	for rel := range s.pending {
		paths = append(paths, rel)
	}
	clear(s.pending)
	sort.Strings(paths)
	return paths
}

// watchLocal registers a recursive watch on base. The returned stop func
// releases it.
func watchLocal(base string) (<-chan notify.EventInfo, func(), error) {
	events := make(chan notify.EventInfo, 128)
	if err := notify.Watch(filepath.Join(base, "..."), events, notify.Create, notify.Write, notify.Rename); err != nil {
		return nil, nil, fmt.Errorf("failed to watch '%s': %w", base, err)
	}
	return events, func() { notify.Stop(events) }, nil
}

// uploadChanges uploads the flushed paths that actually changed.
func (gra *GoRemoteAgent) uploadChanges(ctx context.Context, client *remote.Client, profile string, tracker *changeTracker, paths []string) {
	changed, digests := tracker.changed(client.BaseLocalDirectory(), paths)
	if len(changed) == 0 {
		gra.log.Debug("Ignoring %d change event(s) without content changes", len(paths))
		return
	}

	gra.log.Info("Uploading %d changed path(s)", len(changed))
	info, err := gra.Run(ctx, client, profile, remote.OperationUpload, changed...)
	if err != nil {
		gra.log.Error("Upload of changes failed: %v", err)
		client.Disconnect(true)
		return
	}
	tracker.commit(info, digests)
	for _, d := range info.FailedFiles() {
		gra.log.Warn("Failed '%s': %s", d.File, d.Reason)
	}
}
