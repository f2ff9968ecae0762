package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	dir   bool
	link  bool
	data  []byte
	perms int
}

// fakeProvider is an in-memory server with failure injection.
type fakeProvider struct {
	nodes     map[string]*fakeNode
	cwd       string
	connected bool

	connectErr error
	// pwd maps a real directory to the path the server reports for it.
	pwd map[string]string

	storeFailures    int
	retrieveFailures int
	storeCalls       int
	retrieveCalls    int
	onStore          func(name string)

	// noOverwrite refuses renames onto an existing target.
	noOverwrite bool
	failRename  map[string]bool
	failDelete  map[string]bool
	failSetPerm bool

	connects  int
	listCalls int
	deleted   []string
	// injected adds raw entries to the listing of a directory.
	injected map[string][]RemoteFile

	renames  []string
	reply    string
	negative string
}

func newFakeProvider(paths ...string) *fakeProvider {
	p := &fakeProvider{
		nodes:      map[string]*fakeNode{"/": {dir: true}},
		cwd:        "/",
		pwd:        map[string]string{},
		failRename: map[string]bool{},
		failDelete: map[string]bool{},
	}
	for _, name := range paths {
		if strings.HasSuffix(name, "/") {
			p.mkdirs(strings.TrimSuffix(name, "/"))
		} else {
			p.put(name, []byte("remote:"+name))
		}
	}
	return p
}

func (p *fakeProvider) mkdirs(dir string) {
	current := "/"
	for _, segment := range strings.Split(strings.Trim(dir, "/"), "/") {
		if segment == "" {
			continue
		}
		current = path.Join(current, segment)
		if _, ok := p.nodes[current]; !ok {
			p.nodes[current] = &fakeNode{dir: true, perms: 0o755}
		}
	}
}

func (p *fakeProvider) put(name string, data []byte) {
	p.mkdirs(path.Dir(name))
	p.nodes[path.Clean(name)] = &fakeNode{data: data, perms: 0o644}
}

func (p *fakeProvider) content(name string) (string, bool) {
	n, ok := p.nodes[name]
	if !ok || n.dir {
		return "", false
	}
	return string(n.data), true
}

func (p *fakeProvider) resolve(name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(p.cwd, name)
}

func (p *fakeProvider) fail(reply string) {
	p.reply = reply
	p.negative = reply
}

func (p *fakeProvider) ok() {
	p.reply = "200 OK"
	p.negative = ""
}

func (p *fakeProvider) children(dir string) []string {
	var names []string
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for name := range p.nodes {
		if name == "/" || !strings.HasPrefix(name, prefix) {
			continue
		}
		if rest := strings.TrimPrefix(name, prefix); !strings.Contains(rest, "/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (p *fakeProvider) describe(name string) RemoteFile {
	n := p.nodes[name]
	kind := KindFile
	switch {
	case n.link:
		kind = KindLink
	case n.dir:
		kind = KindDirectory
	}
	return RemoteFile{
		Name:            path.Base(name),
		ParentDirectory: path.Dir(name),
		Size:            int64(len(n.data)),
		Kind:            kind,
	}
}

func (p *fakeProvider) Connect(context.Context) error {
	if p.connectErr != nil {
		p.fail("421 service not available")
		return p.connectErr
	}
	p.connects++
	p.connected = true
	p.cwd = "/"
	p.ok()
	return nil
}

func (p *fakeProvider) Disconnect() error {
	p.connected = false
	return nil
}

func (p *fakeProvider) IsConnected() bool { return p.connected }

func (p *fakeProvider) ChangeWorkingDirectory(dir string) (bool, error) {
	full := p.resolve(dir)
	if n, ok := p.nodes[full]; ok && n.dir {
		p.cwd = full
		p.ok()
		return true, nil
	}
	p.fail("550 " + full + ": no such directory")
	return false, nil
}

func (p *fakeProvider) PrintWorkingDirectory() (string, error) {
	if reported, ok := p.pwd[p.cwd]; ok {
		return reported, nil
	}
	return p.cwd, nil
}

func (p *fakeProvider) MakeDirectory(name string) (bool, error) {
	full := p.resolve(name)
	parent, ok := p.nodes[path.Dir(full)]
	if _, exists := p.nodes[full]; exists || !ok || !parent.dir {
		p.fail("550 cannot create " + full)
		return false, nil
	}
	p.nodes[full] = &fakeNode{dir: true, perms: 0o755}
	p.ok()
	return true, nil
}

func (p *fakeProvider) ListFiles() ([]RemoteFile, error) {
	p.listCalls++
	var files []RemoteFile
	for _, name := range p.children(p.cwd) {
		files = append(files, p.describe(name))
	}
	files = append(files, p.injected[p.cwd]...)
	return files, nil
}

func (p *fakeProvider) ListFile(name string) (*RemoteFile, error) {
	full := p.resolve(name)
	if _, ok := p.nodes[full]; !ok {
		return nil, nil
	}
	rf := p.describe(full)
	return &rf, nil
}

func (p *fakeProvider) Exists(parent, name string) (bool, error) {
	_, ok := p.nodes[path.Join(p.resolve(parent), name)]
	return ok, nil
}

func (p *fakeProvider) Rename(from, to string) (bool, error) {
	src, dst := p.resolve(from), p.resolve(to)
	p.renames = append(p.renames, path.Base(src)+"->"+path.Base(dst))
	if p.failRename[path.Base(src)+"->"+path.Base(dst)] {
		p.fail("553 rename refused")
		return false, nil
	}
	n, ok := p.nodes[src]
	if !ok {
		p.fail("550 " + src + ": not found")
		return false, nil
	}
	if _, exists := p.nodes[dst]; exists && p.noOverwrite {
		p.fail("553 " + dst + ": exists")
		return false, nil
	}
	delete(p.nodes, src)
	p.nodes[dst] = n
	p.ok()
	return true, nil
}

func (p *fakeProvider) DeleteFile(name string) (bool, error) {
	full := p.resolve(name)
	n, ok := p.nodes[full]
	if !ok || n.dir || p.failDelete[full] {
		p.fail("550 cannot delete " + full)
		return false, nil
	}
	delete(p.nodes, full)
	p.deleted = append(p.deleted, full)
	p.ok()
	return true, nil
}

func (p *fakeProvider) DeleteDirectory(name string) (bool, error) {
	full := p.resolve(name)
	n, ok := p.nodes[full]
	if !ok || !n.dir || len(p.children(full)) > 0 || p.failDelete[full] {
		p.fail("550 cannot remove " + full)
		return false, nil
	}
	delete(p.nodes, full)
	p.deleted = append(p.deleted, full)
	p.ok()
	return true, nil
}

func (p *fakeProvider) StoreFile(name string, r io.Reader) (bool, error) {
	p.storeCalls++
	data, err := io.ReadAll(r)
	if err != nil {
		return false, err
	}
	if p.onStore != nil {
		p.onStore(name)
	}
	if p.storeFailures > 0 {
		p.storeFailures--
		p.fail("451 transfer aborted")
		return false, nil
	}
	full := p.resolve(name)
	if parent, ok := p.nodes[path.Dir(full)]; !ok || !parent.dir {
		p.fail("553 no parent")
		return false, nil
	}
	perms := 0o644
	if existing, ok := p.nodes[full]; ok {
		perms = existing.perms
	}
	p.nodes[full] = &fakeNode{data: data, perms: perms}
	p.ok()
	return true, nil
}

func (p *fakeProvider) RetrieveFile(name string, w io.Writer) (bool, error) {
	p.retrieveCalls++
	if p.retrieveFailures > 0 {
		p.retrieveFailures--
		_, _ = w.Write([]byte("partial"))
		p.fail("426 connection closed")
		return false, nil
	}
	n, ok := p.nodes[p.resolve(name)]
	if !ok || n.dir {
		p.fail("550 not found")
		return false, nil
	}
	_, err := io.Copy(w, bytes.NewReader(n.data))
	p.ok()
	return err == nil, err
}

func (p *fakeProvider) GetPermissions(name string) (int, error) {
	if n, ok := p.nodes[p.resolve(name)]; ok {
		return n.perms, nil
	}
	return -1, nil
}

func (p *fakeProvider) SetPermissions(perms int, name string) (bool, error) {
	n, ok := p.nodes[p.resolve(name)]
	if !ok || p.failSetPerm {
		p.fail("550 chmod failed")
		return false, nil
	}
	n.perms = perms
	p.ok()
	return true, nil
}

func (p *fakeProvider) GetReplyString() string         { return p.reply }
func (p *fakeProvider) GetNegativeReplyString() string { return p.negative }

// testLocal is the operating system filesystem with an in-memory lock table.
type testLocal struct {
	held      map[string]bool
	discarded []string
}

func newTestLocal() *testLocal {
	return &testLocal{held: map[string]bool{}}
}

func (l *testLocal) Lstat(name string) (fs.FileInfo, error)     { return os.Lstat(name) }
func (l *testLocal) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (l *testLocal) MkdirAll(name string) error                 { return os.MkdirAll(name, 0o755) }
func (l *testLocal) Open(name string) (io.ReadCloser, error)    { return os.Open(name) }
func (l *testLocal) RunAtomic(fn func() error) error            { return fn() }

func (l *testLocal) Lock(name string) (FileLock, error) {
	if l.held[name] {
		return nil, ErrFileLocked
	}
	return &testLock{path: name}, nil
}

func (l *testLocal) Discard(name string) error {
	if !l.held[name] {
		return errors.New("not held")
	}
	delete(l.held, name)
	l.discarded = append(l.discarded, name)
	return nil
}

type testLock struct {
	path string
}

func (l *testLock) Write(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0o644)
}

func (l *testLock) Release() error { return nil }

func newTestClient(t *testing.T, p Provider, opts Options) (*Client, string) {
	t.Helper()
	if opts.BaseLocalDirectory == "" {
		opts.BaseLocalDirectory = t.TempDir()
	}
	if opts.BaseRemoteDirectory == "" {
		opts.BaseRemoteDirectory = "/www"
	}
	return NewClient(p, newTestLocal(), opts), opts.BaseLocalDirectory
}

func writeLocal(t *testing.T, base string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(base, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func keys(dispositions []Disposition) []string {
	result := make([]string, 0, len(dispositions))
	for _, d := range dispositions {
		result = append(result, d.File.Key())
	}
	return result
}

func setKeys(set *TransferSet) []string {
	result := make([]string, 0, set.Len())
	for _, f := range set.Files() {
		result = append(result, f.Key())
	}
	sort.Strings(result)
	return result
}
