// Package sftp implements remote.Provider over SSH using github.com/pkg/sftp.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/mwantia/goremote/pkg/remote"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	Type           = "sftp"
	DefaultPort    = 22
	DefaultTimeout = 30 * time.Second
)

type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	PrivateKey string
	KnownHosts string
	Timeout    time.Duration
}

func ConfigFromSettings(s remote.Settings) (Config, error) {
	cfg := Config{
		Host:       s.Value(remote.SettingHost),
		Port:       remote.SettingInt(s, remote.SettingPort, DefaultPort),
		User:       s.Value(remote.SettingUser),
		Password:   s.Value(remote.SettingPassword),
		PrivateKey: s.Value(remote.SettingPrivateKey),
		KnownHosts: s.Value(remote.SettingKnownHosts),
		Timeout:    remote.SettingDuration(s, remote.SettingTimeout, DefaultTimeout),
	}
	if cfg.Host == "" {
		return cfg, errors.New("sftp: host is required")
	}
	if cfg.User == "" {
		return cfg, errors.New("sftp: user is required")
	}
	return cfg, nil
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if c.PrivateKey != "" {
		pem, err := os.ReadFile(c.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) && c.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(c.Password))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		methods = append(methods, ssh.Password(c.Password))
	}
	return methods, nil
}

// hostKeyCallback accepts any host key unless a known_hosts file is configured.
func (c Config) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.KnownHosts == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	return knownhosts.New(c.KnownHosts)
}

type Factory struct{}

func (Factory) Type() string { return Type }

func (Factory) NewProvider(s remote.Settings) (remote.Provider, error) {
	cfg, err := ConfigFromSettings(s)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

// Provider keeps its own working directory since SFTP has no notion of one.
type Provider struct {
	cfg  Config
	dial func(ctx context.Context) (*sftp.Client, io.Closer, error)

	client *sftp.Client
	closer io.Closer
	cwd    string

	reply    string
	negative string
}

func New(cfg Config) *Provider {
	p := &Provider{cfg: cfg}
	p.dial = p.dialServer
	return p
}

// NewFromClient wraps an established session, for example one running over
// an external ssh binary. The first Connect adopts it, later ones fail.
func NewFromClient(client *sftp.Client) *Provider {
	p := New(Config{Host: "localhost", Port: DefaultPort})
	p.dial = func(context.Context) (*sftp.Client, io.Closer, error) {
		if client == nil {
			return nil, nil, errors.New("sftp: session already closed")
		}
		c := client
		client = nil
		return c, nil, nil
	}
	return p
}

func (p *Provider) dialServer(ctx context.Context) (*sftp.Client, io.Closer, error) {
	auth, err := p.cfg.authMethods()
	if err != nil {
		return nil, nil, err
	}
	hostKey, err := p.cfg.hostKeyCallback()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load known hosts: %w", err)
	}

	addr := p.cfg.Address()
	dialer := net.Dialer{Timeout: p.cfg.Timeout}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	sc, chans, reqs, err := ssh.NewClientConn(nc, addr, &ssh.ClientConfig{
		User:            p.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         p.cfg.Timeout,
	})
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	sshClient := ssh.NewClient(sc, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, nil, err
	}
	return client, sshClient, nil
}

func (p *Provider) Connect(ctx context.Context) error {
	if p.client != nil {
		return nil
	}
	client, closer, err := p.dial(ctx)
	if err != nil {
		p.fail(err.Error())
		return fmt.Errorf("failed to connect to '%s': %w", p.cfg.Address(), err)
	}

	cwd, err := client.Getwd()
	if err != nil || cwd == "" {
		cwd = "/"
	}
	p.client = client
	p.closer = closer
	p.cwd = cwd
	p.clear()
	return nil
}

func (p *Provider) Disconnect() error {
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	if p.closer != nil {
		if cerr := p.closer.Close(); err == nil {
			err = cerr
		}
	}
	p.client = nil
	p.closer = nil
	return err
}

func (p *Provider) IsConnected() bool {
	return p.client != nil
}

func (p *Provider) clear() {
	p.reply = ""
	p.negative = ""
}

func (p *Provider) fail(msg string) {
	p.reply = msg
	p.negative = msg
}

// result reports status replies from the server as a negative result.
// Other errors are transport failures.
func (p *Provider) result(op, name string, err error) (bool, error) {
	if err == nil {
		p.clear()
		return true, nil
	}
	var status *sftp.StatusError
	if errors.As(err, &status) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, fs.ErrExist) {
		p.fail(fmt.Sprintf("%s '%s': %v", op, name, err))
		return false, nil
	}
	p.fail(err.Error())
	return false, err
}

func (p *Provider) ensure() error {
	if p.client == nil {
		return remote.ErrNotConnected
	}
	return nil
}

func (p *Provider) abs(name string) string {
	if path.IsAbs(name) {
		return path.Clean(name)
	}
	return path.Join(p.cwd, name)
}

func (p *Provider) ChangeWorkingDirectory(dir string) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	target := p.abs(dir)
	info, err := p.client.Stat(target)
	if ok, err := p.result("cd", target, err); !ok {
		return false, err
	}
	if !info.IsDir() {
		p.fail(fmt.Sprintf("cd '%s': not a directory", target))
		return false, nil
	}
	p.cwd = target
	return true, nil
}

// PrintWorkingDirectory resolves symbolic links in the emulated directory.
func (p *Provider) PrintWorkingDirectory() (string, error) {
	if err := p.ensure(); err != nil {
		return "", err
	}
	resolved, err := p.client.RealPath(p.cwd)
	if err != nil || resolved == "" {
		return p.cwd, nil
	}
	return resolved, nil
}

func (p *Provider) MakeDirectory(name string) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	target := p.abs(name)
	return p.result("mkdir", target, p.client.Mkdir(target))
}

func (p *Provider) ListFiles() ([]remote.RemoteFile, error) {
	if err := p.ensure(); err != nil {
		return nil, err
	}
	infos, err := p.client.ReadDir(p.cwd)
	if ok, err := p.result("list", p.cwd, err); !ok {
		if err == nil {
			err = errors.New(p.negative)
		}
		return nil, err
	}

	files := make([]remote.RemoteFile, 0, len(infos))
	for _, info := range infos {
		if info.Name() == "." || info.Name() == ".." {
			continue
		}
		files = append(files, toRemoteFile(p.cwd, info))
	}
	return files, nil
}

func (p *Provider) ListFile(name string) (*remote.RemoteFile, error) {
	if err := p.ensure(); err != nil {
		return nil, err
	}
	target := p.abs(name)
	info, err := p.client.Lstat(target)
	if ok, err := p.result("stat", target, err); !ok {
		return nil, err
	}
	rf := toRemoteFile(path.Dir(target), info)
	rf.Name = path.Base(target)
	return &rf, nil
}

func (p *Provider) Exists(parent, name string) (bool, error) {
	rf, err := p.ListFile(path.Join(p.abs(parent), name))
	return rf != nil, err
}

func (p *Provider) Rename(from, to string) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	src, dst := p.abs(from), p.abs(to)
	return p.result("rename", src, p.client.Rename(src, dst))
}

func (p *Provider) DeleteFile(name string) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	target := p.abs(name)
	info, err := p.client.Lstat(target)
	if ok, err := p.result("delete", target, err); !ok {
		return false, err
	}
	if info.IsDir() {
		p.fail(fmt.Sprintf("delete '%s': is a directory", target))
		return false, nil
	}
	return p.result("delete", target, p.client.Remove(target))
}

func (p *Provider) DeleteDirectory(dir string) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	target := p.abs(dir)
	return p.result("rmdir", target, p.client.RemoveDirectory(target))
}

func (p *Provider) StoreFile(name string, r io.Reader) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	target := p.abs(name)
	f, err := p.client.Create(target)
	if ok, err := p.result("store", target, err); !ok {
		return false, err
	}
	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		return p.result("store", target, copyErr)
	}
	return p.result("store", target, closeErr)
}

func (p *Provider) RetrieveFile(name string, w io.Writer) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	target := p.abs(name)
	f, err := p.client.Open(target)
	if ok, err := p.result("retrieve", target, err); !ok {
		return false, err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return p.result("retrieve", target, err)
}

func (p *Provider) GetPermissions(name string) (int, error) {
	if err := p.ensure(); err != nil {
		return -1, err
	}
	target := p.abs(name)
	info, err := p.client.Lstat(target)
	if ok, err := p.result("stat", target, err); !ok {
		return -1, err
	}
	return int(info.Mode().Perm()), nil
}

func (p *Provider) SetPermissions(perms int, name string) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	target := p.abs(name)
	return p.result("chmod", target, p.client.Chmod(target, os.FileMode(perms)&os.ModePerm))
}

func (p *Provider) GetReplyString() string {
	return p.reply
}

func (p *Provider) GetNegativeReplyString() string {
	return p.negative
}

func toRemoteFile(parent string, info fs.FileInfo) remote.RemoteFile {
	kind := remote.KindOther
	switch mode := info.Mode(); {
	case mode&fs.ModeSymlink != 0:
		kind = remote.KindLink
	case mode.IsDir():
		kind = remote.KindDirectory
	case mode.IsRegular():
		kind = remote.KindFile
	}
	return remote.RemoteFile{
		Name:            info.Name(),
		ParentDirectory: parent,
		Size:            info.Size(),
		Kind:            kind,
		ModTime:         info.ModTime(),
	}
}
