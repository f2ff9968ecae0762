// Package ftp implements remote.Provider over github.com/jlaffaye/ftp.
package ftp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"path"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/mwantia/goremote/pkg/remote"
)

const (
	Type        = "ftp"
	DefaultPort = 21
)

// serverConn is the subset of *ftp.ServerConn used by the provider.
type serverConn interface {
	Login(user, password string) error
	ChangeDir(dir string) error
	CurrentDir() (string, error)
	MakeDir(dir string) error
	List(dir string) ([]*ftp.Entry, error)
	GetEntry(name string) (*ftp.Entry, error)
	Rename(from, to string) error
	Delete(name string) error
	RemoveDir(dir string) error
	Stor(name string, r io.Reader) error
	Retr(name string) (io.ReadCloser, error)
	Quit() error
}

type conn struct {
	*ftp.ServerConn
}

func (c conn) Retr(name string) (io.ReadCloser, error) {
	resp, err := c.ServerConn.Retr(name)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	Timeout     time.Duration
	DisableEPSV bool
	ExplicitTLS bool
}

func ConfigFromSettings(s remote.Settings) (Config, error) {
	cfg := Config{
		Host:        s.Value(remote.SettingHost),
		Port:        remote.SettingInt(s, remote.SettingPort, DefaultPort),
		User:        s.Value(remote.SettingUser),
		Password:    s.Value(remote.SettingPassword),
		Timeout:     remote.SettingDuration(s, remote.SettingTimeout, ftp.DefaultDialTimeout),
		DisableEPSV: remote.SettingBool(s, remote.SettingDisableEPSV, false),
		ExplicitTLS: remote.SettingBool(s, remote.SettingExplicitTLS, false),
	}
	if cfg.Host == "" {
		return cfg, errors.New("ftp: host is required")
	}
	if cfg.User == "" {
		cfg.User = "anonymous"
	}
	return cfg, nil
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
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

type Provider struct {
	cfg  Config
	dial func(ctx context.Context) (serverConn, error)
	conn serverConn

	reply    string
	negative string
}

func New(cfg Config) *Provider {
	p := &Provider{cfg: cfg}
	p.dial = p.dialServer
	return p
}

func (p *Provider) dialServer(ctx context.Context) (serverConn, error) {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(p.cfg.Timeout),
		ftp.DialWithDisabledEPSV(p.cfg.DisableEPSV),
	}
	if p.cfg.ExplicitTLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: p.cfg.Host}))
	}
	c, err := ftp.Dial(p.cfg.Address(), opts...)
	if err != nil {
		return nil, err
	}
	return conn{c}, nil
}

func (p *Provider) Connect(ctx context.Context) error {
	if p.conn != nil {
		return nil
	}
	c, err := p.dial(ctx)
	if err != nil {
		p.result(err)
		return fmt.Errorf("failed to dial '%s': %w", p.cfg.Address(), err)
	}
	if err := c.Login(p.cfg.User, p.cfg.Password); err != nil {
		p.result(err)
		_ = c.Quit()
		return fmt.Errorf("failed to login as '%s': %w", p.cfg.User, err)
	}
	p.conn = c
	p.clear()
	return nil
}

func (p *Provider) Disconnect() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Quit()
	p.conn = nil
	return err
}

func (p *Provider) IsConnected() bool {
	return p.conn != nil
}

func (p *Provider) clear() {
	p.reply = ""
	p.negative = ""
}

// result turns protocol level rejections into a false return, keeping the
// reply text. Anything else is a transport failure.
func (p *Provider) result(err error) (bool, error) {
	if err == nil {
		p.clear()
		return true, nil
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		p.reply = fmt.Sprintf("%d %s", protoErr.Code, protoErr.Msg)
		if protoErr.Code >= 400 {
			p.negative = p.reply
		}
		return false, nil
	}
	p.reply = err.Error()
	p.negative = p.reply
	return false, err
}

func (p *Provider) ensure() error {
	if p.conn == nil {
		return remote.ErrNotConnected
	}
	return nil
}

func (p *Provider) ChangeWorkingDirectory(dir string) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	return p.result(p.conn.ChangeDir(dir))
}

func (p *Provider) PrintWorkingDirectory() (string, error) {
	if err := p.ensure(); err != nil {
		return "", err
	}
	dir, err := p.conn.CurrentDir()
	if err != nil {
		p.result(err)
		return "", err
	}
	return dir, nil
}

func (p *Provider) MakeDirectory(name string) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	return p.result(p.conn.MakeDir(name))
}

func (p *Provider) ListFiles() ([]remote.RemoteFile, error) {
	if err := p.ensure(); err != nil {
		return nil, err
	}
	cwd, err := p.conn.CurrentDir()
	if err != nil {
		return nil, err
	}
	entries, err := p.conn.List("")
	if ok, err := p.result(err); !ok {
		if err == nil {
			err = fmt.Errorf("ftp: %s", p.negative)
		}
		return nil, err
	}

	files := make([]remote.RemoteFile, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		files = append(files, toRemoteFile(cwd, e))
	}
	return files, nil
}

// ListFile prefers MLST and falls back to listing the parent directory on
// servers without it.
func (p *Provider) ListFile(name string) (*remote.RemoteFile, error) {
	if err := p.ensure(); err != nil {
		return nil, err
	}
	parent, base := path.Dir(name), path.Base(name)

	entry, err := p.conn.GetEntry(name)
	if err == nil {
		p.clear()
		entry.Name = base
		rf := toRemoteFile(parent, entry)
		return &rf, nil
	}
	var protoErr *textproto.Error
	if !errors.As(err, &protoErr) {
		return nil, err
	}
	if protoErr.Code != ftp.StatusNotImplemented && protoErr.Code != ftp.StatusCommandNotImplemented {
		p.result(err)
		return nil, nil
	}

	entries, err := p.conn.List(parent)
	if ok, err := p.result(err); !ok {
		return nil, err
	}
	for _, e := range entries {
		if e.Name == base {
			rf := toRemoteFile(parent, e)
			return &rf, nil
		}
	}
	return nil, nil
}

func (p *Provider) Exists(parent, name string) (bool, error) {
	rf, err := p.ListFile(path.Join(parent, name))
	return rf != nil, err
}

func (p *Provider) Rename(from, to string) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	return p.result(p.conn.Rename(from, to))
}

func (p *Provider) DeleteFile(name string) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	return p.result(p.conn.Delete(name))
}

func (p *Provider) DeleteDirectory(dir string) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	return p.result(p.conn.RemoveDir(dir))
}

func (p *Provider) StoreFile(name string, r io.Reader) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	return p.result(p.conn.Stor(name, r))
}

func (p *Provider) RetrieveFile(name string, w io.Writer) (bool, error) {
	if err := p.ensure(); err != nil {
		return false, err
	}
	resp, err := p.conn.Retr(name)
	if err != nil {
		return p.result(err)
	}
	_, copyErr := io.Copy(w, resp)
	closeErr := resp.Close()
	if copyErr != nil {
		return p.result(copyErr)
	}
	return p.result(closeErr)
}

// GetPermissions is unsupported: the listing parser does not expose modes.
func (p *Provider) GetPermissions(string) (int, error) {
	return -1, nil
}

func (p *Provider) SetPermissions(int, string) (bool, error) {
	p.negative = "changing permissions is not supported over ftp"
	p.reply = p.negative
	return false, nil
}

func (p *Provider) GetReplyString() string {
	return p.reply
}

func (p *Provider) GetNegativeReplyString() string {
	return p.negative
}

func toRemoteFile(parent string, e *ftp.Entry) remote.RemoteFile {
	kind := remote.KindFile
	switch e.Type {
	case ftp.EntryTypeFolder:
		kind = remote.KindDirectory
	case ftp.EntryTypeLink:
		kind = remote.KindLink
	}
	return remote.RemoteFile{
		Name:            e.Name,
		ParentDirectory: parent,
		Size:            int64(e.Size),
		Kind:            kind,
		ModTime:         e.Time,
	}
}
