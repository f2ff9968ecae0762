package remote

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a node of the transfer tree.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindLink
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindLink:
		return "link"
	default:
		return "other"
	}
}

// RemoteFile describes one entry as reported by the server.
type RemoteFile struct {
	Name            string
	ParentDirectory string
	Size            int64
	Kind            Kind
	ModTime         time.Time
}

// Path returns the absolute remote path of the entry.
func (f RemoteFile) Path() string {
	return path.Join(f.ParentDirectory, f.Name)
}

// Provider is a single remote protocol session. Implementations are not
// required to be safe for concurrent use; Client serializes every call.
//
// Methods returning a bool report a negative server reply as false with a nil
// error. A non-nil error signals a transport failure.
type Provider interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	ChangeWorkingDirectory(dir string) (bool, error)
	PrintWorkingDirectory() (string, error)
	MakeDirectory(name string) (bool, error)

	// ListFiles lists the current working directory.
	ListFiles() ([]RemoteFile, error)
	// ListFile returns nil if the path does not exist.
	ListFile(file string) (*RemoteFile, error)
	Exists(parent, name string) (bool, error)

	Rename(from, to string) (bool, error)
	DeleteFile(file string) (bool, error)
	DeleteDirectory(dir string) (bool, error)

	StoreFile(name string, r io.Reader) (bool, error)
	RetrieveFile(name string, w io.Writer) (bool, error)

	// GetPermissions returns -1 when permissions are unknown or unsupported.
	GetPermissions(name string) (int, error)
	SetPermissions(perms int, name string) (bool, error)

	GetReplyString() string
	GetNegativeReplyString() string
}

// Settings exposes the properties of a connection profile.
type Settings interface {
	Value(key string) string
}

// Profile property keys understood by the bundled providers.
const (
	SettingType                = "type"
	SettingHost                = "host"
	SettingPort                = "port"
	SettingUser                = "user"
	SettingPassword            = "password"
	SettingPrivateKey          = "private_key"
	SettingKnownHosts          = "known_hosts"
	SettingTimeout             = "timeout"
	SettingDisableEPSV         = "disable_epsv"
	SettingExplicitTLS         = "explicit_tls"
	SettingInitialDirectory    = "initial_directory"
	SettingLocalDirectory      = "local_directory"
	SettingUploadDirectly      = "upload_directly"
	SettingPreservePermissions = "preserve_permissions"
)

// SettingKeys lists every profile property in display order.
func SettingKeys() []string {
	return []string{
		SettingType,
		SettingHost,
		SettingPort,
		SettingUser,
		SettingPassword,
		SettingPrivateKey,
		SettingKnownHosts,
		SettingTimeout,
		SettingDisableEPSV,
		SettingExplicitTLS,
		SettingInitialDirectory,
		SettingLocalDirectory,
		SettingUploadDirectly,
		SettingPreservePermissions,
	}
}

// SettingInt returns def when the key is unset or not a number.
func SettingInt(s Settings, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s.Value(key)))
	if err != nil {
		return def
	}
	return v
}

// SettingBool accepts the forms understood by strconv.ParseBool.
func SettingBool(s Settings, key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s.Value(key)))
	if err != nil {
		return def
	}
	return v
}

// SettingDuration accepts Go durations and plain seconds.
func SettingDuration(s Settings, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(s.Value(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return def
}

// ProviderFactory creates sessions for one protocol.
type ProviderFactory interface {
	Type() string
	NewProvider(settings Settings) (Provider, error)
}

// Registry selects a ProviderFactory by the profile's type setting.
type Registry struct {
	factories map[string]ProviderFactory
}

func NewRegistry(factories ...ProviderFactory) *Registry {
	r := &Registry{factories: make(map[string]ProviderFactory)}
	for _, f := range factories {
		r.factories[strings.ToLower(f.Type())] = f
	}
	return r
}

func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) NewProvider(settings Settings) (Provider, error) {
	t := strings.ToLower(strings.TrimSpace(settings.Value(SettingType)))
	factory, ok := r.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: '%s' (supported: %s)", ErrUnknownProtocol, t, strings.Join(r.Types(), ", "))
	}
	return factory.NewProvider(settings)
}
