// Package configmgr keeps named sets of connection properties in memory,
// tracks which one is current and notifies subscribers when that changes.
// Persistence is left to a ConfigProvider for loading and Persist for saving.
package configmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/asaskevich/EventBus"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	// DefaultName is the name of the configuration that always exists.
	DefaultName = ""
	// PropDisplayName holds the human readable label of a configuration.
	PropDisplayName = "$label"
	// TopicCurrentChanged receives (previous, current string) on every
	// MarkAsCurrentConfiguration.
	TopicCurrentChanged = "configmgr:current:changed"
)

var (
	ErrConfigExists  = errors.New("configuration already exists")
	ErrUnknownConfig = errors.New("unknown configuration")
	ErrDefaultConfig = errors.New("the default configuration cannot be deleted")
)

// ConfigProvider supplies the initial state of a Manager.
type ConfigProvider interface {
	// ConfigProperties enumerates the known property names.
	ConfigProperties() []string
	Configs(ctx context.Context) (map[string]map[string]string, error)
	ActiveConfig(ctx context.Context) (string, error)
}

type Manager struct {
	mu       sync.Mutex
	provider ConfigProvider
	bus      EventBus.Bus
	tag      language.Tag

	// A nil property map marks a deleted configuration whose name is kept
	// until storage has been purged.
	configs map[string]map[string]string
	errors  map[string]string
	current string
}

func NewManager(ctx context.Context, provider ConfigProvider) (*Manager, error) {
	m := &Manager{
		provider: provider,
		bus:      EventBus.New(),
		tag:      language.Und,
	}
	if err := m.Reset(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// SetLanguage changes the locale used by ConfigurationComparator and the
// label of the default configuration.
func (m *Manager) SetLanguage(tag language.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tag = tag
}

// Reset drops every in-memory change and reloads from the provider.
func (m *Manager) Reset(ctx context.Context) error {
	loaded, err := m.provider.Configs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configurations: %w", err)
	}
	active, err := m.provider.ActiveConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active configuration: %w", err)
	}

	configs := make(map[string]map[string]string, len(loaded)+1)
	for name, props := range loaded {
		copied := make(map[string]string, len(props))
		for k, v := range props {
			copied[k] = v
		}
		configs[name] = copied
	}
	if configs[DefaultName] == nil {
		configs[DefaultName] = make(map[string]string)
	}
	if configs[active] == nil {
		active = DefaultName
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = configs
	m.errors = make(map[string]string)
	m.current = active
	return nil
}

func (m *Manager) ConfigProperties() []string {
	return m.provider.ConfigProperties()
}

// CreateNew adds an empty configuration and makes it current without
// notifying subscribers.
func (m *Manager) CreateNew(name, displayName string) (*Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.configs[name] != nil {
		return nil, fmt.Errorf("%w: '%s'", ErrConfigExists, name)
	}
	props := make(map[string]string)
	if displayName != "" && displayName != name {
		props[PropDisplayName] = displayName
	}
	m.configs[name] = props
	delete(m.errors, name)
	m.current = name
	return &Configuration{m: m, name: name}, nil
}

// Exists is false for deleted configurations.
func (m *Manager) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configs[name] != nil
}

// ConfigurationNames includes deleted configurations not yet purged.
func (m *Manager) ConfigurationNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configurations returns the live configurations in display order.
func (m *Manager) Configurations() []*Configuration {
	m.mu.Lock()
	result := make([]*Configuration, 0, len(m.configs))
	for name, props := range m.configs {
		if props != nil {
			result = append(result, &Configuration{m: m, name: name})
		}
	}
	m.mu.Unlock()

	cmp := m.ConfigurationComparator()
	sort.SliceStable(result, func(i, j int) bool {
		return cmp(result[i], result[j]) < 0
	})
	return result
}

// Configuration returns nil if name does not exist.
func (m *Manager) Configuration(name string) *Configuration {
	if !m.Exists(name) {
		return nil
	}
	return &Configuration{m: m, name: name}
}

func (m *Manager) Default() *Configuration {
	return &Configuration{m: m, name: DefaultName}
}

func (m *Manager) Current() *Configuration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.configs[m.current] == nil {
		return &Configuration{m: m, name: DefaultName}
	}
	return &Configuration{m: m, name: m.current}
}

func (m *Manager) MarkAsCurrentConfiguration(name string) error {
	m.mu.Lock()
	if m.configs[name] == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: '%s'", ErrUnknownConfig, name)
	}
	previous := m.current
	m.current = name
	m.mu.Unlock()

	m.bus.Publish(TopicCurrentChanged, previous, name)
	return nil
}

// Subscribe registers fn for changes of the current configuration.
func (m *Manager) Subscribe(fn func(previous, current string)) error {
	return m.bus.Subscribe(TopicCurrentChanged, fn)
}

func (m *Manager) Unsubscribe(fn func(previous, current string)) error {
	return m.bus.Unsubscribe(TopicCurrentChanged, fn)
}

// ConfigurationComparator orders configurations by their display name using
// the collation rules of the manager's language.
func (m *Manager) ConfigurationComparator() func(a, b *Configuration) int {
	m.mu.Lock()
	c := collate.New(m.tag, collate.IgnoreCase)
	m.mu.Unlock()

	return func(a, b *Configuration) int {
		return c.CompareString(a.DisplayName(), b.DisplayName())
	}
}

// Validate stores the result of check as the error message of every live
// configuration.
func (m *Manager) Validate(check func(*Configuration) error) {
	for _, cfg := range m.Configurations() {
		if err := check(cfg); err != nil {
			cfg.SetErrorMessage(err.Error())
		} else {
			cfg.SetErrorMessage("")
		}
	}
}

func (m *Manager) value(name, key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configs[name][key]
}
