package configmgr

import (
	"context"
	"fmt"
	"sort"

	"github.com/mwantia/goremote/pkg/db/models"
)

// Store is the part of the metadata store holding configurations.
type Store interface {
	ListConfigSets(ctx context.Context) ([]models.ConfigSet, error)
	SaveConfigSet(ctx context.Context, set *models.ConfigSet) error
	DeleteConfigSet(ctx context.Context, name string) error
	CurrentConfigSet(ctx context.Context) (string, error)
	SetCurrentConfigSet(ctx context.Context, name string) error
}

// StoreProvider loads configurations from a Store and writes them back with
// Persist. Values of obfuscated properties are stored rot13 encoded.
type StoreProvider struct {
	store      Store
	properties []string
	obfuscated map[string]struct{}
}

func NewStoreProvider(store Store, properties []string, obfuscated ...string) *StoreProvider {
	p := &StoreProvider{
		store:      store,
		properties: properties,
		obfuscated: make(map[string]struct{}, len(obfuscated)),
	}
	for _, key := range obfuscated {
		p.obfuscated[key] = struct{}{}
	}
	return p
}

func (p *StoreProvider) ConfigProperties() []string {
	return append([]string(nil), p.properties...)
}

func (p *StoreProvider) Configs(ctx context.Context) (map[string]map[string]string, error) {
	sets, err := p.store.ListConfigSets(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]map[string]string, len(sets))
	for _, set := range sets {
		props := make(map[string]string, len(set.Properties)+1)
		for _, prop := range set.Properties {
			props[prop.Key] = p.decode(prop.Key, prop.Value)
		}
		if set.Label != "" {
			props[PropDisplayName] = set.Label
		}
		result[set.Name] = props
	}
	return result, nil
}

func (p *StoreProvider) ActiveConfig(ctx context.Context) (string, error) {
	return p.store.CurrentConfigSet(ctx)
}

// Persist writes every live configuration, purges deleted ones from storage
// and records the current configuration.
func (p *StoreProvider) Persist(ctx context.Context, m *Manager) error {
	for _, name := range m.ConfigurationNames() {
		if !m.Exists(name) {
			if err := p.store.DeleteConfigSet(ctx, name); err != nil {
				return fmt.Errorf("failed to purge configuration '%s': %w", name, err)
			}
			m.forget(name)
			continue
		}

		values := m.Configuration(name).Values()
		set := &models.ConfigSet{
			Name:  name,
			Label: values[PropDisplayName],
		}
		keys := make([]string, 0, len(values))
		for key := range values {
			if key != PropDisplayName {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			set.Properties = append(set.Properties, models.ConfigProperty{
				Key:   key,
				Value: p.encode(key, values[key]),
			})
		}
		if err := p.store.SaveConfigSet(ctx, set); err != nil {
			return fmt.Errorf("failed to save configuration '%s': %w", name, err)
		}
	}

	return p.store.SetCurrentConfigSet(ctx, m.Current().Name())
}

func (p *StoreProvider) encode(key, value string) string {
	if _, ok := p.obfuscated[key]; ok {
		return Rot13(value)
	}
	return value
}

func (p *StoreProvider) decode(key, value string) string {
	return p.encode(key, value)
}

// forget drops the name of a deleted configuration once storage is purged.
func (m *Manager) forget(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if props, ok := m.configs[name]; ok && props == nil {
		delete(m.configs, name)
	}
}
