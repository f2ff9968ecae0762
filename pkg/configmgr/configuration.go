package configmgr

import "fmt"

// Configuration is a view on one named configuration. It holds no data of
// its own; every access goes through the owning manager.
type Configuration struct {
	m    *Manager
	name string
}

func (c *Configuration) Name() string {
	return c.name
}

func (c *Configuration) IsDefault() bool {
	return c.name == DefaultName
}

func (c *Configuration) Exists() bool {
	return c.m.Exists(c.name)
}

// DisplayName falls back from the label to the name to a generic label for
// the default configuration.
func (c *Configuration) DisplayName() string {
	if label := c.m.value(c.name, PropDisplayName); label != "" {
		return label
	}
	if c.name != DefaultName {
		return c.name
	}
	return c.m.DefaultLabel()
}

func (c *Configuration) Value(key string) string {
	return c.m.value(c.name, key)
}

// SetValue removes the property when value is empty.
func (c *Configuration) SetValue(key, value string) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	props := c.m.configs[c.name]
	if props == nil {
		return fmt.Errorf("%w: '%s'", ErrUnknownConfig, c.name)
	}
	if value == "" {
		delete(props, key)
	} else {
		props[key] = value
	}
	return nil
}

// Values returns a copy of all properties.
func (c *Configuration) Values() map[string]string {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	result := make(map[string]string, len(c.m.configs[c.name]))
	for k, v := range c.m.configs[c.name] {
		result[k] = v
	}
	return result
}

func (c *Configuration) IsValid() bool {
	return c.ErrorMessage() == ""
}

func (c *Configuration) ErrorMessage() string {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.errors[c.name]
}

func (c *Configuration) SetErrorMessage(msg string) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if msg == "" {
		delete(c.m.errors, c.name)
		return
	}
	c.m.errors[c.name] = msg
}

// Delete keeps the name known to the manager so that storage can be purged
// later. A deleted current configuration falls back to the default.
func (c *Configuration) Delete() error {
	if c.IsDefault() {
		return ErrDefaultConfig
	}

	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if _, ok := c.m.configs[c.name]; !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownConfig, c.name)
	}
	c.m.configs[c.name] = nil
	delete(c.m.errors, c.name)
	if c.m.current == c.name {
		c.m.current = DefaultName
	}
	return nil
}

func (c *Configuration) String() string {
	return c.DisplayName()
}
