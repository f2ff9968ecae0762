package configmgr

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const defaultLabelKey = "configmgr.default.label"

// labels is looked up along the parent chain of a tag, so the Und entry
// serves every language without a translation.
var labels = catalog.NewBuilder()

func init() {
	for tag, label := range map[language.Tag]string{
		language.Und:     "<default>",
		language.German:  "<Standard>",
		language.French:  "<par défaut>",
		language.Spanish: "<predeterminado>",
		language.Dutch:   "<standaard>",
	} {
		if err := labels.SetString(tag, defaultLabelKey, label); err != nil {
			panic(err)
		}
	}
}

// DefaultLabel is the display name of the unlabelled default configuration
// in the language of tag.
func DefaultLabel(tag language.Tag) string {
	return message.NewPrinter(tag, message.Catalog(labels)).Sprintf(defaultLabelKey)
}

// DefaultLabel is the default label in the manager's language.
func (m *Manager) DefaultLabel() string {
	m.mu.Lock()
	tag := m.tag
	m.mu.Unlock()
	return DefaultLabel(tag)
}
