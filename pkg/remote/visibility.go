package remote

import (
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

var defaultIgnoredNames = map[string]struct{}{
	"CVS":       {},
	"SCCS":      {},
	".svn":      {},
	"_svn":      {},
	".git":      {},
	".hg":       {},
	".bzr":      {},
	"nbproject": {},
	".idea":     {},
	".vscode":   {},
	".DS_Store": {},
	"Thumbs.db": {},
}

// alwaysVisible names are shown even when hidden files are filtered.
var alwaysVisible = map[string]struct{}{
	".htaccess": {},
}

// Visibility filters the children of directories during tree expansion.
type Visibility struct {
	showHidden bool
	patterns   *ignore.GitIgnore
}

// NewVisibility compiles gitignore-style patterns on top of the built-in
// list of VCS and IDE metadata names.
func NewVisibility(showHidden bool, patterns ...string) *Visibility {
	v := &Visibility{showHidden: showHidden}
	if len(patterns) > 0 {
		v.patterns = ignore.CompileIgnoreLines(patterns...)
	}
	return v
}

// IsVisible checks every segment of a slash separated path relative to the
// sync root. The root itself ("") is always visible.
func (v *Visibility) IsVisible(relPath string, dir bool) bool {
	if relPath == "" {
		return true
	}
	segments := strings.Split(relPath, "/")
	for i, name := range segments {
		last := i == len(segments)-1
		if !v.nameVisible(name) {
			return false
		}
		if v.patterns == nil {
			continue
		}
		candidate := strings.Join(segments[:i+1], "/")
		if !last || dir {
			candidate += "/"
		}
		if v.patterns.MatchesPath(candidate) {
			return false
		}
	}
	return true
}

func (v *Visibility) nameVisible(name string) bool {
	if name == "" {
		return true
	}
	if _, ok := defaultIgnoredNames[name]; ok {
		return false
	}
	if strings.HasSuffix(name, "~") {
		return false
	}
	if _, ok := alwaysVisible[name]; ok {
		return true
	}
	return v.showHidden || !strings.HasPrefix(name, ".")
}
