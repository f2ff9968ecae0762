package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibility(t *testing.T) {
	v := NewVisibility(false, "vendor/", "*.log", "/config.local.php")
	shown := NewVisibility(true)

	tests := []struct {
		path    string
		dir     bool
		visible bool
	}{
		{path: "", dir: true, visible: true},
		{path: "index.php", visible: true},
		{path: ".git", dir: true},
		{path: "src/.svn/entries"},
		{path: "_svn", dir: true},
		{path: "nbproject/project.xml"},
		{path: ".DS_Store"},
		{path: "Thumbs.db"},
		{path: "index.php~"},
		{path: ".env"},
		{path: "public/.htaccess", visible: true},
		{path: "vendor", dir: true},
		{path: "vendor/autoload.php"},
		{path: "lib/vendor/x.php"},
		{path: "logs/app.log"},
		{path: "logs", dir: true, visible: true},
		{path: "config.local.php"},
		{path: "sub/config.local.php", visible: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.visible, v.IsVisible(tt.path, tt.dir))
		})
	}

	assert.True(t, shown.IsVisible(".env", false))
	assert.False(t, shown.IsVisible(".git/config", false))
}
