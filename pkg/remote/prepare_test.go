package remote

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareUpload_DeduplicatesExplicitDescendant(t *testing.T) {
	c, base := newTestClient(t, newFakeProvider(), Options{})
	writeLocal(t, base, map[string]string{"dir/a.txt": "a", "dir/b.txt": "b"})

	dir, err := c.LocalFile("dir")
	require.NoError(t, err)
	file, err := c.LocalFile("dir/a.txt")
	require.NoError(t, err)

	set, err := c.PrepareUpload(context.Background(), dir, file)
	require.NoError(t, err)

	assert.Equal(t, []string{"dir", "dir/a.txt", "dir/b.txt"}, setKeys(set))
	assert.True(t, set.Get("dir/a.txt").Parent().Equal(dir))
}

func TestPrepareUpload_FiltersInvisibleFiles(t *testing.T) {
	c, base := newTestClient(t, newFakeProvider(), Options{
		Visibility: NewVisibility(false, "build/", "*.log"),
	})
	writeLocal(t, base, map[string]string{
		".git/config":     "x",
		"src/main.php":    "x",
		"src/.hidden":     "x",
		"src/.htaccess":   "x",
		"src/backup.php~": "x",
		"build/out.bin":   "x",
		"logs/app.log":    "x",
		"nbproject/p.xml": "x",
	})

	explicit, err := c.LocalFile(".git/config")
	require.NoError(t, err)

	set, err := c.PrepareUpload(context.Background(), c.Root(), explicit)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "logs", "src", "src/.htaccess", "src/main.php"}, setKeys(set))
}

func TestPrepareDelete_NeverContainsRoot(t *testing.T) {
	p := newFakeProvider("/www/a/b/c.txt")
	c, _ := newTestClient(t, p, Options{})

	set, err := c.PrepareDelete(context.Background(), c.Root())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "a/b", "a/b/c.txt"}, setKeys(set))
}

func TestRemoteChildren_ListsOnce(t *testing.T) {
	p := newFakeProvider("/www/a.txt", "/www/b.txt")
	c, _ := newTestClient(t, p, Options{})
	require.NoError(t, c.Connect(context.Background()))

	root := c.Root()
	first, err := root.RemoteChildren()
	require.NoError(t, err)
	second, err := root.RemoteChildren()
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.listCalls)
	assert.True(t, root.HasRemoteChildrenFetched())
}

func TestTransferFile_IdentityAcrossSides(t *testing.T) {
	p := newFakeProvider("/www/sub/a.txt")
	c, base := newTestClient(t, p, Options{})
	writeLocal(t, base, map[string]string{"sub/a.txt": "local"})

	local, err := c.LocalFile("sub/a.txt")
	require.NoError(t, err)
	remote, err := c.RemoteFile(context.Background(), "/www/sub/a.txt")
	require.NoError(t, err)

	assert.True(t, local.Equal(remote))
	assert.Equal(t, local.ResolveLocalFile(), remote.ResolveLocalFile())
	assert.Equal(t, "/www/sub/a.txt", local.RemotePath())
	assert.Equal(t, "/www/sub", remote.ParentRemotePath())
	assert.Equal(t, 2, remote.Depth())

	set := NewTransferSet(local, remote)
	assert.Equal(t, 1, set.Len())
}

func TestLocalFile_OutsideRoot(t *testing.T) {
	c, _ := newTestClient(t, newFakeProvider(), Options{})

	_, err := c.LocalFile("../escape.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestRemoteFile_Missing(t *testing.T) {
	c, _ := newTestClient(t, newFakeProvider("/www/"), Options{})

	_, err := c.RemoteFile(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = c.RemoteFile(context.Background(), "/etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}
