package userweb_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sagarc03/userweb"
)

// newSite creates an empty site rooted at a canonical temp directory.
func newSite(t *testing.T) userweb.Site {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	return userweb.Site{User: "alice", Root: root}
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
}

func resolved(t *testing.T, site userweb.Site, rel string) userweb.Resolved {
	t.Helper()

	p := filepath.Join(site.Root, rel)
	info, err := os.Stat(p)
	require.NoError(t, err)

	return userweb.Resolved{
		Site:    site,
		Path:    p,
		Name:    filepath.Base(p),
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("executable permission bits are not supported on windows")
	}
}
