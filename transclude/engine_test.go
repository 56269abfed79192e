package transclude_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/userweb"
	"github.com/sagarc03/userweb/transclude"
)

func newSite(t *testing.T, files map[string]string) userweb.Site {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	return userweb.Site{User: "alice", Root: root}
}

func expand(t *testing.T, e *transclude.Engine, site userweb.Site, name string) string {
	t.Helper()

	out, err := e.ExpandFile(context.Background(), site, filepath.Join(site.Root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(out)
}

func TestEngine_Expand(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name: "simple inclusion",
			files: map[string]string{
				"index.html": "<p>{nav.html}</p>",
				"nav.html":   "NAV",
			},
			want: "<p>NAV</p>",
		},
		{
			name: "relative to the including file",
			files: map[string]string{
				"index.html":   "[{parts/a.html}]",
				"parts/a.html": "a({b.html})",
				"parts/b.html": "b",
				"b.html":       "wrong",
			},
			want: "[a(b)]",
		},
		{
			name: "non-html files are inserted verbatim",
			files: map[string]string{
				"index.html": "<pre>{code.txt}</pre>",
				"code.txt":   "if x {y.html}",
				"y.html":     "never",
			},
			want: "<pre>if x {y.html}</pre>",
		},
		{
			name: "missing target is left in place",
			files: map[string]string{
				"index.html": "<style>body { color: red }</style>{gone.html}",
			},
			want: "<style>body { color: red }</style>{gone.html}",
		},
		{
			name: "self inclusion terminates",
			files: map[string]string{
				"index.html": "x{index.html}y",
			},
			want: "x{index.html}y",
		},
		{
			name: "mutual recursion terminates",
			files: map[string]string{
				"a.html": "A{b.html}",
				"b.html": "B{a.html}",
			},
			want: "AB{a.html}",
		},
		{
			name: "repeated inclusion is not a cycle",
			files: map[string]string{
				"index.html": "{n.html}-{n.html}",
				"n.html":     "N",
			},
			want: "N-N",
		},
		{
			name: "escaped braces",
			files: map[string]string{
				"index.html": `\{nav.html\} and a\b`,
				"nav.html":   "NAV",
			},
			want: `{nav.html} and a\b`,
		},
		{
			name: "escaped backslash before a marker",
			files: map[string]string{
				"index.html": `\\{nav.html}|\\\{nav.html}|a\\b`,
				"nav.html":   "NAV",
			},
			want: `\NAV|\{nav.html}|a\\b`,
		},
		{
			name: "markers do not span lines",
			files: map[string]string{
				"index.html": "function f() {\nreturn 1\n}",
			},
			want: "function f() {\nreturn 1\n}",
		},
		{
			name: "empty and nested braces",
			files: map[string]string{
				"index.html": "{}{{nav.html}}",
				"nav.html":   "NAV",
			},
			want: "{}{NAV}",
		},
		{
			name: "parent directory escape",
			files: map[string]string{
				"index.html": "{../../../../../../etc/passwd}",
			},
			want: "{../../../../../../etc/passwd}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := newSite(t, tt.files)
			e := transclude.NewEngine(transclude.Config{})

			first := "index.html"
			if _, ok := tt.files[first]; !ok {
				first = "a.html"
			}

			assert.Equal(t, tt.want, expand(t, e, site, first))
		})
	}
}

func TestEngine_DepthLimit(t *testing.T) {
	files := map[string]string{}
	for i := range 15 {
		files["f"+itoa(i)+".html"] = itoa(i) + "{f" + itoa(i+1) + ".html}"
	}
	site := newSite(t, files)

	got := expand(t, transclude.NewEngine(transclude.Config{MaxDepth: 3}), site, "f0.html")
	assert.Equal(t, "012{f3.html}", got)

	got = expand(t, transclude.NewEngine(transclude.Config{}), site, "f0.html")
	assert.Equal(t, "0123456789{f10.html}", got)
}

func TestEngine_AbsolutePaths(t *testing.T) {
	site := newSite(t, map[string]string{"nav.html": "NAV"})
	outside := newSite(t, map[string]string{"secret.html": "SECRET"})

	e := transclude.NewEngine(transclude.Config{})

	inside := "{" + filepath.Join(site.Root, "nav.html") + "}"
	out, err := e.Expand(context.Background(), site, []byte(inside), filepath.Join(site.Root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "NAV", string(out))

	escape := "{" + filepath.Join(outside.Root, "secret.html") + "}"
	out, err = e.Expand(context.Background(), site, []byte(escape), filepath.Join(site.Root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, escape, string(out))
}

func TestEngine_SymlinkOutsideSite(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	outside := newSite(t, map[string]string{"secret.html": "SECRET"})
	site := newSite(t, map[string]string{"index.html": "{link.html}"})
	require.NoError(t, os.Symlink(filepath.Join(outside.Root, "secret.html"), filepath.Join(site.Root, "link.html")))

	assert.Equal(t, "{link.html}", expand(t, transclude.NewEngine(transclude.Config{}), site, "index.html"))
}

func TestEngine_OnUnresolved(t *testing.T) {
	site := newSite(t, map[string]string{"index.html": "{a.html}{missing.html}", "a.html": "A{index.html}"})

	var got []transclude.Unresolved
	e := transclude.NewEngine(transclude.Config{
		OnUnresolved: func(_ context.Context, u transclude.Unresolved) {
			got = append(got, u)
		},
	})

	assert.Equal(t, "A{index.html}{missing.html}", expand(t, e, site, "index.html"))

	require.Len(t, got, 2)
	assert.Equal(t, "index.html", got[0].Marker)
	assert.Equal(t, filepath.Join(site.Root, "a.html"), got[0].Origin)
	assert.Equal(t, "missing.html", got[1].Marker)
	for _, u := range got {
		assert.ErrorIs(t, u.Err, userweb.ErrTransclusionUnresolved)
	}
}

func TestEngine_MaxFileSize(t *testing.T) {
	site := newSite(t, map[string]string{
		"index.html": "{big.txt}",
		"big.txt":    strings.Repeat("x", 100),
	})

	e := transclude.NewEngine(transclude.Config{MaxFileSize: 10})
	assert.Equal(t, "{big.txt}", expand(t, e, site, "index.html"))
}

func TestEngine_MaxFileSize_NotRead(t *testing.T) {
	site := newSite(t, map[string]string{"index.html": "{big.txt}"})
	big := filepath.Join(site.Root, "big.txt")
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("x", 100)), 0o644))
	require.NoError(t, os.Chmod(big, 0o200))
	if _, err := os.ReadFile(big); err == nil {
		t.Skip("file permissions are not enforced for this user")
	}

	var got []transclude.Unresolved
	e := transclude.NewEngine(transclude.Config{
		MaxFileSize: 10,
		OnUnresolved: func(_ context.Context, u transclude.Unresolved) {
			got = append(got, u)
		},
	})

	assert.Equal(t, "{big.txt}", expand(t, e, site, "index.html"))
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Err.Error(), "exceeds 10 bytes")
}

func TestEngine_MaxOutput(t *testing.T) {
	// five levels of ten markers each would produce 10^4 copies of the leaf
	files := map[string]string{"l4.html": strings.Repeat("x", 100)}
	for i := range 4 {
		files["l"+itoa(i)+".html"] = strings.Repeat("{l"+itoa(i+1)+".html}", 10)
	}
	site := newSite(t, files)

	var unresolved int
	e := transclude.NewEngine(transclude.Config{
		MaxOutput: 10_000,
		OnUnresolved: func(_ context.Context, u transclude.Unresolved) {
			unresolved++
			assert.ErrorIs(t, u.Err, userweb.ErrTransclusionUnresolved)
		},
	})

	out := expand(t, e, site, "l0.html")

	assert.LessOrEqual(t, len(out), 10_000+len(files["l0.html"]))
	assert.Contains(t, out, strings.Repeat("x", 100))
	assert.Contains(t, out, ".html}")
	assert.Positive(t, unresolved)
}

func TestEngine_CancelledContext(t *testing.T) {
	site := newSite(t, map[string]string{"index.html": "{a.html}", "a.html": "A"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := transclude.NewEngine(transclude.Config{}).Expand(ctx, site, []byte("{a.html}"), filepath.Join(site.Root, "index.html"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_ExpandFile_Missing(t *testing.T) {
	site := newSite(t, nil)

	_, err := transclude.NewEngine(transclude.Config{}).ExpandFile(context.Background(), site, filepath.Join(site.Root, "nope.html"))
	assert.ErrorIs(t, err, userweb.ErrNotFound)
}

func TestEngine_Deterministic(t *testing.T) {
	site := newSite(t, map[string]string{
		"index.html": "{a.html}{b.html}{a.html}",
		"a.html":     "<a>{b.html}</a>",
		"b.html":     "<b>{a.html}</b>",
	})
	e := transclude.NewEngine(transclude.Config{})

	first := expand(t, e, site, "index.html")
	for range 5 {
		assert.Equal(t, first, expand(t, e, site, "index.html"))
	}
	assert.Equal(t, "<a><b>{a.html}</b></a><b><a>{b.html}</a></b><a><b>{a.html}</b></a>", first)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
