// Package autoindex renders HTML listings for directories that have no index file.
//
// Listings hide customisation and handler files, are sorted by name so that pagination
// is reproducible, and can be customised per directory:
//
//   - title: page title (markup is stripped)
//   - header.html: inserted right after <body> (header.md is rendered as a fallback)
//   - footer.html: inserted right before </body> (footer.md is rendered as a fallback)
//   - styles.css: linked from the page head
//
// Header and footer fragments are passed through the transcluder with their own file as
// origin. The p and n query parameters select a page of n entries.
package autoindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/sagarc03/userweb"
)

const (
	defaultPeopleTitle = "People"
	modifiedLayout     = "2006-01-02T15:04:05Z"
)

var (
	strictPolicy *bluemonday.Policy
	policyOnce   sync.Once
)

// plainText strips all markup from s and returns unescaped text.
func plainText(s string) string {
	policyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// Config holds Generator configuration.
type Config struct {
	// PeopleTitle is the title of the site listing (default: People).
	PeopleTitle string
}

// Generator implements userweb.Indexer.
type Generator struct {
	transcluder userweb.Transcluder
	markdown    goldmark.Markdown
	cfg         Config
}

func NewGenerator(transcluder userweb.Transcluder, cfg Config) *Generator {
	if cfg.PeopleTitle == "" {
		cfg.PeopleTitle = defaultPeopleTitle
	}
	return &Generator{
		transcluder: transcluder,
		markdown:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
		cfg:         cfg,
	}
}

// Generate renders the listing of req.Dir.
func (g *Generator) Generate(ctx context.Context, req userweb.IndexRequest) ([]byte, error) {
	entries, err := ReadEntries(ctx, req.Dir)
	if err != nil {
		return nil, fmt.Errorf("generate index: %w", err)
	}

	dir := dirURL(req.URLPath)
	base := escapePath(dir)

	v := view{
		Title:  g.title(req.Site, req.Dir, dir),
		Parent: parentURL(base),
	}

	if _, err := req.Site.Contain(filepath.Join(req.Dir, StylesFile)); err == nil {
		v.Stylesheet = base + StylesFile
	}

	if v.Header, err = g.fragment(ctx, req.Site, req.Dir, HeaderFile, HeaderMarkdown); err != nil {
		return nil, fmt.Errorf("generate index: %w", err)
	}
	if v.Footer, err = g.fragment(ctx, req.Site, req.Dir, FooterFile, FooterMarkdown); err != nil {
		return nil, fmt.Errorf("generate index: %w", err)
	}

	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		// symlinks leading out of the site are not listed
		if _, err := req.Site.Contain(filepath.Join(req.Dir, e.Name)); err != nil {
			continue
		}
		views = append(views, newEntryView(base, e))
	}
	paginate(&v, views, req.Query)

	return render(v)
}

// ListSites renders the listing of published sites.
func (g *Generator) ListSites(ctx context.Context, sites []userweb.SiteInfo, query url.Values) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	views := make([]entryView, len(sites))
	for i, s := range sites {
		views[i] = newEntryView("/", Entry{Name: s.User, IsDir: true, ModTime: s.ModTime})
	}

	v := view{Title: g.cfg.PeopleTitle}
	paginate(&v, views, query)

	return render(v)
}

func paginate(v *view, entries []entryView, query url.Values) {
	page, ok := ParsePage(query)
	if !ok {
		v.Start = 1
		v.Entries = entries
		return
	}

	start, end := page.Bounds(len(entries))
	pages := page.Count(len(entries))

	v.Start = start + 1
	v.Entries = entries[start:end]
	v.Pagination = &paginationView{
		Number: page.Number,
		Size:   page.Size,
		Pages:  pages,
	}
	if page.Number > 1 && pages > 0 {
		v.Pagination.Prev = pageURL(min(page.Number-1, pages), page.Size)
	}
	if page.Number < pages {
		v.Pagination.Next = pageURL(page.Number+1, page.Size)
	}
}

func render(v view) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) title(site userweb.Site, dir, base string) string {
	data, err := site.ReadFile(filepath.Join(dir, TitleFile))
	if err == nil {
		if t := plainText(string(data)); t != "" {
			return t
		}
	}
	return "Index of " + base
}

// fragment returns the expanded HTML fragment, falling back to rendered Markdown.
// A missing fragment is not an error.
func (g *Generator) fragment(ctx context.Context, site userweb.Site, dir, htmlName, mdName string) (template.HTML, error) {
	p := filepath.Join(dir, htmlName)
	data, err := site.ReadFile(p)
	if err != nil {
		logSkipped(ctx, p, err)

		p = filepath.Join(dir, mdName)
		md, mdErr := site.ReadFile(p)
		if mdErr != nil {
			logSkipped(ctx, p, mdErr)
			return "", nil
		}

		var buf bytes.Buffer
		if err := g.markdown.Convert(md, &buf); err != nil {
			slog.WarnContext(ctx, "markdown fragment not rendered", "path", p, "err", err)
			return "", nil
		}
		data = buf.Bytes()
	}

	expanded, err := g.transcluder.Expand(ctx, site, data, p)
	if err != nil {
		return "", err
	}

	return template.HTML(strings.TrimRight(string(expanded), " \t\r\n")), nil //nolint:gosec // site owners author their own fragments
}

func logSkipped(ctx context.Context, p string, err error) {
	if errors.Is(err, userweb.ErrNotFound) {
		return
	}
	slog.DebugContext(ctx, "customisation file skipped", "path", p, "err", err)
}

func newEntryView(base string, e Entry) entryView {
	v := entryView{
		Name:     e.Name,
		Href:     base + url.PathEscape(e.Name),
		IsDir:    e.IsDir,
		Modified: e.ModTime.UTC().Format(modifiedLayout),
		Size:     e.Size,
	}
	if e.IsDir {
		v.Href += "/"
		v.HumanSize = "-"
	} else {
		v.HumanSize = humanize.IBytes(uint64(max(e.Size, 0)))
	}
	return v
}

// dirURL returns the URL path of a directory with a trailing slash, so both /alice/docs
// and /alice/docs/ produce identical links.
func dirURL(urlPath string) string {
	if urlPath == "" {
		return "/"
	}
	if !strings.HasSuffix(urlPath, "/") {
		return urlPath + "/"
	}
	return urlPath
}

// escapePath escapes every segment of a decoded URL path, so names containing
// '#', '?' or '%' stay inside the path.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func parentURL(base string) string {
	if base == "/" {
		return ""
	}
	parent := path.Dir(strings.TrimSuffix(base, "/"))
	if parent == "/" {
		return "/"
	}
	return parent + "/"
}

func pageURL(number, size int) string {
	q := url.Values{}
	q.Set("p", fmt.Sprint(number))
	q.Set("n", fmt.Sprint(size))
	return "?" + q.Encode()
}
