package autoindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sagarc03/userweb"
)

// Customisation files read by the generator.
const (
	TitleFile      = "title"
	HeaderFile     = "header.html"
	FooterFile     = "footer.html"
	HeaderMarkdown = "header.md"
	FooterMarkdown = "footer.md"
	StylesFile     = "styles.css"
)

// Entry is one visible item of a listing.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// IsHidden reports whether name is a customisation or handler file, which are
// implementation artefacts rather than content.
func IsHidden(name string) bool {
	switch name {
	case TitleFile, HeaderFile, FooterFile, HeaderMarkdown, FooterMarkdown, StylesFile:
		return true
	default:
		return userweb.IsHandlerFile(name)
	}
}

// ReadEntries lists the visible entries of dir sorted by name.
// Entries that cannot be stat'ed, such as dangling symlinks, are skipped.
func ReadEntries(ctx context.Context, dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := de.Name()
		if IsHidden(name) {
			continue
		}

		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}

		entries = append(entries, Entry{
			Name:    name,
			IsDir:   info.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return entries, nil
}
