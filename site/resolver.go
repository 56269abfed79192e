// Package site resolves usernames and request paths to locations inside a user's
// publishable content root.
//
// A site root is the user's home directory joined with a fixed directory name
// (www by default). Every resolved path is canonicalised with filepath.EvalSymlinks and
// checked to remain a descendant of the canonical site root, so symbolic links cannot be
// used to escape it. Nothing is cached: home directories and site roots are looked up
// fresh for every request.
package site

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sagarc03/userweb"
)

// DefaultDir is the directory inside a home directory that holds the site.
const DefaultDir = "www"

// LookupFunc returns the home directory of a user.
type LookupFunc func(username string) (string, error)

// Config holds resolver configuration.
type Config struct {
	// HomeBase, when set, places the home of user u at HomeBase/u instead of consulting
	// the system user database. It also enables site enumeration.
	HomeBase string `mapstructure:"home_base" yaml:"home_base"`
	// Dir is the site directory name inside a home directory (default: www).
	Dir string `mapstructure:"dir" yaml:"dir" validate:"required,excludesall=/"`
}

// Resolver implements userweb.SiteResolver on the local filesystem.
type Resolver struct {
	lookup   LookupFunc
	homeBase string
	dir      string
}

// NewResolver creates a Resolver. Without a HomeBase, home directories come from os/user.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		homeBase: cfg.HomeBase,
		dir:      cfg.Dir,
	}
	if r.dir == "" {
		r.dir = DefaultDir
	}
	if r.homeBase != "" {
		r.lookup = r.baseLookup
	} else {
		r.lookup = SystemLookup
	}
	return r
}

// SystemLookup finds a home directory in the system user database.
func SystemLookup(username string) (string, error) {
	u, err := user.Lookup(username)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return "", userweb.ErrUnknownUser
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if u.HomeDir == "" {
		return "", userweb.ErrUnknownUser
	}
	return u.HomeDir, nil
}

func (r *Resolver) baseLookup(username string) (string, error) {
	home := filepath.Join(r.homeBase, username)
	info, err := os.Stat(home)
	if err != nil || !info.IsDir() {
		return "", userweb.ErrUnknownUser
	}
	return home, nil
}

// Site looks up the site of a user.
func (r *Resolver) Site(ctx context.Context, username string) (userweb.Site, error) {
	if err := ctx.Err(); err != nil {
		return userweb.Site{}, err
	}

	if !userweb.IsValidUsername(username) {
		return userweb.Site{}, fmt.Errorf("site %q: %w", username, userweb.ErrUnknownUser)
	}

	home, err := r.lookup(username)
	if err != nil {
		if errors.Is(err, userweb.ErrUnknownUser) {
			return userweb.Site{}, fmt.Errorf("site %q: %w", username, err)
		}
		return userweb.Site{}, fmt.Errorf("site %q: %w: %w", username, userweb.ErrUnknownUser, err)
	}

	root, err := filepath.EvalSymlinks(filepath.Join(home, r.dir))
	if err != nil {
		return userweb.Site{}, fmt.Errorf("site %q: %w", username, userweb.ErrNoSite)
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return userweb.Site{}, fmt.Errorf("site %q: %w", username, userweb.ErrNoSite)
	}

	return userweb.Site{User: username, Root: root}, nil
}

// Resolve maps a request path under a user's site to a canonical filesystem path.
// "." and ".." segments are normalised before joining, and the joined path is checked
// again after symlink resolution.
func (r *Resolver) Resolve(ctx context.Context, username, requestPath string) (userweb.Resolved, error) {
	s, err := r.Site(ctx, username)
	if err != nil {
		return userweb.Resolved{}, err
	}

	if strings.ContainsRune(requestPath, 0) {
		return userweb.Resolved{}, fmt.Errorf("resolve: %w", userweb.ErrNotFound)
	}

	clean := path.Clean("/" + requestPath)
	joined := filepath.Join(s.Root, filepath.FromSlash(clean))

	canonical, err := s.Contain(joined)
	if err != nil {
		return userweb.Resolved{}, fmt.Errorf("resolve %s: %w", clean, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return userweb.Resolved{}, fmt.Errorf("resolve %s: %w", clean, userweb.ErrNotFound)
	}

	if !info.IsDir() && !info.Mode().IsRegular() {
		return userweb.Resolved{}, fmt.Errorf("resolve %s: %w: not a regular file", clean, userweb.ErrNotFound)
	}

	name := path.Base(clean)
	if name == "/" {
		name = ""
	}

	return userweb.Resolved{
		Site:    s,
		Path:    canonical,
		Name:    name,
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Sites lists users below HomeBase that have a site directory.
// Without a HomeBase there is no portable way to enumerate users and ErrNotFound is returned.
func (r *Resolver) Sites(ctx context.Context) ([]userweb.SiteInfo, error) {
	if r.homeBase == "" {
		return nil, fmt.Errorf("sites: %w", userweb.ErrNotFound)
	}

	entries, err := os.ReadDir(r.homeBase)
	if err != nil {
		return nil, fmt.Errorf("sites: %w", err)
	}

	sites := make([]userweb.SiteInfo, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s, err := r.Site(ctx, entry.Name())
		if err != nil {
			continue
		}

		info, err := os.Stat(s.Root)
		if err != nil {
			continue
		}

		sites = append(sites, userweb.SiteInfo{User: s.User, ModTime: info.ModTime()})
	}

	sort.Slice(sites, func(i, j int) bool { return sites[i].User < sites[j].User })

	return sites, nil
}
