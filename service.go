package userweb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const htmlContentType = "text/html; charset=utf-8"

// SiteResolver maps usernames and request paths onto contained filesystem locations.
// Implementations must not cache lookups across requests.
type SiteResolver interface {
	// Resolve turns a request path under a user's site into a canonical path.
	//
	// Returns:
	//   - ErrUnknownUser if the username has no home directory
	//   - ErrNoSite if the home directory has no site directory
	//   - ErrPathTraversal if the path, after symlink resolution, leaves the site
	//   - ErrNotFound if nothing exists at the path
	Resolve(ctx context.Context, username, requestPath string) (Resolved, error)

	// Sites lists every user that publishes a site, sorted by username.
	// Returns ErrNotFound when sites cannot be enumerated.
	Sites(ctx context.Context) ([]SiteInfo, error)
}

// Executor runs executable handlers.
//
// Implementations own the whole process lifecycle: the process must be reaped and its
// pipes released before Invoke returns, including on cancellation and timeout.
type Executor interface {
	// Invoke runs the handler described by inv and returns its standard output.
	// Any failure to produce output is reported as ErrHandlerExecutionFailed.
	Invoke(ctx context.Context, inv Invocation) (Output, error)
}

// Indexer generates directory listings.
type Indexer interface {
	// Generate renders a listing of req.Dir honouring customisation files and the
	// p/n pagination query parameters.
	Generate(ctx context.Context, req IndexRequest) ([]byte, error)

	// ListSites renders the listing of published sites.
	ListSites(ctx context.Context, sites []SiteInfo, query url.Values) ([]byte, error)
}

// Transcluder expands inclusion markers in HTML content.
// Unresolvable markers never fail the expansion; only context cancellation does.
type Transcluder interface {
	Expand(ctx context.Context, site Site, content []byte, origin string) ([]byte, error)
}

// Service resolves requests and produces their content.
type Service struct {
	resolver    SiteResolver
	executor    Executor
	indexer     Indexer
	transcluder Transcluder
	cfg         ServiceConfig
}

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	// TranscludeOutput enables transclusion of HTML produced by executable handlers.
	TranscludeOutput bool
	// CacheMaxAge is advertised for static files and listings (default: 30s).
	CacheMaxAge time.Duration
}

func NewService(resolver SiteResolver, executor Executor, indexer Indexer, transcluder Transcluder, cfg ServiceConfig) (*Service, error) {
	if resolver == nil || executor == nil || indexer == nil || transcluder == nil {
		return nil, errors.New("new service: resolver, executor, indexer and transcluder are required")
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = 30 * time.Second
	}
	return &Service{
		resolver:    resolver,
		executor:    executor,
		indexer:     indexer,
		transcluder: transcluder,
		cfg:         cfg,
	}, nil
}

// Serve resolves req and runs exactly one handler for it.
//
// The caller is responsible for closing the returned Content.Body.
func (s *Service) Serve(ctx context.Context, req Request) (Content, error) {
	if err := ctx.Err(); err != nil {
		return Content{}, fmt.Errorf("serve: %w", err)
	}

	resolved, err := s.resolver.Resolve(ctx, req.Username, req.Path)
	if err != nil {
		return Content{}, fmt.Errorf("serve %s: %w", req.URLPath, err)
	}

	target, err := Select(resolved, req.Method)
	if err != nil {
		return Content{}, fmt.Errorf("serve %s: %w", req.URLPath, err)
	}

	slog.DebugContext(ctx, "dispatch", "user", resolved.Site.User, "kind", target.Kind, "path", target.Path)

	switch target.Kind {
	case KindStaticFile:
		return s.serveFile(ctx, resolved.Site, target)
	case KindIndexExecutable, KindFormExecutable:
		return s.serveExecutable(ctx, resolved.Site, target, req)
	case KindDirectory:
		return s.serveIndex(ctx, resolved.Site, target, req)
	default:
		return Content{}, fmt.Errorf("serve %s: unknown target %s", req.URLPath, target.Kind)
	}
}

// People renders the listing of every published site.
func (s *Service) People(ctx context.Context, query url.Values) (Content, error) {
	sites, err := s.resolver.Sites(ctx)
	if err != nil {
		return Content{}, fmt.Errorf("people: %w", err)
	}

	page, err := s.indexer.ListSites(ctx, sites, query)
	if err != nil {
		return Content{}, fmt.Errorf("people: %w", err)
	}

	return s.generated("index.html", htmlContentType, s.cacheControl(), page), nil
}

func (s *Service) serveFile(ctx context.Context, site Site, target Target) (Content, error) {
	f, err := os.Open(target.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Content{}, fmt.Errorf("serve file: %w", ErrNotFound)
		}
		return Content{}, fmt.Errorf("serve file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return Content{}, fmt.Errorf("serve file: %w", err)
	}

	name := filepath.Base(target.Path)

	if IsHTML(name) {
		data, readErr := io.ReadAll(f)
		_ = f.Close()
		if readErr != nil {
			return Content{}, fmt.Errorf("serve file: %w", readErr)
		}

		expanded, expandErr := s.transcluder.Expand(ctx, site, data, target.Path)
		if expandErr != nil {
			return Content{}, fmt.Errorf("serve file: %w", expandErr)
		}

		return s.generated(name, htmlContentType, s.cacheControl(), expanded), nil
	}

	return Content{
		Name:         name,
		ContentType:  DetectContentType(target.Path),
		CacheControl: s.cacheControl(),
		ModTime:      info.ModTime(),
		Body:         f,
	}, nil
}

func (s *Service) serveExecutable(ctx context.Context, site Site, target Target, req Request) (Content, error) {
	out, err := s.executor.Invoke(ctx, Invocation{
		Site:    site,
		Target:  target,
		Query:   req.Query,
		Payload: req.Payload,
	})
	if err != nil {
		return Content{}, fmt.Errorf("serve %s: %w", target.Kind, err)
	}

	body := out.Body
	if s.cfg.TranscludeOutput && strings.HasPrefix(out.ContentType, "text/html") {
		body, err = s.transcluder.Expand(ctx, site, body, target.Path)
		if err != nil {
			return Content{}, fmt.Errorf("serve %s: %w", target.Kind, err)
		}
	}

	return s.generated(filepath.Base(target.Path), out.ContentType, "no-cache", body), nil
}

func (s *Service) serveIndex(ctx context.Context, site Site, target Target, req Request) (Content, error) {
	page, err := s.indexer.Generate(ctx, IndexRequest{
		Site:    site,
		Dir:     target.Path,
		URLPath: req.URLPath,
		Query:   req.Query,
	})
	if err != nil {
		return Content{}, fmt.Errorf("serve index: %w", err)
	}

	return s.generated("index.html", htmlContentType, s.cacheControl(), page), nil
}

func (s *Service) generated(name, contentType, cacheControl string, body []byte) Content {
	return Content{
		Name:         name,
		ContentType:  contentType,
		CacheControl: cacheControl,
		Body:         readSeekNopCloser{bytes.NewReader(body)},
	}
}

func (s *Service) cacheControl() string {
	return fmt.Sprintf("max-age=%d", int(s.cfg.CacheMaxAge.Seconds()))
}

// DetectContentType infers a content type from the file extension, falling back to
// sniffing the file contents.
func DetectContentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}

	return mt.String()
}

type readSeekNopCloser struct {
	io.ReadSeeker
}

func (readSeekNopCloser) Close() error { return nil }
