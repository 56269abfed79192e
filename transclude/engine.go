// Package transclude expands inclusion markers in HTML content.
//
// A marker is a file path between braces, {like/this.html}. Relative paths are resolved
// against the directory of the file being expanded; absolute paths are used as-is. In both
// cases the target must be a regular file inside the site after symlink resolution.
// Included HTML files are expanded in turn, depth first; other files are inserted
// verbatim.
//
// Backslashes escape braces. In a run of backslashes directly before a brace, each pair
// emits one backslash; an odd backslash left over makes the brace literal, so \{x} is
// the text {x} and \\{x} is a backslash followed by the expansion of x. Backslashes that
// are not followed by a brace are copied unchanged.
//
// Markers that cannot be expanded (missing or unreadable files, files outside the site,
// cycles, chains deeper than the configured limit, or inclusions that would take the page
// past its output budget) are left in place verbatim, so CSS and script blocks pass
// through untouched.
//
// Expansion is iterative: an explicit stack holds one frame per file on the current
// inclusion chain and the set of canonical paths on that chain detects cycles.
package transclude

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sagarc03/userweb"
)

const (
	defaultMaxDepth     = 10
	defaultMaxMarkerLen = 4096
	defaultMaxFileSize  = 8 << 20
	defaultMaxOutput    = 4 << 20
)

// Unresolved describes a marker that was left in place.
type Unresolved struct {
	Marker string
	Origin string
	Err    error
}

// Config holds Engine configuration.
type Config struct {
	MaxDepth     int   // files on one inclusion chain, including the origin (default: 10)
	MaxMarkerLen int   // longest path accepted between braces (default: 4096)
	MaxFileSize  int64 // largest file that may be included (default: 8 MiB)
	// MaxOutput bounds the bytes all included files may add to one page (default: 4 MiB).
	MaxOutput int64
	// OnUnresolved, when set, is called for every marker left in place.
	OnUnresolved func(ctx context.Context, u Unresolved)
}

// Engine expands markers. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	if cfg.MaxMarkerLen <= 0 {
		cfg.MaxMarkerLen = defaultMaxMarkerLen
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = defaultMaxOutput
	}
	return &Engine{cfg: cfg}
}

type frame struct {
	data []byte
	pos  int
	path string
	dir  string
	scan bool
}

// ExpandFile reads a file of the site and expands it.
func (e *Engine) ExpandFile(ctx context.Context, site userweb.Site, path string) ([]byte, error) {
	data, err := site.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("expand file: %w", err)
	}
	return e.Expand(ctx, site, data, path)
}

// Expand returns content with every resolvable marker replaced by the referenced file.
// origin is the path content was read from; it anchors relative markers and counts as
// the first file of the inclusion chain. Only context cancellation is reported as an error.
func (e *Engine) Expand(ctx context.Context, site userweb.Site, content []byte, origin string) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(content))

	root := &frame{data: content, dir: filepath.Dir(origin), scan: true}
	if canonical, err := site.Contain(origin); err == nil {
		root.path = canonical
		root.dir = filepath.Dir(canonical)
	} else {
		root.path = filepath.Clean(origin)
	}

	stack := []*frame{root}
	chain := map[string]bool{root.path: true}
	var included int64

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("expand: %w", err)
		}

		f := stack[len(stack)-1]

		if !f.scan {
			out.Write(f.data[f.pos:])
			f.pos = len(f.data)
		}

		for f.pos < len(f.data) {
			next := bytes.IndexAny(f.data[f.pos:], `{\`)
			if next < 0 {
				out.Write(f.data[f.pos:])
				f.pos = len(f.data)
				break
			}
			out.Write(f.data[f.pos : f.pos+next])
			f.pos += next

			if f.data[f.pos] == '\\' {
				run := 0
				for f.pos+run < len(f.data) && f.data[f.pos+run] == '\\' {
					run++
				}
				after := f.pos + run
				if after >= len(f.data) || (f.data[after] != '{' && f.data[after] != '}') {
					out.Write(f.data[f.pos:after])
					f.pos = after
					continue
				}
				out.Write(bytes.Repeat([]byte{'\\'}, run/2))
				f.pos = after
				if run%2 == 1 {
					out.WriteByte(f.data[after])
					f.pos++
					continue
				}
				if f.data[after] == '}' {
					out.WriteByte('}')
					f.pos++
					continue
				}
			}

			end, ok := e.markerEnd(f.data, f.pos)
			if !ok {
				out.WriteByte('{')
				f.pos++
				continue
			}

			marker := string(f.data[f.pos+1 : end])
			child, err := e.open(site, f, marker, chain, len(stack), e.cfg.MaxOutput-included)
			if err != nil {
				e.report(ctx, Unresolved{Marker: marker, Origin: f.path, Err: err})
				out.Write(f.data[f.pos : end+1])
				f.pos = end + 1
				continue
			}

			f.pos = end + 1
			included += int64(len(child.data))
			stack = append(stack, child)
			chain[child.path] = true
			break
		}

		if top := stack[len(stack)-1]; top.pos >= len(top.data) {
			delete(chain, top.path)
			stack = stack[:len(stack)-1]
		}
	}

	return out.Bytes(), nil
}

// markerEnd finds the closing brace of the marker starting at start. Markers are
// non-empty, stay on one line, do not nest and are bounded in length.
func (e *Engine) markerEnd(data []byte, start int) (int, bool) {
	limit := min(len(data), start+1+e.cfg.MaxMarkerLen+1)
	for i := start + 1; i < limit; i++ {
		switch data[i] {
		case '}':
			return i, i > start+1
		case '{', '\n', '\r':
			return 0, false
		}
	}
	return 0, false
}

func (e *Engine) open(site userweb.Site, parent *frame, marker string, chain map[string]bool, depth int, budget int64) (*frame, error) {
	p := marker
	if !filepath.IsAbs(p) {
		p = filepath.Join(parent.dir, p)
	}

	canonical, err := site.Contain(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", userweb.ErrTransclusionUnresolved, err)
	}

	if chain[canonical] {
		return nil, fmt.Errorf("%w: cycle through %s", userweb.ErrTransclusionUnresolved, canonical)
	}

	if depth >= e.cfg.MaxDepth {
		return nil, fmt.Errorf("%w: depth limit %d reached", userweb.ErrTransclusionUnresolved, e.cfg.MaxDepth)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", userweb.ErrTransclusionUnresolved, err)
	}
	if err := e.checkSize(canonical, info.Size(), budget); err != nil {
		return nil, err
	}

	data, err := site.ReadFile(canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", userweb.ErrTransclusionUnresolved, err)
	}

	// the file may have grown since it was stat'ed
	if err := e.checkSize(canonical, int64(len(data)), budget); err != nil {
		return nil, err
	}

	return &frame{
		data: data,
		path: canonical,
		dir:  filepath.Dir(canonical),
		scan: userweb.IsHTML(canonical),
	}, nil
}

func (e *Engine) checkSize(path string, size, budget int64) error {
	if size > e.cfg.MaxFileSize {
		return fmt.Errorf("%w: %s exceeds %d bytes", userweb.ErrTransclusionUnresolved, path, e.cfg.MaxFileSize)
	}
	if size > budget {
		return fmt.Errorf("%w: output budget of %d bytes exhausted", userweb.ErrTransclusionUnresolved, e.cfg.MaxOutput)
	}
	return nil
}

func (e *Engine) report(ctx context.Context, u Unresolved) {
	if e.cfg.OnUnresolved != nil {
		e.cfg.OnUnresolved(ctx, u)
		return
	}
	slog.DebugContext(ctx, "transclusion marker left in place", "marker", u.Marker, "origin", u.Origin, "err", u.Err)
}
