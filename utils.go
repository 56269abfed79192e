package userweb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Well-known file names inside a site directory.
const (
	IndexFile            = "index.html"
	IndexExecutableFile  = "index_executable"
	FormExecutableFile   = "form_executable"
	AllowedVariablesFile = "allowed_variables"
)

// IsValidUsername reports whether s can name a user directory.
// It rejects empty names, "." and "..", path separators, control characters and whitespace.
func IsValidUsername(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}

	if !utf8.ValidString(s) {
		return false
	}

	if strings.ContainsAny(s, `/\`) {
		return false
	}

	for _, r := range s {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

// IsHandlerFile reports whether name is one of the executable handler artefacts,
// which are never served as content.
func IsHandlerFile(name string) bool {
	switch name {
	case IndexExecutableFile, FormExecutableFile, AllowedVariablesFile:
		return true
	default:
		return false
	}
}

// IsHTML reports whether name carries an HTML extension.
func IsHTML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	default:
		return false
	}
}

// WithinRoot reports whether p is root itself or a descendant of root.
// Both paths must already be canonical.
func WithinRoot(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Contain resolves every symlink in p and checks that the result stays inside the site.
// It returns ErrNotFound when p does not exist and ErrPathTraversal when it escapes.
func (s Site) Contain(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	if !WithinRoot(s.Root, resolved) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, p)
	}

	return resolved, nil
}

// ReadFile reads a contained file of the site. Missing files, directories and files
// that resolve outside the site all report an error.
func (s Site) ReadFile(p string) ([]byte, error) {
	resolved, err := s.Contain(p)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("read file: %w: not a regular file", ErrNotFound)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}
