package userweb

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// Select picks exactly one handling strategy for a resolved path.
//
// A file is served as-is, except for the handler artefacts which are never exposed.
// A directory is dispatched in fixed priority order:
//  1. POST with an executable form_executable
//  2. index.html
//  3. an executable index_executable
//  4. a generated listing
//
// A POST without a form handler and a GET on a directory whose only handler is
// form_executable both report a *MethodError.
func Select(r Resolved, method string) (Target, error) {
	if !r.IsDir {
		return selectFile(r, method)
	}

	dir := r.Path
	allowed := filepath.Join(dir, AllowedVariablesFile)

	if method == http.MethodPost {
		form, err := executable(r.Site, filepath.Join(dir, FormExecutableFile))
		if err != nil {
			return Target{}, err
		}
		if form == "" {
			return Target{}, &MethodError{Allow: []string{http.MethodGet, http.MethodHead}}
		}
		return Target{Kind: KindFormExecutable, Path: form, AllowedVariables: allowed}, nil
	}

	index, err := regular(r.Site, filepath.Join(dir, IndexFile))
	if err != nil {
		return Target{}, err
	}
	if index != "" {
		return Target{Kind: KindStaticFile, Path: index}, nil
	}

	indexExec, err := executable(r.Site, filepath.Join(dir, IndexExecutableFile))
	if err != nil {
		return Target{}, err
	}
	if indexExec != "" {
		return Target{Kind: KindIndexExecutable, Path: indexExec, AllowedVariables: allowed}, nil
	}

	form, err := executable(r.Site, filepath.Join(dir, FormExecutableFile))
	if err != nil {
		return Target{}, err
	}
	if form != "" {
		return Target{}, &MethodError{Allow: []string{http.MethodPost}}
	}

	return Target{Kind: KindDirectory, Path: dir}, nil
}

func selectFile(r Resolved, method string) (Target, error) {
	requested := r.Name
	canonical := filepath.Base(r.Path)

	if requested == FormExecutableFile && method == http.MethodPost {
		if !isExecutable(r.Path) {
			return Target{}, &MethodError{Allow: []string{http.MethodGet, http.MethodHead}}
		}
		return Target{
			Kind:             KindFormExecutable,
			Path:             r.Path,
			AllowedVariables: filepath.Join(filepath.Dir(r.Path), AllowedVariablesFile),
		}, nil
	}

	if IsHandlerFile(requested) || IsHandlerFile(canonical) {
		return Target{}, fmt.Errorf("select: %w: %s", ErrNotFound, requested)
	}

	if method == http.MethodPost {
		return Target{}, &MethodError{Allow: []string{http.MethodGet, http.MethodHead}}
	}

	return Target{Kind: KindStaticFile, Path: r.Path}, nil
}

// regular returns the canonical path of p when it is a regular file inside the site,
// or "" when it does not exist.
func regular(site Site, p string) (string, error) {
	resolved, err := site.Contain(p)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil
	}

	return resolved, nil
}

func executable(site Site, p string) (string, error) {
	resolved, err := regular(site, p)
	if err != nil || resolved == "" {
		return "", err
	}
	if !isExecutable(resolved) {
		return "", nil
	}
	return resolved, nil
}

func isExecutable(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
