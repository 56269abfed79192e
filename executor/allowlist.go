package executor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sagarc03/userweb"
)

// AllowList is the set of variable names a handler accepts from a request.
type AllowList struct {
	names []string
	set   map[string]struct{}
}

// ParseAllowList reads newline-delimited variable names. Surrounding whitespace is
// trimmed; blank lines and lines starting with # are ignored.
func ParseAllowList(r io.Reader) (AllowList, error) {
	a := AllowList{set: make(map[string]struct{})}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		if _, dup := a.set[name]; dup {
			continue
		}
		a.set[name] = struct{}{}
		a.names = append(a.names, name)
	}
	if err := scanner.Err(); err != nil {
		return AllowList{}, fmt.Errorf("parse allow list: %w", err)
	}

	return a, nil
}

// LoadAllowList reads the allowed_variables file at path. A missing file, or one that
// resolves outside the site, yields an empty list.
func LoadAllowList(site userweb.Site, path string) (AllowList, error) {
	data, err := site.ReadFile(path)
	if err != nil {
		if errors.Is(err, userweb.ErrNotFound) || errors.Is(err, userweb.ErrPathTraversal) {
			return AllowList{}, nil
		}
		return AllowList{}, fmt.Errorf("load allow list: %w", err)
	}

	return ParseAllowList(strings.NewReader(string(data)))
}

// Names returns the listed names in file order.
func (a AllowList) Names() []string {
	return append([]string(nil), a.names...)
}

// Allows reports whether key may be passed to a handler.
// Keys must be listed and be usable as environment variable names. All-uppercase keys
// are refused even when listed, which keeps PATH, LD_PRELOAD and friends out of reach.
func (a AllowList) Allows(key string) bool {
	if _, ok := a.set[key]; !ok {
		return false
	}
	if key == "" || strings.ContainsAny(key, "=\x00") {
		return false
	}
	return key != strings.ToUpper(key)
}

// Environment filters vars and returns them as sorted KEY=value pairs.
// The result is never nil, so it can be used directly as an empty exec.Cmd environment.
func (a AllowList) Environment(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		if !a.Allows(k) || strings.ContainsRune(v, 0) {
			continue
		}
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}
