// Package repo discovers and loads the on-disk layout of a node
// configuration: a node file plus a directory of metadata-layer and
// bundle YAML files. Its file-resolution shape (glob expansion,
// recursive directory walk, URL passthrough) is grounded on
// internal/resolve/read.go from the teacher repo, repurposed here for
// YAML layers instead of Kubernetes manifests.
package repo

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IsURL reports whether filename names a remote resource rather than a
// local path, the same distinction read.go's ReadFileContent drew.
func IsURL(filename string) bool {
	u, err := url.Parse(filename)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ReadRemoteFileContent is left unimplemented: node configuration and
// bundles are expected to live alongside the node file on disk or in a
// version-controlled checkout, never fetched ad hoc over HTTP during an
// apply run.
func ReadRemoteFileContent(filename string) ([]byte, error) {
	return nil, fmt.Errorf("repo: remote sources are not supported: %s", filename)
}

// ReadFileContent reads filename, dispatching to ReadRemoteFileContent
// for URLs.
func ReadFileContent(filename string) ([]byte, error) {
	if IsURL(filename) {
		return ReadRemoteFileContent(filename)
	}
	return os.ReadFile(filename)
}

// ResolveAllFiles expands each of patterns (a literal path, a glob, or
// a directory) into a sorted, deduplicated list of concrete file paths.
// When recursive is true, directories are walked to their full depth;
// otherwise only their immediate *.yaml/*.yml children are included.
func ResolveAllFiles(patterns []string, recursive bool) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string

	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}

	for _, pattern := range patterns {
		if IsURL(pattern) {
			add(pattern)
			continue
		}

		info, statErr := os.Stat(pattern)
		switch {
		case statErr == nil && info.IsDir():
			if err := walkDir(pattern, recursive, add); err != nil {
				return nil, err
			}
		case statErr == nil:
			add(pattern)
		default:
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("repo: invalid pattern %q: %w", pattern, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("repo: no files matched %q", pattern)
			}
			for _, m := range matches {
				add(m)
			}
		}
	}

	sort.Strings(out)
	return out, nil
}

func walkDir(root string, recursive bool, add func(string)) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("repo: read dir %s: %w", root, err)
	}
	for _, e := range entries {
		full := filepath.Join(root, e.Name())
		if e.IsDir() {
			if recursive {
				if err := walkDir(full, recursive, add); err != nil {
					return err
				}
			}
			continue
		}
		if isYAMLFile(e.Name()) {
			add(full)
		}
	}
	return nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
