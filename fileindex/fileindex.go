// Package fileindex answers "which apt package ships this path" queries,
// the lookup AptResolver needs to turn a Binary/CHeader/Library
// requirement into an installable package name. It mirrors
// ognibuild/debian/file_search.py: a FileIndex interface with three
// implementations (ask apt-file, parse cached Contents files, consult a
// small hand-curated table).
package fileindex

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"github.com/ognibuild/ognibuild/session"
)

// FileIndex answers which packages provide a given path.
type FileIndex interface {
	// SearchFiles returns the packages that ship a file at path. When
	// regex is true, path is matched as a regular expression against
	// every indexed path instead of by exact/case-insensitive equality.
	SearchFiles(ctx context.Context, path string, regex, caseInsensitive bool) ([]string, error)
}

// PackageForPaths tries each of paths in turn against idx, returning the
// first path with any match. When more than one candidate package is
// found for that path, the shortest package name wins -- the same
// tie-break apt.get_package_for_paths uses ("Euhr. Pick the one with the
// shortest name?").
func PackageForPaths(ctx context.Context, idx FileIndex, paths []string, regex bool) (string, error) {
	var candidates []string
	seen := map[string]bool{}
	for _, path := range paths {
		pkgs, err := idx.SearchFiles(ctx, path, regex, false)
		if err != nil {
			return "", err
		}
		for _, pkg := range pkgs {
			if !seen[pkg] {
				seen[pkg] = true
				candidates = append(candidates, pkg)
			}
		}
		if len(candidates) > 0 {
			break
		}
	}
	if len(candidates) == 0 {
		return "", nil
	}
	if len(candidates) > 1 {
		sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) < len(candidates[j]) })
	}
	return candidates[0], nil
}

// PackageForPathsAll queries every index in turn (as
// get_packages_for_paths does) and returns the union of packages found
// for any of paths, in first-seen order.
func PackageForPathsAll(ctx context.Context, indexes []FileIndex, paths []string, regex, caseInsensitive bool) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, path := range paths {
		for _, idx := range indexes {
			pkgs, err := idx.SearchFiles(ctx, path, regex, caseInsensitive)
			if err != nil {
				return nil, err
			}
			for _, pkg := range pkgs {
				if !seen[pkg] {
					seen[pkg] = true
					out = append(out, pkg)
				}
			}
		}
	}
	return out, nil
}

// PackageInstaller installs OS packages; declared narrowly so
// AptFileIndex.Bootstrap doesn't need to import the resolver package.
type PackageInstaller interface {
	Install(packages []string) error
}

// AptFileIndex shells out to apt-file, auto-bootstrapping its cache the
// first time it is used. Grounded on AptFileFileSearcher.
type AptFileIndex struct {
	Session session.Session
}

const aptFileCacheIsEmptyPath = "/usr/share/apt-file/is-cache-empty"

// HasCache reports whether apt-file's on-disk cache has been populated,
// by invoking its own is-cache-empty helper (exit 0 = empty, 1 = not
// empty), exactly as AptFileFileSearcher.has_cache does.
func (a *AptFileIndex) HasCache() bool {
	if !a.Session.Exists(aptFileCacheIsEmptyPath) {
		return false
	}
	err := a.Session.CheckCall([]string{aptFileCacheIsEmptyPath}, session.RunOptions{})
	if err == nil {
		return false
	}
	var ee *exec.ExitError
	if eeIs(err, &ee) && ee.ExitCode() == 1 {
		return true
	}
	return false
}

func eeIs(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// Bootstrap installs apt-file (via installer) and runs "apt-file update"
// if the cache is still empty afterwards, matching
// AptFileFileSearcher.from_session.
func (a *AptFileIndex) Bootstrap(installer PackageInstaller) error {
	if !a.Session.Exists(aptFileCacheIsEmptyPath) {
		if err := installer.Install([]string{"apt-file"}); err != nil {
			return fmt.Errorf("fileindex: installing apt-file: %w", err)
		}
	}
	if !a.HasCache() {
		if err := a.Session.CheckCall([]string{"apt-file", "update"}, session.RunOptions{User: "root"}); err != nil {
			return fmt.Errorf("fileindex: apt-file update: %w", err)
		}
	}
	return nil
}

func (a *AptFileIndex) SearchFiles(_ context.Context, path string, regex, caseInsensitive bool) ([]string, error) {
	args := []string{"apt-file", "search"}
	if regex {
		args = append(args, "-x")
	} else {
		args = append(args, "-F")
	}
	if caseInsensitive {
		args = append(args, "-i")
	}
	args = append(args, path)

	out, err := a.Session.CheckOutput(args, session.RunOptions{})
	if err != nil {
		var ee *exec.ExitError
		if eeIs(err, &ee) {
			switch ee.ExitCode() {
			case 1:
				return nil, nil // no results
			case 3:
				return nil, fmt.Errorf("fileindex: apt-file cache is empty")
			}
		}
		return nil, fmt.Errorf("fileindex: apt-file search: %w", err)
	}

	var pkgs []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, ": ")
		if idx < 0 {
			continue
		}
		pkgs = append(pkgs, line[:idx])
	}
	return pkgs, nil
}

// GeneratedIndex is a small hand-curated literal path->package table for
// the handful of paths that aren't reliably found in apt Contents data
// (alternatives, symlink-only binaries). Seeded with the same entries as
// GENERATED_FILE_SEARCHER in ognibuild/debian/file_search.py.
type GeneratedIndex struct {
	entries []generatedEntry
}

type generatedEntry struct {
	path    string
	pkg     string
	pattern *regexp.Regexp
}

// DefaultGeneratedIndex carries the literal entries ognibuild ships by
// default.
func DefaultGeneratedIndex() *GeneratedIndex {
	g := &GeneratedIndex{}
	g.Add("/etc/locale.gen", "locales")
	g.Add("/usr/bin/rst2html", "python3-docutils")
	g.Add("/usr/bin/aclocal", "automake")
	g.Add("/usr/bin/automake", "automake")
	g.Add("/usr/bin/mvn", "maven")
	return g
}

// Add registers a literal path->package mapping.
func (g *GeneratedIndex) Add(path, pkg string) {
	g.entries = append(g.entries, generatedEntry{path: path, pkg: pkg})
}

func (g *GeneratedIndex) SearchFiles(_ context.Context, path string, regex, caseInsensitive bool) ([]string, error) {
	var out []string
	for _, e := range g.entries {
		match := false
		switch {
		case regex:
			flags := ""
			if caseInsensitive {
				flags = "(?i)"
			}
			re, err := regexp.Compile(flags + path)
			if err != nil {
				return nil, err
			}
			match = re.MatchString(e.path)
		case caseInsensitive:
			match = strings.EqualFold(path, e.path)
		default:
			match = path == e.path
		}
		if match {
			out = append(out, e.pkg)
		}
	}
	return out, nil
}
