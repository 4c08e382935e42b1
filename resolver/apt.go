package resolver

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/ognibuild/ognibuild/fileindex"
	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/session"
)

// NoAptPackage is returned by AptResolver.resolve when a requirement
// cannot be mapped to any apt package name.
type NoAptPackage struct {
	Requirement requirement.Requirement
}

func (e *NoAptPackage) Error() string {
	return fmt.Sprintf("resolver: no apt package found for %v", e.Requirement)
}

// TieBreaker picks one package name out of several candidates that all
// claim to provide the same file, e.g. by build-dependency popularity or
// popcon vote counts. It returns "" to defer to the next tie-breaker.
type TieBreaker func(candidates []string) string

// ShortestNameTieBreaker picks the shortest candidate name, mirroring
// get_package_for_paths's "Euhr. Pick the one with the shortest name?"
// fallback. It never defers.
func ShortestNameTieBreaker(candidates []string) string {
	sorted := append([]string(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) < len(sorted[j]) })
	return sorted[0]
}

// PopularityTieBreaker picks the candidate with the highest count in a
// caller-supplied popularity table (e.g. popcon vote counts, or a count
// of how often a package appears as a build-dependency elsewhere in the
// archive). It defers if none of the candidates appear in the table.
// Grounded on BuildDependencyTieBreaker in debian/build_deps.py, which
// counts build-dependency occurrences using apt_pkg.SourceRecords(); no
// equivalent source-record parser exists in the Go ecosystem used by this
// package, so the count is supplied by the caller instead of derived here.
func PopularityTieBreaker(counts map[string]int) TieBreaker {
	return func(candidates []string) string {
		best := ""
		bestCount := -1
		for _, c := range candidates {
			if n, ok := counts[c]; ok && n > bestCount {
				best, bestCount = c, n
			}
		}
		return best
	}
}

// AptManager runs apt commands inside a session. Grounded on AptManager
// in debian/apt.py.
type AptManager struct {
	Session session.Session
}

func (m *AptManager) runApt(args []string) error {
	argv := append([]string{"apt", "-y"}, args...)
	return m.Session.CheckCall(argv, session.RunOptions{Cwd: "/", User: "root"})
}

// Install installs packages, ignoring ones already installed.
func (m *AptManager) Install(packages []string) error {
	if len(packages) == 0 {
		return nil
	}
	return m.runApt(append([]string{"install"}, packages...))
}

// Satisfy runs "apt satisfy" against a list of apt dependency relation
// strings (e.g. "python3 (>= 3.9)").
func (m *AptManager) Satisfy(deps []string) error {
	if len(deps) == 0 {
		return nil
	}
	return m.runApt(append([]string{"satisfy"}, deps...))
}

// AptResolver installs requirements by mapping them to Debian package
// names via a FileIndex and an ordered set of TieBreakers, then
// installing the result with apt. Grounded on AptResolver in
// resolver/apt.py and resolve_binary_req.
type AptResolver struct {
	Apt         *AptManager
	Index       fileindex.FileIndex
	TieBreakers []TieBreaker
}

// NewAptResolver builds an AptResolver with the standard tie-break order:
// any caller-supplied popularity tables, falling back to the
// shortest-name heuristic.
func NewAptResolver(s session.Session, idx fileindex.FileIndex, tieBreakers ...TieBreaker) *AptResolver {
	return &AptResolver{
		Apt:         &AptManager{Session: s},
		Index:       idx,
		TieBreakers: append(append([]TieBreaker(nil), tieBreakers...), ShortestNameTieBreaker),
	}
}

func (r *AptResolver) String() string         { return "apt" }
func (r *AptResolver) Env() map[string]string { return nil }

// binaryPaths returns the candidate on-disk locations of a Binary
// requirement, mirroring resolve_binary_req's absolute-vs-PATH handling.
func binaryPaths(name string) []string {
	if path.IsAbs(name) {
		return []string{name}
	}
	return []string{path.Join("/usr/bin", name), path.Join("/bin", name)}
}

// ResolvePackageName maps req to the apt package name that would be
// installed to satisfy it, without installing anything. Exported for
// callers (such as the Debian packaging fix loop) that need the name
// itself rather than an install side effect.
func (r *AptResolver) ResolvePackageName(req requirement.Requirement) (string, error) {
	return r.resolve(req)
}

func (r *AptResolver) resolve(req requirement.Requirement) (string, error) {
	bin, ok := req.(*requirement.Binary)
	if !ok {
		return "", &NoAptPackage{Requirement: req}
	}
	candidates, err := fileindex.PackageForPathsAll(context.TODO(), []fileindex.FileIndex{r.Index}, binaryPaths(bin.Name), false, false)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", &NoAptPackage{Requirement: req}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	for _, tb := range r.TieBreakers {
		if pkg := tb(candidates); pkg != "" {
			return pkg, nil
		}
	}
	return candidates[0], nil
}

func (r *AptResolver) Install(reqs []requirement.Requirement) error {
	var missing []requirement.Requirement
	for _, req := range reqs {
		bin, ok := req.(*requirement.Binary)
		if !ok {
			missing = append(missing, req)
			continue
		}
		found := false
		for _, p := range binaryPaths(bin.Name) {
			if r.Apt.Session.Exists(p) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, req)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	var packages []string
	var unresolved []requirement.Requirement
	for _, req := range missing {
		pkg, err := r.resolve(req)
		if err != nil {
			unresolved = append(unresolved, req)
			continue
		}
		packages = append(packages, pkg)
	}
	if err := r.Apt.Install(packages); err != nil {
		return fmt.Errorf("resolver: apt install %v: %w", packages, err)
	}
	if len(unresolved) > 0 {
		return &UnsatisfiedRequirements{Requirements: unresolved}
	}
	return nil
}

func (r *AptResolver) Explain(reqs []requirement.Requirement) ([]string, error) {
	var packages []string
	for _, req := range reqs {
		pkg, err := r.resolve(req)
		if err != nil {
			continue
		}
		packages = append(packages, pkg)
	}
	if len(packages) == 0 {
		return nil, nil
	}
	return []string{"apt -y install " + joinArgs(packages)}, nil
}
