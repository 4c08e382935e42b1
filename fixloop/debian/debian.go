package debian

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/ognibuild/ognibuild/fixloop"
	"github.com/ognibuild/ognibuild/logmanager"
	"github.com/ognibuild/ognibuild/problem"
	"github.com/ognibuild/ognibuild/problemconvert"
	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/resolver"
	"github.com/ognibuild/ognibuild/session"
)

// VCSTree is the narrow slice of a version-control working tree this
// package needs: reading and writing a packaging file, committing a
// change, and resetting back to the last commit before a retry. It
// deliberately excludes branch/history manipulation -- the build of a
// real VCS library (breezy's tree abstraction, in the original) is out
// of scope here.
type VCSTree interface {
	GetFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Commit(message string) error
	Reset() error
}

// CircularDependency is returned when the package a fixer wants to add
// as a build or test dependency is itself one of the source's own
// binary packages -- adding it would make the package depend on
// itself. Mirrors fix_build.py's CircularDependency.
type CircularDependency struct {
	Package string
}

func (e *CircularDependency) Error() string {
	return fmt.Sprintf("add dependency on %s would be circular", e.Package)
}

// dependency is the minimal shape fixers pass into AddDependency: a
// package name and an optional minimum version. Resolvers that want to
// record a debian/control entry pass a *dependency value as the req
// argument; anything else is left unclaimed.
type dependency struct {
	Package        string
	MinimumVersion string
}

// NewDependency builds the req value BuildDependencyContext.AddDependency
// and AutopkgtestDependencyContext.AddDependency expect.
func NewDependency(pkg, minimumVersion string) interface{} {
	return &dependency{Package: pkg, MinimumVersion: minimumVersion}
}

func asDependency(req interface{}) (*dependency, bool) {
	switch v := req.(type) {
	case *dependency:
		return v, true
	case dependency:
		return &v, true
	default:
		return nil, false
	}
}

// BuildDependencyContext implements fixloop.Context by recording missing
// build dependencies into debian/control's Source paragraph. Mirrors
// BuildDependencyContext/add_build_dependency.
type BuildDependencyContext struct {
	Tree            VCSTree
	Subpath         string
	UpdateChangelog bool
}

func (c *BuildDependencyContext) AddDependency(req interface{}) (bool, error) {
	dep, ok := asDependency(req)
	if !ok {
		return false, nil
	}
	return AddBuildDependency(c.Tree, c.Subpath, dep.Package, dep.MinimumVersion)
}

// AutopkgtestDependencyContext implements fixloop.Context by recording
// missing test dependencies into debian/tests/control. Mirrors
// AutopkgtestDependencyContext/add_test_dependency.
type AutopkgtestDependencyContext struct {
	TestName        string
	Tree            VCSTree
	Subpath         string
	UpdateChangelog bool
}

func (c *AutopkgtestDependencyContext) AddDependency(req interface{}) (bool, error) {
	dep, ok := asDependency(req)
	if !ok {
		return false, nil
	}
	return AddTestDependency(c.Tree, c.Subpath, c.TestName, dep.Package, dep.MinimumVersion)
}

// minimumVersionOf extracts the minimum-version constraint a requirement
// carries, for the handful of families that have one; every other family
// is added to debian/control with no version constraint at all. Mirrors
// the ad hoc "error.minimum_version"/"error.version" attributes individual
// fix_* functions in fix_build.py read off their specific error type.
func minimumVersionOf(req requirement.Requirement) string {
	switch v := req.(type) {
	case *requirement.PythonPackage:
		return v.MinimumVersion
	case *requirement.RPackage:
		return v.MinimumVersion
	case *requirement.RubyGem:
		return v.MinimumVersion
	case *requirement.PkgConfig:
		return v.MinimumVersion
	default:
		return ""
	}
}

// DependencyFixer resolves a classified missing-dependency problem to a
// Requirement, maps that requirement to an apt package name via Apt, and
// records it through the fixloop.Context passed to Fix (a
// BuildDependencyContext or AutopkgtestDependencyContext) rather than
// installing anything itself. Mirrors the many fix_missing_*
// functions in fix_build.py that all end in
// "return context.add_dependency(package)".
type DependencyFixer struct {
	Apt           *resolver.AptResolver
	ParserVersion string
}

func (f *DependencyFixer) CanFix(p *problem.Problem) bool {
	_, ok := problemconvert.ConvertWithFallback(p, f.ParserVersion)
	return ok
}

func (f *DependencyFixer) Fix(p *problem.Problem, ctx fixloop.Context) (bool, error) {
	req, ok := problemconvert.ConvertWithFallback(p, f.ParserVersion)
	if !ok {
		return false, nil
	}
	pkg, err := f.Apt.ResolvePackageName(req)
	if err != nil {
		return false, nil
	}
	return ctx.AddDependency(NewDependency(pkg, minimumVersionOf(req)))
}

func controlPath(subpath string) string {
	return filepath.Join(subpath, "debian", "control")
}

func testsControlPath(subpath string) string {
	return filepath.Join(subpath, "debian", "tests", "control")
}

// AddBuildDependency adds pkg (at minVersion, if given) to debian/control's
// Source paragraph's Build-Depends field, committing the change. Returns
// false if pkg was already satisfied there. Mirrors add_build_dependency.
func AddBuildDependency(tree VCSTree, subpath, pkg, minVersion string) (bool, error) {
	path := controlPath(subpath)
	data, err := tree.GetFile(path)
	if err != nil {
		return false, fmt.Errorf("debian: reading %s: %w", path, err)
	}
	cf := parseControl(data)
	if len(cf.paragraphs) == 0 {
		return false, fmt.Errorf("debian: %s has no paragraphs", path)
	}
	source := cf.paragraphs[0]

	for _, p := range cf.paragraphs[1:] {
		if name, ok := p.get("Package"); ok && name == pkg {
			return false, &CircularDependency{Package: pkg}
		}
	}

	deps, _ := source.get("Build-Depends")
	var next string
	if minVersion != "" {
		next = ensureMinimumVersion(deps, pkg, minVersion)
	} else {
		next = ensureSomeVersion(deps, pkg)
	}
	if next == deps {
		return false, nil
	}
	source.set("Build-Depends", next)

	if err := tree.WriteFile(path, cf.render()); err != nil {
		return false, fmt.Errorf("debian: writing %s: %w", path, err)
	}
	msg := fmt.Sprintf("Add missing build dependency on %s.", pkg)
	if err := tree.Commit(msg); err != nil {
		return false, fmt.Errorf("debian: committing %s: %w", path, err)
	}
	return true, nil
}

// AddTestDependency adds pkg (at minVersion, if given) to the
// debian/tests/control paragraph named testname's Depends field,
// committing the change. Mirrors add_test_dependency.
func AddTestDependency(tree VCSTree, subpath, testname, pkg, minVersion string) (bool, error) {
	path := testsControlPath(subpath)
	data, err := tree.GetFile(path)
	if err != nil {
		return false, fmt.Errorf("debian: reading %s: %w", path, err)
	}
	cf := parseControl(data)

	var target *paragraph
	for i, p := range cf.paragraphs {
		name, ok := p.get("Tests")
		if !ok {
			name = fmt.Sprintf("command%d", i+1)
		}
		if name == testname {
			target = p
			break
		}
	}
	if target == nil {
		return false, fmt.Errorf("debian: no paragraph named %s in %s", testname, path)
	}

	deps, _ := target.get("Depends")
	var next string
	if minVersion != "" {
		next = ensureMinimumVersion(deps, pkg, minVersion)
	} else {
		next = ensureSomeVersion(deps, pkg)
	}
	if next == deps {
		return false, nil
	}
	target.set("Depends", next)

	if err := tree.WriteFile(path, cf.render()); err != nil {
		return false, fmt.Errorf("debian: writing %s: %w", path, err)
	}
	msg := fmt.Sprintf("Add missing test dependency on %s for %s.", pkg, testname)
	if err := tree.Commit(msg); err != nil {
		return false, fmt.Errorf("debian: committing %s: %w", path, err)
	}
	return true, nil
}

// ContextKind identifies which packaging file a classified problem's
// fix belongs in, the Go equivalent of the "build" vs "autopkgtest"
// tag Python stashes as error.context[0].
type ContextKind int

const (
	BuildContext ContextKind = iota
	AutopkgtestContext
)

// Attempt describes one classified failure in the retry loop: which
// packaging file a fix should land in, and (for AutopkgtestContext)
// which test paragraph it names.
type Attempt struct {
	Kind     ContextKind
	TestName string
}

// Classify turns a failed command's output into both a Problem (for the
// generic fixloop fixers) and an Attempt (to pick the right Context),
// or reports the failure as unclassifiable.
type Classify func(lines []string) (p *problem.Problem, attempt *Attempt, ok bool)

// MaxIterations bounds how many times RunIncremental will retry before
// giving up outright, mirroring build_incrementally's max_iterations.
const MaxIterations = 10

// RunIncremental runs argv in s repeatedly, resetting tree and rotating
// logPath before each retry, until the command succeeds, a problem
// recurs without progress, no fixer can address the current problem, or
// MaxIterations is exceeded. Mirrors build_incrementally.
func RunIncremental(s session.Session, argv []string, classify Classify, fixers []fixloop.BuildFixer, tree VCSTree, subpath, logPath string) error {
	var fixedErrors []string
	for iteration := 0; ; iteration++ {
		if iteration > MaxIterations {
			return fmt.Errorf("debian: giving up after %d iterations without success", MaxIterations)
		}
		retcode, lines, err := session.RunWithTee(s, argv, session.RunOptions{})
		if err != nil {
			return err
		}
		if retcode == 0 {
			return nil
		}

		p, attempt, ok := classify(lines)
		if !ok || p == nil || attempt == nil {
			return fmt.Errorf("debian: build failed with unidentified error (exit %d)", retcode)
		}

		key := p.Error()
		for _, fixed := range fixedErrors {
			if fixed == key {
				return fmt.Errorf("debian: failed to resolve recurring error: %v", p)
			}
		}

		var ctx fixloop.Context
		switch attempt.Kind {
		case AutopkgtestContext:
			ctx = &AutopkgtestDependencyContext{TestName: attempt.TestName, Tree: tree, Subpath: subpath, UpdateChangelog: true}
		default:
			ctx = &BuildDependencyContext{Tree: tree, Subpath: subpath, UpdateChangelog: true}
		}

		resolved := false
		for _, f := range fixers {
			if !f.CanFix(p) {
				continue
			}
			made, ferr := fixloop.Fix(f, p, ctx)
			if ferr != nil {
				if _, ok := ferr.(*CircularDependency); ok {
					return fmt.Errorf("debian: failed to resolve error %v: %w", p, ferr)
				}
				return ferr
			}
			if made {
				resolved = true
				break
			}
		}
		if !resolved {
			return fmt.Errorf("debian: no fixer could resolve error: %v", p)
		}
		fixedErrors = append(fixedErrors, key)

		if err := tree.Reset(); err != nil {
			return fmt.Errorf("debian: resetting tree before retry: %w", err)
		}
		if err := logmanager.RotateLogfile(logPath); err != nil {
			return fmt.Errorf("debian: rotating log: %w", err)
		}
		log.Printf("retrying build after resolving %v", p)
	}
}
