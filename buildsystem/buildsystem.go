// Package buildsystem detects which upstream build tool a source tree
// uses and drives its dist/build/test/install/clean lifecycle actions
// through a Session, repairing failures via the fixloop package as it
// goes.
package buildsystem

import (
	"errors"
	"fmt"
	"os"

	"github.com/ognibuild/ognibuild/fixloop"
	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/session"
)

// ErrNotSupported is returned by a lifecycle operation a particular
// build system driver does not implement, mirroring the Python base
// class's NotImplementedError for unoverridden methods.
var ErrNotSupported = errors.New("buildsystem: operation not supported by this build system")

// ErrNoBuildToolsFound means Detect found no recognizable build system
// in the session's current directory.
var ErrNoBuildToolsFound = errors.New("buildsystem: no supported build tools found")

// Resolver installs declared upstream dependencies ahead of invoking a
// build tool (e.g. ensuring "pear" or "npm" is present before calling
// it). Declared narrowly, rather than importing the resolver package,
// so the eventual concrete resolver implementations satisfy it
// structurally.
type Resolver interface {
	Install(reqs []requirement.Requirement) error
}

// DeclaredDependency is a single upstream-declared dependency together
// with the phase it applies to ("core", "build", or "test"), mirroring
// the (kind, dep) tuples get_declared_dependencies yields.
type DeclaredDependency struct {
	Kind        string
	Requirement requirement.Requirement
}

// BuildSystem is a detected upstream build tool bound to a session.
type BuildSystem interface {
	Dist() error
	Build() error
	Test() error
	Install() error
	Clean() error

	// DeclaredDependencies returns the dependencies the upstream
	// project declares for itself (e.g. package.json's "dependencies"),
	// independent of whatever is installed in the session. Used by
	// deb-sync-upstream-deps to keep debian/control in sync with
	// upstream's own manifest.
	DeclaredDependencies() ([]DeclaredDependency, error)
	// DeclaredOutputs returns the filenames a dist build is expected to
	// produce, when the build system can name them ahead of time.
	DeclaredOutputs() ([]string, error)
}

type noopContext struct{}

func (noopContext) AddDependency(interface{}) (bool, error) { return false, nil }

// common is embedded by every driver; it supplies the shared
// session/resolver/fixer plumbing and the ErrNotSupported defaults for
// operations a driver doesn't override.
type common struct {
	Session  session.Session
	Resolver Resolver
	Classify fixloop.Classifier
	Fixers   []fixloop.BuildFixer
}

func (c *common) run(argv []string) error {
	return fixloop.RunWithBuildFixers(c.Session, argv, c.Classify, c.Fixers, noopContext{})
}

func (c *common) Dist() error    { return ErrNotSupported }
func (c *common) Build() error   { return ErrNotSupported }
func (c *common) Test() error    { return ErrNotSupported }
func (c *common) Install() error { return ErrNotSupported }
func (c *common) Clean() error   { return ErrNotSupported }

func (c *common) DeclaredDependencies() ([]DeclaredDependency, error) { return nil, ErrNotSupported }
func (c *common) DeclaredOutputs() ([]string, error)                  { return nil, ErrNotSupported }

func binaryPkg(name string) requirement.Requirement { return &requirement.Binary{Name: name} }

func python3Pkg(name string) requirement.Requirement {
	return &requirement.PythonPackage{Package: name, PythonVersion: "cpython3"}
}

func perlPkg(module string) requirement.Requirement { return &requirement.PerlModule{Module: module} }

func readFile(s session.Session, path string) ([]byte, error) {
	return os.ReadFile(s.ExternalPath(path))
}

// Detect yields, in priority order, one BuildSystem per build-tool
// marker file found in the session's current directory. Mirrors
// detect_buildsystems: more than one build system can be detected for
// the same tree (e.g. a package.json alongside a Makefile), left to
// the caller to choose between or try in order.
func Detect(s session.Session, resolver Resolver, classify fixloop.Classifier, fixers []fixloop.BuildFixer) []BuildSystem {
	c := common{Session: s, Resolver: resolver, Classify: classify, Fixers: fixers}
	var out []BuildSystem

	if s.Exists("package.xml") {
		out = append(out, &Pear{c})
	}
	if s.Exists("setup.py") {
		out = append(out, &SetupPy{c})
	}
	if s.Exists("pyproject.toml") {
		out = append(out, &PyProject{c})
	}
	if s.Exists("setup.cfg") {
		out = append(out, &SetupCfg{c})
	}
	if s.Exists("package.json") {
		out = append(out, &NpmPackage{c})
	}
	if s.Exists("waf") {
		out = append(out, &Waf{c})
	}
	if hasGemfile(s) {
		out = append(out, &Gem{c})
	}
	if s.Exists("dist.ini") && !s.Exists("Makefile.PL") {
		out = append(out, &DistInkt{c})
	}
	for _, marker := range []string{"Makefile", "Makefile.PL", "autogen.sh", "configure.ac", "configure.in"} {
		if s.Exists(marker) {
			out = append(out, &Make{c})
			break
		}
	}
	return out
}

func hasGemfile(s session.Session) bool {
	entries, err := s.Scandir(".")
	if err != nil {
		return false
	}
	for _, e := range entries {
		if hasSuffix(e.Name(), ".gem") {
			return true
		}
	}
	return false
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

var firstGemfileNotFoundErr = fmt.Errorf("buildsystem: no .gem file found")
