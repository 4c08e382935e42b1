package requirement

import (
	"encoding/json"
	"fmt"

	"github.com/ognibuild/ognibuild/session"
)

// PHPExtension requires a PHP extension (e.g. "gd", "intl") to be loaded.
type PHPExtension struct{ *simpleStringFamily }

func NewPHPExtension(ext string) *PHPExtension {
	return &PHPExtension{newSimpleStringFamily("php-extension", "extension", ext)}
}

// PytestPlugin requires a pytest plugin package (e.g. "cov" for
// pytest-cov) to be importable.
type PytestPlugin struct{ *simpleStringFamily }

func NewPytestPlugin(plugin string) *PytestPlugin {
	return &PytestPlugin{newSimpleStringFamily("pytest-plugin", "plugin", plugin)}
}

// LuaModule requires an importable Lua module.
type LuaModule struct{ *simpleStringFamily }

func NewLuaModule(module string) *LuaModule {
	return &LuaModule{newSimpleStringFamily("lua-module", "module", module)}
}

// NodeModule requires a node module resolvable via require(), distinct
// from NodePackage which names an npm registry package.
type NodeModule struct{ *simpleStringFamily }

func NewNodeModule(module string) *NodeModule {
	return &NodeModule{newSimpleStringFamily("npm-module", "module", module)}
}

// IntrospectionTypelib requires a GObject-Introspection typelib.
type IntrospectionTypelib struct{ *simpleStringFamily }

func NewIntrospectionTypelib(lib string) *IntrospectionTypelib {
	return &IntrospectionTypelib{newSimpleStringFamily("introspection-type-lib", "library", lib)}
}

// LatexPackage requires a LaTeX style package (sans the .sty suffix).
type LatexPackage struct{ *simpleStringFamily }

func NewLatexPackage(pkg string) *LatexPackage {
	return &LatexPackage{newSimpleStringFamily("latex-package", "package", pkg)}
}

// BoostComponent requires a named Boost library component.
type BoostComponent struct{ *simpleStringFamily }

func NewBoostComponent(name string) *BoostComponent {
	return &BoostComponent{newSimpleStringFamily("boost-component", "name", name)}
}

// KF5Component requires a named KDE Frameworks 5 component.
type KF5Component struct{ *simpleStringFamily }

func NewKF5Component(name string) *KF5Component {
	return &KF5Component{newSimpleStringFamily("kf5-component", "name", name)}
}

// GnulibDirectory requires a gnulib source directory to be present.
type GnulibDirectory struct{ *simpleStringFamily }

func NewGnulibDirectory(dir string) *GnulibDirectory {
	return &GnulibDirectory{newSimpleStringFamily("gnulib", "directory", dir)}
}

// CertificateAuthority requires a CA certificate for the given URL's
// issuer to be trusted.
type CertificateAuthority struct{ *simpleStringFamily }

func NewCertificateAuthority(url string) *CertificateAuthority {
	return &CertificateAuthority{newSimpleStringFamily("ca-cert", "url", url)}
}

// QtModule requires a Qt module (e.g. "Core", "Widgets").
type QtModule struct{ *simpleStringFamily }

func NewQtModule(module string) *QtModule {
	return &QtModule{newSimpleStringFamily("qt-module", "module", module)}
}

// OctavePackage requires an Octave-Forge package, resolved by
// resolver.OctaveForgeResolver.
type OctavePackage struct{ *simpleStringFamily }

func NewOctavePackage(pkg string) *OctavePackage {
	return &OctavePackage{newSimpleStringFamily("octave-package", "package", pkg)}
}

func init() {
	registerSimpleStringFamily("php-extension", "extension", func(v string) Requirement { return NewPHPExtension(v) })
	registerSimpleStringFamily("pytest-plugin", "plugin", func(v string) Requirement { return NewPytestPlugin(v) })
	registerSimpleStringFamily("lua-module", "module", func(v string) Requirement { return NewLuaModule(v) })
	registerSimpleStringFamily("npm-module", "module", func(v string) Requirement { return NewNodeModule(v) })
	registerSimpleStringFamily("introspection-type-lib", "library", func(v string) Requirement { return NewIntrospectionTypelib(v) })
	registerSimpleStringFamily("boost-component", "name", func(v string) Requirement { return NewBoostComponent(v) })
	registerSimpleStringFamily("kf5-component", "name", func(v string) Requirement { return NewKF5Component(v) })
	registerSimpleStringFamily("gnulib", "directory", func(v string) Requirement { return NewGnulibDirectory(v) })
	registerSimpleStringFamily("ca-cert", "url", func(v string) Requirement { return NewCertificateAuthority(v) })
	registerSimpleStringFamily("qt-module", "module", func(v string) Requirement { return NewQtModule(v) })
	registerSimpleStringFamily("latex-package", "package", func(v string) Requirement { return NewLatexPackage(v) })
	registerSimpleStringFamily("octave-package", "package", func(v string) Requirement { return NewOctavePackage(v) })
}

// JDK requires any JDK to be installed.
type JDK struct{ *emptyFamily }

func NewJDK() *JDK { return &JDK{&emptyFamily{"jdk"}} }

// JRE requires any JRE to be installed.
type JRE struct{ *emptyFamily }

func NewJRE() *JRE { return &JRE{&emptyFamily{"jre"}} }

// QT requires the Qt toolchain generally (distinct from a specific
// QtModule).
type QT struct{ *emptyFamily }

func NewQT() *QT { return &QT{&emptyFamily{"qt"}} }

// X11 requires an X11 development environment.
type X11 struct{ *emptyFamily }

func NewX11() *X11 { return &X11{&emptyFamily{"x11"}} }

// Libtool requires GNU Libtool's support files.
type Libtool struct{ *emptyFamily }

func NewLibtool() *Libtool { return &Libtool{&emptyFamily{"libtool"}} }

func init() {
	register("jdk", func(json.RawMessage) (Requirement, error) { return NewJDK(), nil })
	register("jre", func(json.RawMessage) (Requirement, error) { return NewJRE(), nil })
	register("qt", func(json.RawMessage) (Requirement, error) { return NewQT(), nil })
	register("x11", func(json.RawMessage) (Requirement, error) { return NewX11(), nil })
	register("libtool", func(json.RawMessage) (Requirement, error) { return NewLibtool(), nil })
}

// StaticLibrary requires a specific static library archive file.
type StaticLibrary struct {
	Library  string
	Filename string
}

func (r *StaticLibrary) Family() string { return "static-lib" }
func (r *StaticLibrary) String() string { return "Static Library: " + r.Library }
func (r *StaticLibrary) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("static-lib: %w", ErrMetUnsupported)
}

type staticLibraryPayload struct {
	Library  string `json:"library"`
	Filename string `json:"filename"`
}

func (r *StaticLibrary) payload() (json.RawMessage, error) {
	return marshal(staticLibraryPayload{r.Library, r.Filename}), nil
}

func init() {
	register("static-lib", func(p json.RawMessage) (Requirement, error) {
		var v staticLibraryPayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &StaticLibrary{v.Library, v.Filename}, nil
	})
}

// CMakefile requires a CMake package-config file, optionally at a
// minimum version.
type CMakefile struct {
	Filename string
	Version  string
}

func (r *CMakefile) Family() string { return "cmake-file" }
func (r *CMakefile) String() string { return "cmake file: " + r.Filename }
func (r *CMakefile) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("cmake-file: %w", ErrMetUnsupported)
}

type cmakefilePayload struct {
	Filename string `json:"filename"`
	Version  string `json:"version,omitempty"`
}

func (r *CMakefile) payload() (json.RawMessage, error) {
	return marshal(cmakefilePayload{r.Filename, r.Version}), nil
}

func init() {
	register("cmake-file", func(p json.RawMessage) (Requirement, error) {
		var v cmakefilePayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &CMakefile{v.Filename, v.Version}, nil
	})
}

// VcsControlDirectoryAccess requires access to one of a list of version
// control system control directories (e.g. ".git") during the build.
type VcsControlDirectoryAccess struct {
	VCS []string
}

func (r *VcsControlDirectoryAccess) Family() string { return "vcs-access" }
func (r *VcsControlDirectoryAccess) String() string {
	return fmt.Sprintf("vcs control directory access: %v", r.VCS)
}
func (r *VcsControlDirectoryAccess) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("vcs-access: %w", ErrMetUnsupported)
}
func (r *VcsControlDirectoryAccess) payload() (json.RawMessage, error) {
	return marshal(struct {
		VCS []string `json:"vcs"`
	}{r.VCS}), nil
}

func init() {
	register("vcs-access", func(p json.RawMessage) (Requirement, error) {
		var v struct {
			VCS []string `json:"vcs"`
		}
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &VcsControlDirectoryAccess{v.VCS}, nil
	})
}

// VagueDependency names a dependency whose exact packaging family is
// unknown (e.g. parsed from free-form "requires: Foo >= 1.2" text). It
// is satisfied if any of its Expand() alternatives is.
type VagueDependency struct {
	Name           string
	MinimumVersion string
}

func (r *VagueDependency) Family() string { return "vague" }
func (r *VagueDependency) String() string {
	if r.MinimumVersion != "" {
		return fmt.Sprintf("%s >= %s", r.Name, r.MinimumVersion)
	}
	return r.Name
}

// Expand returns the concrete requirement alternatives a vague name
// could resolve to: a binary, a library, and a pkg-config module, plus
// lowercase variants when the name carries uppercase letters. Mirrors
// VagueDependencyRequirement.expand (the apt-specific devname
// alternatives from the Python source are resolver-layer concerns and
// are produced by the apt resolver directly rather than here).
func (r *VagueDependency) Expand() []Requirement {
	var out []Requirement
	if !containsSpace(r.Name) {
		out = append(out,
			&Binary{Name: r.Name},
			NewLibrary(r.Name),
			&PkgConfig{Module: r.Name, MinimumVersion: r.MinimumVersion},
		)
		lower := toLower(r.Name)
		if lower != r.Name {
			out = append(out,
				&Binary{Name: lower},
				NewLibrary(lower),
				&PkgConfig{Module: lower, MinimumVersion: r.MinimumVersion},
			)
		}
	}
	return out
}

func (r *VagueDependency) Met(s session.Session) (bool, error) {
	for _, alt := range r.Expand() {
		ok, err := alt.Met(s)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

type vagueDependencyPayload struct {
	Name           string `json:"name"`
	MinimumVersion string `json:"minimum_version,omitempty"`
}

func (r *VagueDependency) payload() (json.RawMessage, error) {
	return marshal(vagueDependencyPayload{r.Name, r.MinimumVersion}), nil
}

func init() {
	register("vague", func(p json.RawMessage) (Requirement, error) {
		var v vagueDependencyPayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &VagueDependency{v.Name, v.MinimumVersion}, nil
	})
}

// perlPreDeclaredModules maps Makefile.PL predeclared subroutine names
// (from Module::Install plugins) to the module that provides them.
var perlPreDeclaredModules = map[string]string{
	"auto_set_repository":   "Module::Install::Repository",
	"author_tests":          "Module::Install::AuthorTests",
	"recursive_author_tests": "Module::Install::AuthorTests",
	"author_requires":       "Module::Install::AuthorRequires",
	"readme_from":           "Module::Install::ReadmeFromPod",
	"catalyst":              "Module::Install::Catalyst",
	"githubmeta":            "Module::Install::GithubMeta",
	"use_ppport":            "Module::Install::XSUtil",
	"pod_from":              "Module::Install::PodFromEuclid",
	"write_doap_changes":    "Module::Install::DOAPChangeSets",
	"use_test_base":         "Module::Install::TestBase",
	"jsonmeta":              "Module::Install::JSONMETA",
	"extra_tests":           "Module::Install::ExtraTests",
	"auto_set_bugtracker":   "Module::Install::Bugtracker",
}

// PerlPreDeclared names a predeclared Makefile.PL subroutine whose
// providing module is looked up from a fixed table, since the build log
// only ever reports the missing subroutine name.
type PerlPreDeclared struct{ Name string }

func (r *PerlPreDeclared) Family() string { return "perl-predeclared" }
func (r *PerlPreDeclared) String() string { return "perl predeclared: " + r.Name }
func (r *PerlPreDeclared) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("perl-predeclared: %w", ErrMetUnsupported)
}

// LookupModule resolves Name to the PerlModule requirement that
// provides it, or (nil, false) if the name is not in the known table.
func (r *PerlPreDeclared) LookupModule() (*PerlModule, bool) {
	module, ok := perlPreDeclaredModules[r.Name]
	if !ok {
		return nil, false
	}
	return &PerlModule{Module: module}, true
}

func (r *PerlPreDeclared) payload() (json.RawMessage, error) {
	return marshal(struct {
		Name string `json:"name"`
	}{r.Name}), nil
}

func init() {
	register("perl-predeclared", func(p json.RawMessage) (Requirement, error) {
		var v struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &PerlPreDeclared{v.Name}, nil
	})
}

func containsSpace(s string) bool {
	for _, r := range s {
		if r == ' ' {
			return true
		}
	}
	return false
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
