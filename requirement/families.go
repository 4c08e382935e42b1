package requirement

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ognibuild/ognibuild/session"
)

// ErrMetUnsupported is returned by requirement families whose
// satisfaction cannot be probed without more context than a bare
// session provides (mirrors the base Requirement.met() in
// requirements.py, which raises NotImplementedError for every family
// that does not override it).
var ErrMetUnsupported = errors.New("requirement: Met not implemented for this family")

func pythonInterpreter(version string) (string, error) {
	switch version {
	case "", "cpython3":
		return "python3", nil
	case "cpython2":
		return "python2", nil
	case "pypy":
		return "pypy", nil
	case "pypy3":
		return "pypy3", nil
	default:
		return "", fmt.Errorf("unsupported python version %q", version)
	}
}

func commandSucceeds(s session.Session, argv []string) (bool, error) {
	err := s.CheckCall(argv, session.RunOptions{Cwd: "/"})
	if err == nil {
		return true, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return false, nil
	}
	return false, err
}

// VersionSpec is a single "op, version" constraint, e.g. (">=", "1.0").
type VersionSpec struct {
	Op      string `json:"op"`
	Version string `json:"version"`
}

// PythonPackage requires a PyPI-distributed package, optionally under a
// specific interpreter implementation and version constraints.
type PythonPackage struct {
	Package        string
	PythonVersion  string
	Specs          []VersionSpec
	MinimumVersion string
}

func (r *PythonPackage) Family() string { return "python-package" }
func (r *PythonPackage) String() string { return "python package: " + r.Package }

func (r *PythonPackage) Met(s session.Session) (bool, error) {
	cmd, err := pythonInterpreter(r.PythonVersion)
	if err != nil {
		return false, err
	}
	text := r.Package
	for _, spec := range r.Specs {
		text += spec.Op + spec.Version
	}
	return commandSucceeds(s, []string{cmd, "-c", fmt.Sprintf("import pkg_resources; pkg_resources.require(%q)", text)})
}

type pythonPackagePayload struct {
	Package        string        `json:"package"`
	PythonVersion  string        `json:"python_version,omitempty"`
	Specs          []VersionSpec `json:"specs,omitempty"`
	MinimumVersion string        `json:"minimum_version,omitempty"`
}

func (r *PythonPackage) payload() (json.RawMessage, error) {
	return marshal(pythonPackagePayload{r.Package, r.PythonVersion, r.Specs, r.MinimumVersion}), nil
}

func init() {
	register("python-package", func(p json.RawMessage) (Requirement, error) {
		var v pythonPackagePayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &PythonPackage{v.Package, v.PythonVersion, v.Specs, v.MinimumVersion}, nil
	})
}

// Binary requires an executable on PATH.
type Binary struct{ Name string }

func (r *Binary) Family() string { return "binary" }
func (r *Binary) String() string { return "binary: " + r.Name }
func (r *Binary) Met(s session.Session) (bool, error) {
	return commandSucceeds(s, []string{"which", r.Name})
}
func (r *Binary) payload() (json.RawMessage, error) { return marshal(struct {
	BinaryName string `json:"binary_name"`
}{r.Name}), nil }

func init() {
	register("binary", func(p json.RawMessage) (Requirement, error) {
		var v struct {
			BinaryName string `json:"binary_name"`
		}
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &Binary{v.BinaryName}, nil
	})
}

// PythonModule requires an importable Python module.
type PythonModule struct {
	Module         string
	PythonVersion  string
	MinimumVersion string
}

func (r *PythonModule) Family() string { return "python-module" }
func (r *PythonModule) String() string { return "python module: " + r.Module }
func (r *PythonModule) Met(s session.Session) (bool, error) {
	cmd, err := pythonInterpreter(r.PythonVersion)
	if err != nil {
		return false, err
	}
	return commandSucceeds(s, []string{cmd, "-c", "import " + r.Module})
}

type pythonModulePayload struct {
	Module         string `json:"module"`
	PythonVersion  string `json:"python_version,omitempty"`
	MinimumVersion string `json:"minimum_version,omitempty"`
}

func (r *PythonModule) payload() (json.RawMessage, error) {
	return marshal(pythonModulePayload{r.Module, r.PythonVersion, r.MinimumVersion}), nil
}

func init() {
	register("python-module", func(p json.RawMessage) (Requirement, error) {
		var v pythonModulePayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &PythonModule{v.Module, v.PythonVersion, v.MinimumVersion}, nil
	})
}

// simpleStringFamily declares a requirement family carrying a single
// named string field, with no Met() support (mirroring the many
// requirements.py subclasses that never override the base class's
// NotImplementedError met()).
type simpleStringFamily struct {
	family    string
	fieldName string
	Value     string
}

func (r *simpleStringFamily) Family() string { return r.family }
func (r *simpleStringFamily) String() string { return r.family + ": " + r.Value }
func (r *simpleStringFamily) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("%s: %w", r.family, ErrMetUnsupported)
}
func (r *simpleStringFamily) payload() (json.RawMessage, error) {
	return marshal(map[string]string{r.fieldName: r.Value}), nil
}

func registerSimpleStringFamily(family, fieldName string, ctor func(value string) Requirement) {
	register(family, func(p json.RawMessage) (Requirement, error) {
		var v map[string]string
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return ctor(v[fieldName]), nil
	})
}

func newSimpleStringFamily(family, fieldName, value string) *simpleStringFamily {
	return &simpleStringFamily{family: family, fieldName: fieldName, Value: value}
}

// NodePackage requires an npm package.
type NodePackage struct{ *simpleStringFamily }

func NewNodePackage(pkg string) *NodePackage {
	return &NodePackage{newSimpleStringFamily("npm-package", "package", pkg)}
}

// CargoCrate requires a published crates.io crate.
type CargoCrate struct{ *simpleStringFamily }

func NewCargoCrate(crate string) *CargoCrate {
	return &CargoCrate{newSimpleStringFamily("cargo-crate", "crate", crate)}
}
func (r *CargoCrate) String() string { return "cargo crate: " + r.Value }

// Path requires a specific path to exist on PATH or on disk.
type Path struct{ *simpleStringFamily }

func NewPath(path string) *Path { return &Path{newSimpleStringFamily("path", "path", path)} }

// CHeader requires a C header to be available to the compiler.
type CHeader struct{ *simpleStringFamily }

func NewCHeader(header string) *CHeader {
	return &CHeader{newSimpleStringFamily("c-header", "header", header)}
}

// ValaPackage requires a Vala binding package (.vapi).
type ValaPackage struct{ *simpleStringFamily }

func NewValaPackage(pkg string) *ValaPackage {
	return &ValaPackage{newSimpleStringFamily("vala", "package", pkg)}
}

// GoPackage requires a Go import path to be resolvable.
type GoPackage struct{ *simpleStringFamily }

func NewGoPackage(pkg string) *GoPackage {
	return &GoPackage{newSimpleStringFamily("go", "package", pkg)}
}

// DhAddon requires a debhelper sequence addon Perl module.
type DhAddon struct{ *simpleStringFamily }

func NewDhAddon(path string) *DhAddon { return &DhAddon{newSimpleStringFamily("dh-addon", "path", path)} }

// PhpClass requires an autoloadable PHP class.
type PhpClass struct{ *simpleStringFamily }

func NewPhpClass(class string) *PhpClass {
	return &PhpClass{newSimpleStringFamily("php-class", "php_class", class)}
}

// Library requires a shared library by soname stem (e.g. "z" for libz).
type Library struct{ *simpleStringFamily }

func NewLibrary(lib string) *Library { return &Library{newSimpleStringFamily("lib", "library", lib)} }

// RubyFile requires a loadable ruby source file.
type RubyFile struct{ *simpleStringFamily }

func NewRubyFile(filename string) *RubyFile {
	return &RubyFile{newSimpleStringFamily("ruby-file", "filename", filename)}
}

// XmlEntity requires a resolvable XML external entity URL (e.g. a DTD).
type XmlEntity struct{ *simpleStringFamily }

func NewXmlEntity(url string) *XmlEntity { return &XmlEntity{newSimpleStringFamily("xml-entity", "url", url)} }

// JavaClass requires a class on the JVM classpath.
type JavaClass struct{ *simpleStringFamily }

func NewJavaClass(class string) *JavaClass {
	return &JavaClass{newSimpleStringFamily("java-class", "classname", class)}
}

// PerlFile requires a loadable perl source file by path.
type PerlFile struct{ *simpleStringFamily }

func NewPerlFile(filename string) *PerlFile {
	return &PerlFile{newSimpleStringFamily("perl-file", "filename", filename)}
}

// AutoconfMacro requires an autoconf macro to be available to aclocal.
type AutoconfMacro struct{ *simpleStringFamily }

func NewAutoconfMacro(macro string) *AutoconfMacro {
	return &AutoconfMacro{newSimpleStringFamily("autoconf-macro", "macro", macro)}
}

func init() {
	registerSimpleStringFamily("npm-package", "package", func(v string) Requirement { return NewNodePackage(v) })
	registerSimpleStringFamily("cargo-crate", "crate", func(v string) Requirement { return NewCargoCrate(v) })
	registerSimpleStringFamily("path", "path", func(v string) Requirement { return NewPath(v) })
	registerSimpleStringFamily("c-header", "header", func(v string) Requirement { return NewCHeader(v) })
	registerSimpleStringFamily("vala", "package", func(v string) Requirement { return NewValaPackage(v) })
	registerSimpleStringFamily("go", "package", func(v string) Requirement { return NewGoPackage(v) })
	registerSimpleStringFamily("dh-addon", "path", func(v string) Requirement { return NewDhAddon(v) })
	registerSimpleStringFamily("php-class", "php_class", func(v string) Requirement { return NewPhpClass(v) })
	registerSimpleStringFamily("lib", "library", func(v string) Requirement { return NewLibrary(v) })
	registerSimpleStringFamily("ruby-file", "filename", func(v string) Requirement { return NewRubyFile(v) })
	registerSimpleStringFamily("xml-entity", "url", func(v string) Requirement { return NewXmlEntity(v) })
	registerSimpleStringFamily("java-class", "classname", func(v string) Requirement { return NewJavaClass(v) })
	registerSimpleStringFamily("perl-file", "filename", func(v string) Requirement { return NewPerlFile(v) })
	registerSimpleStringFamily("autoconf-macro", "macro", func(v string) Requirement { return NewAutoconfMacro(v) })
}

// emptyFamily declares a requirement family with no payload fields at
// all (e.g. "is there a JS runtime available").
type emptyFamily struct{ family string }

func (r *emptyFamily) Family() string                       { return r.family }
func (r *emptyFamily) String() string                        { return r.family }
func (r *emptyFamily) Met(session.Session) (bool, error)      { return false, fmt.Errorf("%s: %w", r.family, ErrMetUnsupported) }
func (r *emptyFamily) payload() (json.RawMessage, error)      { return marshal(struct{}{}), nil }

// JavaScriptRuntime requires any JS runtime (node, etc) on PATH.
type JavaScriptRuntime struct{ *emptyFamily }

func NewJavaScriptRuntime() *JavaScriptRuntime { return &JavaScriptRuntime{&emptyFamily{"javascript-runtime"}} }

// GnomeCommon requires gnome-common's autoreconf support files.
type GnomeCommon struct{ *emptyFamily }

func NewGnomeCommon() *GnomeCommon { return &GnomeCommon{&emptyFamily{"gnome-common"}} }

func init() {
	register("javascript-runtime", func(json.RawMessage) (Requirement, error) { return NewJavaScriptRuntime(), nil })
	register("gnome-common", func(json.RawMessage) (Requirement, error) { return NewGnomeCommon(), nil })
}

// PerlModule requires an importable Perl module, optionally at a
// specific relative filename with extra @INC directories.
type PerlModule struct {
	Module   string
	Filename string
	Inc      []string
}

func (r *PerlModule) Family() string { return "perl-module" }
func (r *PerlModule) String() string { return "perl module: " + r.Module }
func (r *PerlModule) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("perl-module: %w", ErrMetUnsupported)
}

// RelFilename is the module's source path relative to an @INC entry,
// e.g. "Foo::Bar" -> "Foo/Bar.pm".
func (r *PerlModule) RelFilename() string {
	out := make([]byte, 0, len(r.Module)+3)
	for i := 0; i < len(r.Module); i++ {
		if r.Module[i] == ':' && i+1 < len(r.Module) && r.Module[i+1] == ':' {
			out = append(out, '/')
			i++
			continue
		}
		out = append(out, r.Module[i])
	}
	return string(out) + ".pm"
}

type perlModulePayload struct {
	Module   string   `json:"module"`
	Filename string   `json:"filename,omitempty"`
	Inc      []string `json:"inc,omitempty"`
}

func (r *PerlModule) payload() (json.RawMessage, error) {
	return marshal(perlModulePayload{r.Module, r.Filename, r.Inc}), nil
}

func init() {
	register("perl-module", func(p json.RawMessage) (Requirement, error) {
		var v perlModulePayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &PerlModule{v.Module, v.Filename, v.Inc}, nil
	})
}

// PkgConfig requires a pkg-config module, optionally at a minimum
// version.
type PkgConfig struct {
	Module         string
	MinimumVersion string
}

func (r *PkgConfig) Family() string { return "pkg-config" }
func (r *PkgConfig) String() string { return "pkgconfig module: " + r.Module }
func (r *PkgConfig) Met(s session.Session) (bool, error) {
	argv := []string{"pkg-config", "--exists", r.Module}
	if r.MinimumVersion != "" {
		argv = []string{"pkg-config", "--atleast-version=" + r.MinimumVersion, r.Module}
	}
	return commandSucceeds(s, argv)
}

type pkgConfigPayload struct {
	Module         string `json:"module"`
	MinimumVersion string `json:"minimum_version,omitempty"`
}

func (r *PkgConfig) payload() (json.RawMessage, error) {
	return marshal(pkgConfigPayload{r.Module, r.MinimumVersion}), nil
}

func init() {
	register("pkg-config", func(p json.RawMessage) (Requirement, error) {
		var v pkgConfigPayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &PkgConfig{v.Module, v.MinimumVersion}, nil
	})
}

// RubyGem requires a RubyGems package, optionally at a minimum version.
type RubyGem struct {
	Gem            string
	MinimumVersion string
}

func (r *RubyGem) Family() string { return "gem" }
func (r *RubyGem) String() string { return "ruby gem: " + r.Gem }
func (r *RubyGem) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("gem: %w", ErrMetUnsupported)
}

type rubyGemPayload struct {
	Gem            string `json:"gem"`
	MinimumVersion string `json:"minimum_version,omitempty"`
}

func (r *RubyGem) payload() (json.RawMessage, error) {
	return marshal(rubyGemPayload{r.Gem, r.MinimumVersion}), nil
}

func init() {
	register("gem", func(p json.RawMessage) (Requirement, error) {
		var v rubyGemPayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &RubyGem{v.Gem, v.MinimumVersion}, nil
	})
}

// RPackage requires a CRAN/Bioconductor R package, optionally at a
// minimum version.
type RPackage struct {
	Package        string
	MinimumVersion string
}

func (r *RPackage) Family() string { return "r-package" }
func (r *RPackage) String() string { return "R package: " + r.Package }
func (r *RPackage) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("r-package: %w", ErrMetUnsupported)
}

type rPackagePayload struct {
	Package        string `json:"package"`
	MinimumVersion string `json:"minimum_version,omitempty"`
}

func (r *RPackage) payload() (json.RawMessage, error) {
	return marshal(rPackagePayload{r.Package, r.MinimumVersion}), nil
}

func init() {
	register("r-package", func(p json.RawMessage) (Requirement, error) {
		var v rPackagePayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &RPackage{v.Package, v.MinimumVersion}, nil
	})
}

// SprocketsFile requires a Rails asset-pipeline file of a given MIME
// content type and logical name.
type SprocketsFile struct {
	ContentType string
	Name        string
}

func (r *SprocketsFile) Family() string { return "sprockets-file" }
func (r *SprocketsFile) String() string { return "sprockets file: " + r.Name }
func (r *SprocketsFile) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("sprockets-file: %w", ErrMetUnsupported)
}

type sprocketsFilePayload struct {
	ContentType string `json:"content_type"`
	Name        string `json:"name"`
}

func (r *SprocketsFile) payload() (json.RawMessage, error) {
	return marshal(sprocketsFilePayload{r.ContentType, r.Name}), nil
}

func init() {
	register("sprockets-file", func(p json.RawMessage) (Requirement, error) {
		var v sprocketsFilePayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &SprocketsFile{v.ContentType, v.Name}, nil
	})
}

// HaskellPackage requires a Hackage package, optionally with version
// specs (e.g. ">=1.0").
type HaskellPackage struct {
	Package string
	Specs   []string
}

func (r *HaskellPackage) Family() string { return "haskell-package" }
func (r *HaskellPackage) String() string { return "haskell package: " + r.Package }
func (r *HaskellPackage) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("haskell-package: %w", ErrMetUnsupported)
}

type haskellPackagePayload struct {
	Package string   `json:"package"`
	Specs   []string `json:"specs,omitempty"`
}

func (r *HaskellPackage) payload() (json.RawMessage, error) {
	return marshal(haskellPackagePayload{r.Package, r.Specs}), nil
}

func init() {
	register("haskell-package", func(p json.RawMessage) (Requirement, error) {
		var v haskellPackagePayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &HaskellPackage{v.Package, v.Specs}, nil
	})
}

// HaskellPackageFromString parses "name spec1 spec2..." (whitespace
// separated, specs optional) into a HaskellPackage.
func HaskellPackageFromString(text string) *HaskellPackage {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return &HaskellPackage{}
	}
	return &HaskellPackage{Package: parts[0], Specs: parts[1:]}
}

// MavenArtifact requires a single groupId:artifactId[:kind]:version
// Maven coordinate to be resolvable from the configured repositories.
type MavenArtifact struct {
	GroupID    string
	ArtifactID string
	Version    string
	Kind       string
}

func (r *MavenArtifact) Family() string { return "maven-artifact" }
func (r *MavenArtifact) String() string {
	return fmt.Sprintf("maven requirement: %s:%s:%s", r.GroupID, r.ArtifactID, r.Version)
}
func (r *MavenArtifact) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("maven-artifact: %w", ErrMetUnsupported)
}

// MavenArtifactFromParts builds a MavenArtifact from 2-4 colon-split
// coordinate parts, mirroring MavenArtifactRequirement.from_tuple:
// (group, artifact), (group, artifact, version) defaulting kind to
// "jar", or (group, artifact, kind, version).
func MavenArtifactFromParts(parts []string) (*MavenArtifact, error) {
	switch len(parts) {
	case 2:
		return &MavenArtifact{GroupID: parts[0], ArtifactID: parts[1], Kind: "jar"}, nil
	case 3:
		return &MavenArtifact{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2], Kind: "jar"}, nil
	case 4:
		return &MavenArtifact{GroupID: parts[0], ArtifactID: parts[1], Kind: parts[2], Version: parts[3]}, nil
	default:
		return nil, fmt.Errorf("invalid number of parts to artifact %v", parts)
	}
}

// MavenArtifactFromStr parses a "group:artifact[:kind]:version"
// coordinate string, mirroring MavenArtifactRequirement.from_str.
func MavenArtifactFromStr(text string) (*MavenArtifact, error) {
	return MavenArtifactFromParts(strings.Split(text, ":"))
}

type mavenArtifactPayload struct {
	GroupID    string `json:"group_id"`
	ArtifactID string `json:"artifact_id"`
	Version    string `json:"version,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

func (r *MavenArtifact) payload() (json.RawMessage, error) {
	return marshal(mavenArtifactPayload{r.GroupID, r.ArtifactID, r.Version, r.Kind}), nil
}

func init() {
	register("maven-artifact", func(p json.RawMessage) (Requirement, error) {
		var v mavenArtifactPayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &MavenArtifact{v.GroupID, v.ArtifactID, v.Version, v.Kind}, nil
	})
}

// JDKFile requires a specific file within a JDK installation, e.g. a
// jar on the boot classpath.
type JDKFile struct {
	JDKPath  string
	Filename string
}

func (r *JDKFile) Family() string { return "jdk-file" }
func (r *JDKFile) String() string { return "jdk file: " + r.Path() }
func (r *JDKFile) Path() string    { return r.JDKPath + "/" + r.Filename }
func (r *JDKFile) Met(session.Session) (bool, error) {
	return false, fmt.Errorf("jdk-file: %w", ErrMetUnsupported)
}

type jdkFilePayload struct {
	JDKPath  string `json:"jdk_path"`
	Filename string `json:"filename"`
}

func (r *JDKFile) payload() (json.RawMessage, error) {
	return marshal(jdkFilePayload{r.JDKPath, r.Filename}), nil
}

func init() {
	register("jdk-file", func(p json.RawMessage) (Requirement, error) {
		var v jdkFilePayload
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, err
		}
		return &JDKFile{v.JDKPath, v.Filename}, nil
	})
}
