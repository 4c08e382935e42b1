package resolver

import (
	"fmt"

	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/session"
)

func user(userLocal bool) string {
	if userLocal {
		return ""
	}
	return "root"
}

// CPANResolver installs Perl modules via "cpan -i". Grounded on
// CPANResolver in ognibuild/resolver/__init__.py.
type CPANResolver struct {
	Session   session.Session
	UserLocal bool
}

func (r *CPANResolver) String() string { return "cpan" }

func (r *CPANResolver) Env() map[string]string {
	return map[string]string{"PERL_MM_USE_DEFAULT": "1", "PERL_MM_OPT": "", "PERL_MB_OPT": ""}
}

func (r *CPANResolver) Install(reqs []requirement.Requirement) error {
	var missing []requirement.Requirement
	opts := session.RunOptions{User: user(r.UserLocal), Env: r.Env()}
	for _, req := range reqs {
		m, ok := req.(*requirement.PerlModule)
		if !ok {
			missing = append(missing, req)
			continue
		}
		if err := r.Session.CheckCall([]string{"cpan", "-i", m.Module}, opts); err != nil {
			return fmt.Errorf("resolver: cpan -i %s: %w", m.Module, err)
		}
	}
	if len(missing) > 0 {
		return &UnsatisfiedRequirements{Requirements: missing}
	}
	return nil
}

func (r *CPANResolver) Explain(reqs []requirement.Requirement) ([]string, error) {
	var modules []string
	for _, req := range reqs {
		if m, ok := req.(*requirement.PerlModule); ok {
			modules = append(modules, m.Module)
		}
	}
	if len(modules) == 0 {
		return nil, nil
	}
	return []string{"cpan -i " + joinArgs(modules)}, nil
}

// PypiResolver installs Python packages via "pip install". Grounded on
// PypiResolver.
type PypiResolver struct {
	Session   session.Session
	UserLocal bool
}

func (r *PypiResolver) String() string          { return "pypi" }
func (r *PypiResolver) Env() map[string]string  { return nil }
func (r *PypiResolver) cmd(pkgs []string) []string {
	argv := []string{"pip", "install"}
	if r.UserLocal {
		argv = append(argv, "--user")
	}
	return append(argv, pkgs...)
}

func (r *PypiResolver) Install(reqs []requirement.Requirement) error {
	var missing []requirement.Requirement
	opts := session.RunOptions{User: user(r.UserLocal)}
	for _, req := range reqs {
		p, ok := req.(*requirement.PythonPackage)
		if !ok {
			missing = append(missing, req)
			continue
		}
		if err := r.Session.CheckCall(r.cmd([]string{p.Package}), opts); err != nil {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return &UnsatisfiedRequirements{Requirements: missing}
	}
	return nil
}

func (r *PypiResolver) Explain(reqs []requirement.Requirement) ([]string, error) {
	var pkgs []string
	for _, req := range reqs {
		if p, ok := req.(*requirement.PythonPackage); ok {
			pkgs = append(pkgs, p.Package)
		}
	}
	if len(pkgs) == 0 {
		return nil, nil
	}
	return []string{joinArgs(r.cmd(pkgs))}, nil
}

// npmCommandPackages maps a binary name npm would otherwise not know how
// to provide to the npm package that actually ships it. Grounded on
// NPM_COMMAND_PACKAGES.
var npmCommandPackages = map[string]string{
	"del-cli": "del-cli",
	"husky":   "husky",
}

// NpmResolver installs node packages via "npm -g install". Grounded on
// NpmResolver.
type NpmResolver struct {
	Session   session.Session
	UserLocal bool
}

func (r *NpmResolver) String() string         { return "npm" }
func (r *NpmResolver) Env() map[string]string { return nil }

func (r *NpmResolver) Install(reqs []requirement.Requirement) error {
	var missing []requirement.Requirement
	for _, req := range reqs {
		pkgName, ok := npmPackageName(req)
		if !ok {
			missing = append(missing, req)
			continue
		}
		if err := r.Session.CheckCall([]string{"npm", "-g", "install", pkgName}, session.RunOptions{}); err != nil {
			return fmt.Errorf("resolver: npm -g install %s: %w", pkgName, err)
		}
	}
	if len(missing) > 0 {
		return &UnsatisfiedRequirements{Requirements: missing}
	}
	return nil
}

func npmPackageName(req requirement.Requirement) (string, bool) {
	switch v := req.(type) {
	case *requirement.Binary:
		if pkg, ok := npmCommandPackages[v.Name]; ok {
			return pkg, true
		}
		return "", false
	case *requirement.NodeModule:
		// a node module import path resolves to its top-level package.
		top := v.Value
		for i, c := range top {
			if c == '/' {
				top = top[:i]
				break
			}
		}
		return top, true
	case *requirement.NodePackage:
		return v.Value, true
	default:
		return "", false
	}
}

func (r *NpmResolver) Explain(reqs []requirement.Requirement) ([]string, error) {
	var pkgs []string
	for _, req := range reqs {
		if _, ok := req.(*requirement.NodePackage); !ok {
			continue
		}
		if pkg, ok := npmPackageName(req); ok {
			pkgs = append(pkgs, pkg)
		}
	}
	if len(pkgs) == 0 {
		return nil, nil
	}
	return []string{joinArgs(append([]string{"npm", "-g", "install"}, pkgs...))}, nil
}

// GoResolver installs Go packages via "go get". Grounded on GoResolver.
type GoResolver struct {
	Session   session.Session
	UserLocal bool
}

func (r *GoResolver) String() string { return "go" }

func (r *GoResolver) Env() map[string]string {
	if r.UserLocal {
		return nil
	}
	return map[string]string{"GOPATH": "/usr/share/gocode"}
}

func (r *GoResolver) Install(reqs []requirement.Requirement) error {
	var missing []requirement.Requirement
	opts := session.RunOptions{Env: r.Env()}
	for _, req := range reqs {
		g, ok := req.(*requirement.GoPackage)
		if !ok {
			missing = append(missing, req)
			continue
		}
		if err := r.Session.CheckCall([]string{"go", "get", g.Value}, opts); err != nil {
			return fmt.Errorf("resolver: go get %s: %w", g.Value, err)
		}
	}
	if len(missing) > 0 {
		return &UnsatisfiedRequirements{Requirements: missing}
	}
	return nil
}

func (r *GoResolver) Explain(reqs []requirement.Requirement) ([]string, error) {
	var pkgs []string
	for _, req := range reqs {
		if g, ok := req.(*requirement.GoPackage); ok {
			pkgs = append(pkgs, g.Value)
		}
	}
	if len(pkgs) == 0 {
		return nil, nil
	}
	return []string{joinArgs(append([]string{"go", "get"}, pkgs...))}, nil
}

// HackageResolver installs Haskell packages via "cabal install". Grounded
// on HackageResolver.
type HackageResolver struct {
	Session   session.Session
	UserLocal bool
}

func (r *HackageResolver) String() string         { return "hackage" }
func (r *HackageResolver) Env() map[string]string { return nil }

func (r *HackageResolver) cmd(pkgs []string) []string {
	argv := []string{"cabal", "install"}
	if r.UserLocal {
		argv = append(argv, "--user")
	}
	return append(argv, pkgs...)
}

func (r *HackageResolver) Install(reqs []requirement.Requirement) error {
	var missing []requirement.Requirement
	opts := session.RunOptions{User: user(r.UserLocal)}
	for _, req := range reqs {
		h, ok := req.(*requirement.HaskellPackage)
		if !ok {
			missing = append(missing, req)
			continue
		}
		if err := r.Session.CheckCall(r.cmd([]string{h.Package}), opts); err != nil {
			return fmt.Errorf("resolver: %v: %w", r.cmd([]string{h.Package}), err)
		}
	}
	if len(missing) > 0 {
		return &UnsatisfiedRequirements{Requirements: missing}
	}
	return nil
}

func (r *HackageResolver) Explain(reqs []requirement.Requirement) ([]string, error) {
	var pkgs []string
	for _, req := range reqs {
		if h, ok := req.(*requirement.HaskellPackage); ok {
			pkgs = append(pkgs, h.Package)
		}
	}
	if len(pkgs) == 0 {
		return nil, nil
	}
	return []string{joinArgs(r.cmd(pkgs))}, nil
}

// rResolver is the shared implementation behind CRANResolver and
// BioconductorResolver, which differ only in their repository URL.
// Grounded on RResolver.
type rResolver struct {
	Session   session.Session
	Repos     string
	UserLocal bool
}

func (r *rResolver) cmd(pkg string) []string {
	return []string{"R", "-e", fmt.Sprintf("install.packages('%s', repos=%q)", pkg, r.Repos)}
}

func (r *rResolver) Env() map[string]string { return nil }

func (r *rResolver) Install(reqs []requirement.Requirement) error {
	var missing []requirement.Requirement
	opts := session.RunOptions{User: user(r.UserLocal)}
	for _, req := range reqs {
		p, ok := req.(*requirement.RPackage)
		if !ok {
			missing = append(missing, req)
			continue
		}
		if err := r.Session.CheckCall(r.cmd(p.Package), opts); err != nil {
			return fmt.Errorf("resolver: %v: %w", r.cmd(p.Package), err)
		}
	}
	if len(missing) > 0 {
		return &UnsatisfiedRequirements{Requirements: missing}
	}
	return nil
}

func (r *rResolver) Explain(reqs []requirement.Requirement) ([]string, error) {
	var lines []string
	for _, req := range reqs {
		if p, ok := req.(*requirement.RPackage); ok {
			lines = append(lines, joinArgs(r.cmd(p.Package)))
		}
	}
	return lines, nil
}

// CRANResolver installs R packages from CRAN.
type CRANResolver struct{ rResolver }

func NewCRANResolver(s session.Session, userLocal bool) *CRANResolver {
	return &CRANResolver{rResolver{Session: s, Repos: "http://cran.r-project.org", UserLocal: userLocal}}
}
func (r *CRANResolver) String() string { return "cran" }

// BioconductorResolver installs R packages from Bioconductor.
type BioconductorResolver struct{ rResolver }

func NewBioconductorResolver(s session.Session, userLocal bool) *BioconductorResolver {
	return &BioconductorResolver{rResolver{Session: s, Repos: "https://hedgehog.fhcrc.org/bioconductor", UserLocal: userLocal}}
}
func (r *BioconductorResolver) String() string { return "bioconductor" }

// OctaveForgeResolver installs Octave-Forge packages via "octave-cli".
// Grounded on OctaveForgeResolver.
type OctaveForgeResolver struct {
	Session   session.Session
	UserLocal bool
}

func (r *OctaveForgeResolver) String() string         { return "octave-forge" }
func (r *OctaveForgeResolver) Env() map[string]string { return nil }

func (r *OctaveForgeResolver) cmd(pkg string) []string {
	return []string{"octave-cli", "--eval", fmt.Sprintf("pkg install -forge %s", pkg)}
}

func (r *OctaveForgeResolver) Install(reqs []requirement.Requirement) error {
	var missing []requirement.Requirement
	opts := session.RunOptions{User: user(r.UserLocal)}
	for _, req := range reqs {
		p, ok := req.(*requirement.OctavePackage)
		if !ok {
			missing = append(missing, req)
			continue
		}
		if err := r.Session.CheckCall(r.cmd(p.Value), opts); err != nil {
			return fmt.Errorf("resolver: %v: %w", r.cmd(p.Value), err)
		}
	}
	if len(missing) > 0 {
		return &UnsatisfiedRequirements{Requirements: missing}
	}
	return nil
}

func (r *OctaveForgeResolver) Explain(reqs []requirement.Requirement) ([]string, error) {
	var lines []string
	for _, req := range reqs {
		if p, ok := req.(*requirement.OctavePackage); ok {
			lines = append(lines, joinArgs(r.cmd(p.Value)))
		}
	}
	return lines, nil
}

func joinArgs(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

// NativeResolvers returns the StackedResolver of every language-native
// resolver, in the priority order NATIVE_RESOLVER_CLS lists.
func NativeResolvers(s session.Session, userLocal bool) *StackedResolver {
	return NewStackedResolver(
		&CPANResolver{Session: s, UserLocal: userLocal},
		&PypiResolver{Session: s, UserLocal: userLocal},
		&NpmResolver{Session: s, UserLocal: userLocal},
		&GoResolver{Session: s, UserLocal: userLocal},
		&HackageResolver{Session: s, UserLocal: userLocal},
		NewCRANResolver(s, userLocal),
		NewBioconductorResolver(s, userLocal),
		&OctaveForgeResolver{Session: s, UserLocal: userLocal},
	)
}
