package problemconvert

import (
	"log"
	"strings"

	"github.com/ognibuild/ognibuild/problem"
	"github.com/ognibuild/ognibuild/requirement"
)

// ConvertWithFallback behaves like Convert, but additionally handles the
// problem kinds that problem_to_upstream_requirement resolves via
// isinstance checks on buildlog_consultant problem subclasses rather
// than through PROBLEM_CONVERTERS: cmake component groups, LaTeX
// styles, Haskell/Maven/Cargo dependency lists, perl predeclared
// subroutines, setup.py test commands, and the gnome-common/xfce
// bootstrap helper special cases.
func ConvertWithFallback(p *problem.Problem, parserVersion string) (requirement.Requirement, bool) {
	if req, ok := Convert(p, parserVersion); ok {
		return req, true
	}
	if req := fallback(p); req != nil {
		return req, true
	}
	return nil, false
}

func fallback(p *problem.Problem) requirement.Requirement {
	switch p.Kind {
	case "missing-cmake-components":
		return cmakeComponents(p)
	case "missing-latex-file":
		filename := p.Filename()
		if !strings.HasSuffix(filename, ".sty") {
			return nil
		}
		return requirement.NewLatexPackage(strings.TrimSuffix(filename, ".sty"))
	case "missing-haskell-dependencies":
		deps := p.Deps()
		elements := make([]requirement.Requirement, len(deps))
		for i, dep := range deps {
			elements[i] = requirement.HaskellPackageFromString(dep)
		}
		return &requirement.OneOf{Elements: elements}
	case "missing-maven-artifacts":
		artifacts := p.Artifacts()
		elements := make([]requirement.Requirement, 0, len(artifacts))
		for _, a := range artifacts {
			req, err := requirement.MavenArtifactFromStr(a)
			if err != nil {
				log.Printf("skipping unparseable maven artifact %q: %v", a, err)
				continue
			}
			elements = append(elements, req)
		}
		return &requirement.OneOf{Elements: elements}
	case "missing-perl-predeclared":
		decl := &requirement.PerlPreDeclared{Name: p.Name()}
		if module, ok := decl.LookupModule(); ok {
			return module
		}
		return decl
	case "missing-cargo-crate":
		// Only the crate name is converted; any version constraint the
		// problem carries is dropped.
		return requirement.NewCargoCrate(p.Crate())
	case "missing-setup.py-command":
		if p.Command() == "test" {
			return &requirement.PythonPackage{Package: "setuptools"}
		}
		return nil
	case "missing-gnome-common-dependency":
		if p.Package() == "glib-gettext" {
			return &requirement.Binary{Name: "glib-gettextize"}
		}
		log.Printf("no known command for gnome-common dependency %s", p.Package())
		return nil
	case "missing-xfce-dependency":
		if p.Package() == "gtk-doc" {
			return &requirement.Binary{Name: "gtkdocize"}
		}
		log.Printf("no known command for xfce dependency %s", p.Package())
		return nil
	case "missing-perl-file":
		return requirement.NewPerlFile(p.Filename())
	case "unsatisfied-apt-dependencies":
		// No conversion: there is no apt-specific Requirement family to
		// convert to, and no resolver takes these relations directly.
		return nil
	default:
		return nil
	}
}

func cmakeComponents(p *problem.Problem) requirement.Requirement {
	components := p.Components()
	switch strings.ToLower(p.Name()) {
	case "boost":
		elements := make([]requirement.Requirement, len(components))
		for i, name := range components {
			elements[i] = requirement.NewBoostComponent(name)
		}
		return &requirement.OneOf{Elements: elements}
	case "kf5":
		elements := make([]requirement.Requirement, len(components))
		for i, name := range components {
			elements[i] = requirement.NewKF5Component(name)
		}
		return &requirement.OneOf{Elements: elements}
	default:
		return nil
	}
}
