package buildsystem

import (
	"fmt"
	"strings"

	"github.com/ognibuild/ognibuild"
	"github.com/ognibuild/ognibuild/requirement"
)

// SetupPy drives a distutils/setuptools "setup.py" project.
type SetupPy struct{ common }

func (p *SetupPy) setup() error {
	if err := p.Resolver.Install([]requirement.Requirement{
		python3Pkg("pip"),
		binaryPkg("python3"),
	}); err != nil {
		return err
	}

	setupPy, err := readFile(p.Session, "setup.py")
	if err != nil {
		return fmt.Errorf("reading setup.py: %w", err)
	}
	setupCfg, _ := readFile(p.Session, "setup.cfg")

	if strings.Contains(string(setupPy), "setuptools") {
		if err := p.Resolver.Install([]requirement.Requirement{python3Pkg("setuptools")}); err != nil {
			return err
		}
	}
	if strings.Contains(string(setupPy), "setuptools_scm") || strings.Contains(string(setupCfg), "setuptools_scm") {
		if err := p.Resolver.Install([]requirement.Requirement{
			python3Pkg("setuptools-scm"),
			binaryPkg("git"),
			binaryPkg("mercurial"),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *SetupPy) runSetup(args []string) error {
	interpreter, err := ognibuild.ShebangBinary(p.Session.ExternalPath("setup.py"))
	if err != nil {
		return err
	}
	if interpreter != "" {
		switch interpreter {
		case "python3", "python2", "python":
		default:
			return fmt.Errorf("unknown interpreter %q", interpreter)
		}
		if err := p.Resolver.Install([]requirement.Requirement{binaryPkg(interpreter)}); err != nil {
			return err
		}
		return p.run(append([]string{"./setup.py"}, args...))
	}
	if err := p.Resolver.Install([]requirement.Requirement{binaryPkg("python3")}); err != nil {
		return err
	}
	return p.run(append([]string{"python3", "./setup.py"}, args...))
}

func (p *SetupPy) Test() error {
	if err := p.setup(); err != nil {
		return err
	}
	return p.runSetup([]string{"test"})
}

func (p *SetupPy) Dist() error {
	if err := p.setup(); err != nil {
		return err
	}
	return p.runSetup([]string{"sdist"})
}

func (p *SetupPy) Clean() error {
	if err := p.setup(); err != nil {
		return err
	}
	return p.runSetup([]string{"clean"})
}

func (p *SetupPy) Install() error {
	if err := p.setup(); err != nil {
		return err
	}
	return p.runSetup([]string{"install"})
}
