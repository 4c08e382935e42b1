package buildsystem

import (
	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/session"
)

// SetupCfg drives a PEP 517 project whose backend is declared entirely
// in setup.cfg (no pyproject.toml), built via pep517.build.
type SetupCfg struct{ common }

func (s *SetupCfg) setup() error {
	return s.Resolver.Install([]requirement.Requirement{
		python3Pkg("pep517"),
		python3Pkg("pip"),
	})
}

func (s *SetupCfg) Dist() error {
	if err := s.setup(); err != nil {
		return err
	}
	return s.Session.CheckCall([]string{"python3", "-m", "pep517.build", "-s", "."}, session.RunOptions{})
}
