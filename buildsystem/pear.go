package buildsystem

import "github.com/ognibuild/ognibuild/requirement"

// Pear drives a PEAR (PHP Extension and Application Repository) package.
type Pear struct{ common }

func (p *Pear) setup() error {
	return p.Resolver.Install([]requirement.Requirement{binaryPkg("pear")})
}

func (p *Pear) Dist() error {
	if err := p.setup(); err != nil {
		return err
	}
	return p.run([]string{"pear", "package"})
}

func (p *Pear) Test() error {
	if err := p.setup(); err != nil {
		return err
	}
	return p.run([]string{"pear", "run-tests"})
}

func (p *Pear) Build() error {
	if err := p.setup(); err != nil {
		return err
	}
	return p.run([]string{"pear", "build"})
}

func (p *Pear) Clean() error {
	return p.setup()
}

func (p *Pear) Install() error {
	if err := p.setup(); err != nil {
		return err
	}
	return p.run([]string{"pear", "install"})
}
