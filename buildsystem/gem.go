package buildsystem

import (
	"log"

	"github.com/ognibuild/ognibuild/requirement"
)

// Gem drives a RubyGems gem via gem2tgz, as packaged by gem2deb.
type Gem struct{ common }

func (g *Gem) setup() error {
	return g.Resolver.Install([]requirement.Requirement{binaryPkg("gem2deb")})
}

func (g *Gem) Dist() error {
	if err := g.setup(); err != nil {
		return err
	}
	entries, err := g.Session.Scandir(".")
	if err != nil {
		return err
	}
	var gemfiles []string
	for _, e := range entries {
		if hasSuffix(e.Name(), ".gem") {
			gemfiles = append(gemfiles, e.Name())
		}
	}
	if len(gemfiles) == 0 {
		return firstGemfileNotFoundErr
	}
	if len(gemfiles) > 1 {
		log.Printf("more than one gemfile, trying the first")
	}
	return g.run([]string{"gem2tgz", gemfiles[0]})
}
