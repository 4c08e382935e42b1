package buildsystem

import "github.com/ognibuild/ognibuild/requirement"

// Waf drives a Waf-based build via "./waf dist".
type Waf struct{ common }

func (w *Waf) setup() error {
	return w.Resolver.Install([]requirement.Requirement{binaryPkg("python3")})
}

func (w *Waf) Dist() error {
	if err := w.setup(); err != nil {
		return err
	}
	return w.run([]string{"./waf", "dist"})
}
