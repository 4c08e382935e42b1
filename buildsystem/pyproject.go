package buildsystem

import (
	"fmt"

	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/session"
	"github.com/pelletier/go-toml/v2"
)

// PyProject drives a PEP 517 "pyproject.toml" project; only the poetry
// backend is currently recognized (mirrors the Python source, which
// raises for any other backend).
type PyProject struct{ common }

func (p *PyProject) loadToml() (map[string]interface{}, error) {
	data, err := readFile(p.Session, "pyproject.toml")
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing pyproject.toml: %w", err)
	}
	return doc, nil
}

func (p *PyProject) Dist() error {
	doc, err := p.loadToml()
	if err != nil {
		return err
	}
	tool, _ := doc["tool"].(map[string]interface{})
	if _, ok := tool["poetry"]; ok {
		if err := p.Resolver.Install([]requirement.Requirement{
			python3Pkg("venv"),
			python3Pkg("pip"),
		}); err != nil {
			return err
		}
		if err := p.Session.CheckCall([]string{"pip3", "install", "poetry"}, session.RunOptions{User: "root"}); err != nil {
			return err
		}
		return p.Session.CheckCall([]string{"poetry", "build", "-f", "sdist"}, session.RunOptions{})
	}
	return fmt.Errorf("buildsystem: no supported section in pyproject.toml")
}
