package buildsystem

import (
	"encoding/json"
	"sort"

	"github.com/ognibuild/ognibuild/requirement"
)

// NpmPackage drives an npm package via "npm pack".
type NpmPackage struct{ common }

func (n *NpmPackage) setup() error {
	return n.Resolver.Install([]requirement.Requirement{binaryPkg("npm")})
}

func (n *NpmPackage) Dist() error {
	if err := n.setup(); err != nil {
		return err
	}
	return n.run([]string{"npm", "pack"})
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Files           []string          `json:"files"`
}

// DeclaredDependencies parses package.json's "dependencies" (kind
// "build") and "devDependencies" (kind "test") into NodePackage
// requirements. package.json is already a self-describing, trivially
// parseable format, unlike setup.py/Makefile.PL which need their
// interpreters run to introspect.
func (n *NpmPackage) DeclaredDependencies() ([]DeclaredDependency, error) {
	data, err := readFile(n.Session, "package.json")
	if err != nil {
		return nil, err
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	var out []DeclaredDependency
	for _, name := range sortedKeys(pkg.Dependencies) {
		out = append(out, DeclaredDependency{Kind: "build", Requirement: requirement.NewNodePackage(name)})
	}
	for _, name := range sortedKeys(pkg.DevDependencies) {
		out = append(out, DeclaredDependency{Kind: "test", Requirement: requirement.NewNodePackage(name)})
	}
	return out, nil
}

// DeclaredOutputs returns package.json's "files" allowlist, when set --
// the closest npm comes to naming dist outputs ahead of time.
func (n *NpmPackage) DeclaredOutputs() ([]string, error) {
	data, err := readFile(n.Session, "package.json")
	if err != nil {
		return nil, err
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	if len(pkg.Files) == 0 {
		return nil, ErrNotSupported
	}
	return pkg.Files, nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
