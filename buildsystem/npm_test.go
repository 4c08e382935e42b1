package buildsystem

import "testing"

func TestNpmPackageDeclaredDependencies(t *testing.T) {
	s := newFakeSession(t)
	s.writeFile(t, "package.json", `{
		"dependencies": {"left-pad": "^1.0.0"},
		"devDependencies": {"mocha": "^9.0.0"},
		"files": ["lib/"]
	}`)
	n := &NpmPackage{common{Session: s}}

	deps, err := n.DeclaredDependencies()
	if err != nil {
		t.Fatalf("DeclaredDependencies: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("got %d deps, want 2: %v", len(deps), deps)
	}
	if deps[0].Kind != "build" || deps[0].Requirement.String() != "npm-package: left-pad" {
		t.Errorf("deps[0] = %+v, want build/left-pad", deps[0])
	}
	if deps[1].Kind != "test" || deps[1].Requirement.String() != "npm-package: mocha" {
		t.Errorf("deps[1] = %+v, want test/mocha", deps[1])
	}

	outputs, err := n.DeclaredOutputs()
	if err != nil {
		t.Fatalf("DeclaredOutputs: %v", err)
	}
	if len(outputs) != 1 || outputs[0] != "lib/" {
		t.Errorf("outputs = %v, want [lib/]", outputs)
	}
}

func TestNpmPackageDeclaredOutputsUnsupportedWithoutFiles(t *testing.T) {
	s := newFakeSession(t)
	s.writeFile(t, "package.json", `{"name": "x"}`)
	n := &NpmPackage{common{Session: s}}
	if _, err := n.DeclaredOutputs(); err != ErrNotSupported {
		t.Errorf("DeclaredOutputs() = %v, want ErrNotSupported", err)
	}
}
