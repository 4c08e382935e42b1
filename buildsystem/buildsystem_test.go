package buildsystem

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/session"
)

// fakeSession is a minimal in-memory Session for exercising driver
// logic without spawning real build tools. Exists/Scandir are
// controlled explicitly; Spawn runs a harmless shell snippet so the
// fixloop machinery (which does start a real process) still sees a
// normal exit code, and CheckCall fails only when exitCode is nonzero.
type fakeSession struct {
	dir      string
	existing map[string]bool
	gemfiles []string
	exitCode int
}

func newFakeSession(t *testing.T) *fakeSession {
	t.Helper()
	dir := t.TempDir()
	return &fakeSession{dir: dir, existing: map[string]bool{}}
}

func (f *fakeSession) Open() error                   { return nil }
func (f *fakeSession) Close() error                  { return nil }
func (f *fakeSession) Location() string              { return f.dir }
func (f *fakeSession) IsTemporary() bool             { return false }
func (f *fakeSession) Chdir(path string)             {}
func (f *fakeSession) CreateHome() error             { return nil }
func (f *fakeSession) ExternalPath(path string) string {
	return filepath.Join(f.dir, path)
}

func (f *fakeSession) CheckCall(argv []string, opts session.RunOptions) error {
	if f.exitCode != 0 {
		return &exec.ExitError{}
	}
	return nil
}

func (f *fakeSession) CheckOutput(argv []string, opts session.RunOptions) ([]byte, error) {
	return nil, nil
}

func (f *fakeSession) Spawn(argv []string, opts session.RunOptions) (*exec.Cmd, error) {
	return exec.Command("sh", "-c", fmt.Sprintf("exit %d", f.exitCode)), nil
}

func (f *fakeSession) Exists(path string) bool { return f.existing[path] }

func (f *fakeSession) Scandir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(f.dir)
}

func (f *fakeSession) Mkdir(path string) error  { return os.Mkdir(filepath.Join(f.dir, path), 0755) }
func (f *fakeSession) Rmtree(path string) error { return os.RemoveAll(filepath.Join(f.dir, path)) }

func (f *fakeSession) SetupFromDirectory(path, subdir string) (string, string, error) {
	return f.dir, subdir, nil
}

func (f *fakeSession) writeFile(t *testing.T, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	f.existing[name] = true
}

var _ session.Session = (*fakeSession)(nil)

type fakeResolver struct {
	installed []requirement.Requirement
	err       error
}

func (r *fakeResolver) Install(reqs []requirement.Requirement) error {
	r.installed = append(r.installed, reqs...)
	return r.err
}

func hasReq(reqs []requirement.Requirement, family string) bool {
	for _, r := range reqs {
		if r.Family() == family {
			return true
		}
	}
	return false
}

func TestDetectPriorityAndMultiplicity(t *testing.T) {
	s := newFakeSession(t)
	s.writeFile(t, "setup.py", "from setuptools import setup")
	s.writeFile(t, "Makefile", "all:\n\techo hi\n")

	systems := Detect(s, &fakeResolver{}, nil, nil)
	if len(systems) != 2 {
		t.Fatalf("Detect() returned %d systems, want 2", len(systems))
	}
	if _, ok := systems[0].(*SetupPy); !ok {
		t.Errorf("systems[0] = %T, want *SetupPy", systems[0])
	}
	if _, ok := systems[1].(*Make); !ok {
		t.Errorf("systems[1] = %T, want *Make", systems[1])
	}
}

func TestDetectNone(t *testing.T) {
	s := newFakeSession(t)
	systems := Detect(s, &fakeResolver{}, nil, nil)
	if len(systems) != 0 {
		t.Fatalf("Detect() = %v, want empty", systems)
	}
}

func TestPearDistInstallsBinaryAndRuns(t *testing.T) {
	s := newFakeSession(t)
	resolver := &fakeResolver{}
	p := &Pear{common{Session: s, Resolver: resolver}}

	if err := p.Dist(); err != nil {
		t.Fatalf("Dist: %v", err)
	}
	if !hasReq(resolver.installed, "binary") {
		t.Errorf("installed = %v, want a binary requirement for pear", resolver.installed)
	}
}

func TestCommonDefaultsAreNotSupported(t *testing.T) {
	c := &common{}
	for _, op := range []func() error{c.Dist, c.Build, c.Test, c.Install, c.Clean} {
		if err := op(); err != ErrNotSupported {
			t.Errorf("default op() = %v, want ErrNotSupported", err)
		}
	}
	if _, err := c.DeclaredDependencies(); err != ErrNotSupported {
		t.Errorf("DeclaredDependencies() = %v, want ErrNotSupported", err)
	}
	if _, err := c.DeclaredOutputs(); err != ErrNotSupported {
		t.Errorf("DeclaredOutputs() = %v, want ErrNotSupported", err)
	}
}

func TestSetupPySetupDetectsSetuptoolsAndScm(t *testing.T) {
	s := newFakeSession(t)
	s.writeFile(t, "setup.py", "from setuptools import setup\nsetup(use_scm_version=True)\n")
	s.writeFile(t, "setup.cfg", "[metadata]\nsetuptools_scm\n")
	resolver := &fakeResolver{}
	sp := &SetupPy{common{Session: s, Resolver: resolver}}

	if err := sp.setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !anyPythonPackage(resolver.installed, "setuptools") {
		t.Errorf("installed = %v, want setuptools python package", resolver.installed)
	}
	if !anyPythonPackage(resolver.installed, "setuptools-scm") {
		t.Errorf("installed = %v, want setuptools-scm python package", resolver.installed)
	}
}

func anyPythonPackage(reqs []requirement.Requirement, name string) bool {
	for _, r := range reqs {
		if pp, ok := r.(*requirement.PythonPackage); ok && pp.Package == name {
			return true
		}
	}
	return false
}

func TestContainsLineAndAnyLineMatches(t *testing.T) {
	lines := []string{"foo\n", "Please run ./configure first\n", "bar\n"}
	if !containsLine(lines, "Please run ./configure first\n") {
		t.Error("containsLine() = false, want true")
	}
	if containsLine(lines, "nope\n") {
		t.Error("containsLine() = true, want false")
	}
	manifestLines := []string{"Problem opening MANIFEST: No such file or directory at Makefile.PL line 42.\n"}
	if !anyLineMatches(manifestLines, reMissingManifest) {
		t.Error("anyLineMatches() = false, want true for MANIFEST error")
	}
}
