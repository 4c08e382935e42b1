package debian

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ognibuild/ognibuild/fixloop"
	"github.com/ognibuild/ognibuild/problem"
	"github.com/ognibuild/ognibuild/resolver"
	"github.com/ognibuild/ognibuild/session"
)

type fakeTree struct {
	files     map[string][]byte
	commits   []string
	resets    int
	commitErr error
}

func newFakeTree() *fakeTree { return &fakeTree{files: map[string][]byte{}} }

func (t *fakeTree) GetFile(path string) ([]byte, error) {
	data, ok := t.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return data, nil
}

func (t *fakeTree) WriteFile(path string, data []byte) error {
	t.files[path] = data
	return nil
}

func (t *fakeTree) Commit(message string) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.commits = append(t.commits, message)
	return nil
}

func (t *fakeTree) Reset() error {
	t.resets++
	return nil
}

var _ VCSTree = (*fakeTree)(nil)

const testControl = `Source: hello
Build-Depends: debhelper-compat (= 13)

Package: hello
Architecture: any
`

func TestAddBuildDependencyAddsAndCommits(t *testing.T) {
	tree := newFakeTree()
	tree.files["debian/control"] = []byte(testControl)

	made, err := AddBuildDependency(tree, "", "libfoo-dev", "")
	if err != nil {
		t.Fatalf("AddBuildDependency: %v", err)
	}
	if !made {
		t.Fatal("AddBuildDependency() = false, want true")
	}
	cf := parseControl(tree.files["debian/control"])
	deps, _ := cf.paragraphs[0].get("Build-Depends")
	if deps != "debhelper-compat (= 13), libfoo-dev" {
		t.Errorf("Build-Depends = %q", deps)
	}
	if len(tree.commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(tree.commits))
	}
}

func TestAddBuildDependencyNoopWhenAlreadySatisfied(t *testing.T) {
	tree := newFakeTree()
	tree.files["debian/control"] = []byte(testControl)

	made, err := AddBuildDependency(tree, "", "debhelper-compat", "")
	if err != nil {
		t.Fatalf("AddBuildDependency: %v", err)
	}
	if made {
		t.Error("AddBuildDependency() = true, want false (already present)")
	}
	if len(tree.commits) != 0 {
		t.Errorf("got %d commits, want 0", len(tree.commits))
	}
}

func TestAddBuildDependencyDetectsCircularDependency(t *testing.T) {
	tree := newFakeTree()
	tree.files["debian/control"] = []byte(testControl)

	_, err := AddBuildDependency(tree, "", "hello", "")
	var circ *CircularDependency
	if !errors.As(err, &circ) {
		t.Fatalf("AddBuildDependency() error = %v, want *CircularDependency", err)
	}
}

const testTestsControl = `Tests: mytest
Depends: @

Tests: othertest
Depends: foo
`

func TestAddTestDependencyAddsAndCommits(t *testing.T) {
	tree := newFakeTree()
	tree.files["debian/tests/control"] = []byte(testTestsControl)

	made, err := AddTestDependency(tree, "", "mytest", "python3-pytest", "")
	if err != nil {
		t.Fatalf("AddTestDependency: %v", err)
	}
	if !made {
		t.Fatal("AddTestDependency() = false, want true")
	}
	cf := parseControl(tree.files["debian/tests/control"])
	deps, _ := cf.paragraphs[0].get("Depends")
	if deps != "@, python3-pytest" {
		t.Errorf("Depends = %q", deps)
	}
}

func TestBuildDependencyContextDelegatesToAddBuildDependency(t *testing.T) {
	tree := newFakeTree()
	tree.files["debian/control"] = []byte(testControl)
	ctx := &BuildDependencyContext{Tree: tree}

	made, err := ctx.AddDependency(NewDependency("libfoo-dev", ""))
	if err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if !made {
		t.Fatal("AddDependency() = false, want true")
	}
}

func TestBuildDependencyContextIgnoresUnknownReqShape(t *testing.T) {
	ctx := &BuildDependencyContext{Tree: newFakeTree()}
	made, err := ctx.AddDependency("not a dependency")
	if err != nil || made {
		t.Errorf("AddDependency(unknown) = %v, %v, want false, nil", made, err)
	}
}

// mapFileIndex is a minimal fileindex.FileIndex for exercising
// DependencyFixer without spawning real apt.
type mapFileIndex struct{ byPath map[string][]string }

func (m mapFileIndex) SearchFiles(_ context.Context, path string, regex, caseInsensitive bool) ([]string, error) {
	return m.byPath[path], nil
}

func TestDependencyFixerAddsAptResolvedPackage(t *testing.T) {
	s := session.NewPlain()
	idx := mapFileIndex{byPath: map[string][]string{"/usr/bin/gcc": {"gcc-12"}}}
	apt := resolver.NewAptResolver(s, idx)
	f := &DependencyFixer{Apt: apt}

	p := problem.New("command-missing", map[string]interface{}{"command": "gcc"})
	if !f.CanFix(p) {
		t.Fatal("CanFix() = false, want true")
	}

	tree := newFakeTree()
	tree.files["debian/control"] = []byte(testControl)
	ctx := &BuildDependencyContext{Tree: tree}

	made, err := f.Fix(p, ctx)
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if !made {
		t.Fatal("Fix() = false, want true")
	}
	cf := parseControl(tree.files["debian/control"])
	deps, _ := cf.paragraphs[0].get("Build-Depends")
	if deps != "debhelper-compat (= 13), gcc-12" {
		t.Errorf("Build-Depends = %q", deps)
	}
}

func TestDependencyFixerCannotFixUnconvertibleProblem(t *testing.T) {
	f := &DependencyFixer{Apt: resolver.NewAptResolver(session.NewPlain(), mapFileIndex{})}
	p := problem.New("totally-unknown-problem", nil)
	if f.CanFix(p) {
		t.Error("CanFix() = true, want false")
	}
}

func newOpenPlain(t *testing.T) *session.Plain {
	t.Helper()
	s := session.NewPlain()
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunIncrementalSucceedsImmediately(t *testing.T) {
	s := newOpenPlain(t)
	classify := func(lines []string) (*problem.Problem, *Attempt, bool) {
		t.Fatal("classify should not be called on success")
		return nil, nil, false
	}
	err := RunIncremental(s, []string{"true"}, classify, nil, newFakeTree(), "", t.TempDir()+"/build.log")
	if err != nil {
		t.Fatalf("RunIncremental: %v", err)
	}
}

// onceFixer claims every problem and reports a successful fix exactly
// once, then stops making progress -- enough to exercise RunIncremental's
// tree-reset-then-recur path before it gives up.
type onceFixer struct {
	attempts int
}

func (f *onceFixer) CanFix(p *problem.Problem) bool { return true }

func (f *onceFixer) Fix(p *problem.Problem, ctx fixloop.Context) (bool, error) {
	f.attempts++
	return f.attempts == 1, nil
}

func TestRunIncrementalGivesUpOnRecurringProblem(t *testing.T) {
	s := newOpenPlain(t)
	p := problem.New("missing-thing", nil)
	classify := func(lines []string) (*problem.Problem, *Attempt, bool) {
		return p, &Attempt{Kind: BuildContext}, true
	}
	tree := newFakeTree()

	err := RunIncremental(s, []string{"false"}, classify, []fixloop.BuildFixer{&onceFixer{}}, tree, "", t.TempDir()+"/build.log")
	if err == nil {
		t.Fatal("RunIncremental() = nil, want error")
	}
	if tree.resets != 1 {
		t.Errorf("resets = %d, want 1 (one successful fix before giving up)", tree.resets)
	}
}
