package fixloop

import (
	"errors"
	"testing"

	"github.com/ognibuild/ognibuild"
	"github.com/ognibuild/ognibuild/problem"
	"github.com/ognibuild/ognibuild/session"
)

type fakeContext struct{}

func (fakeContext) AddDependency(interface{}) (bool, error) { return false, nil }

// countingFixer claims problems whose Kind is in Kinds and records how
// many times it was asked to fix. After MadeAfter attempts it reports
// success.
type countingFixer struct {
	Kinds     map[string]bool
	MadeAfter int
	attempts  int
}

func (f *countingFixer) CanFix(p *problem.Problem) bool { return f.Kinds[p.Kind] }

func (f *countingFixer) Fix(p *problem.Problem, _ Context) (bool, error) {
	f.attempts++
	return f.attempts > f.MadeAfter, nil
}

func newPlainSession(t *testing.T) *session.Plain {
	t.Helper()
	s := session.NewPlain()
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunWithBuildFixersSucceedsImmediately(t *testing.T) {
	s := newPlainSession(t)
	classify := func(lines []string) (*problem.Problem, int, string, bool) {
		t.Fatal("classify should not be called on success")
		return nil, 0, "", false
	}
	err := RunWithBuildFixers(s, []string{"true"}, classify, nil, fakeContext{})
	if err != nil {
		t.Fatalf("RunWithBuildFixers: %v", err)
	}
}

func TestRunWithBuildFixersUnidentified(t *testing.T) {
	s := newPlainSession(t)
	classify := func(lines []string) (*problem.Problem, int, string, bool) {
		return nil, 0, "", false
	}
	err := RunWithBuildFixers(s, []string{"false"}, classify, nil, fakeContext{})
	var uerr *ognibuild.UnidentifiedError
	if !errors.As(err, &uerr) {
		t.Fatalf("RunWithBuildFixers() error = %v, want *UnidentifiedError", err)
	}
}

func TestRunWithBuildFixersNoFixerFound(t *testing.T) {
	s := newPlainSession(t)
	p := problem.New("missing-thing", nil)
	classify := func(lines []string) (*problem.Problem, int, string, bool) {
		return p, 0, "", true
	}
	err := RunWithBuildFixers(s, []string{"false"}, classify, nil, fakeContext{})
	var dfail *ognibuild.DetailedFailure
	if !errors.As(err, &dfail) {
		t.Fatalf("RunWithBuildFixers() error = %v, want *DetailedFailure", err)
	}
}

func TestRunWithBuildFixersRecurringProblemGivesUp(t *testing.T) {
	s := newPlainSession(t)
	p := problem.New("missing-thing", nil)
	classify := func(lines []string) (*problem.Problem, int, string, bool) {
		return p, 0, "", true
	}
	fixer := &countingFixer{Kinds: map[string]bool{"missing-thing": true}, MadeAfter: 0}
	err := RunWithBuildFixers(s, []string{"false"}, classify, []BuildFixer{fixer}, fakeContext{})
	var dfail *ognibuild.DetailedFailure
	if !errors.As(err, &dfail) {
		t.Fatalf("RunWithBuildFixers() error = %v, want *DetailedFailure", err)
	}
	if fixer.attempts != 1 {
		t.Fatalf("fixer.attempts = %d, want 1 (no progress should stop after first retry)", fixer.attempts)
	}
}

func TestFixRequiresCanFix(t *testing.T) {
	fixer := &countingFixer{Kinds: map[string]bool{"other": true}}
	made, err := Fix(fixer, problem.New("missing-thing", nil), fakeContext{})
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if made {
		t.Fatal("Fix() = true, want false for a fixer that cannot claim the problem")
	}
	if fixer.attempts != 0 {
		t.Fatalf("fixer.attempts = %d, want 0", fixer.attempts)
	}
}
