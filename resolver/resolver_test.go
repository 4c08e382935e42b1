package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/session"
)

// recordingSession logs every CheckCall invocation and reports a
// caller-controlled set of paths as existing, enough to exercise the
// resolvers in this package without spawning real package managers.
type recordingSession struct {
	dir      string
	existing map[string]bool
	calls    [][]string
	failOn   string
}

func newRecordingSession(t *testing.T) *recordingSession {
	t.Helper()
	return &recordingSession{dir: t.TempDir(), existing: map[string]bool{}}
}

func (s *recordingSession) Open() error       { return nil }
func (s *recordingSession) Close() error      { return nil }
func (s *recordingSession) Location() string  { return s.dir }
func (s *recordingSession) IsTemporary() bool { return false }
func (s *recordingSession) Chdir(string)      {}
func (s *recordingSession) CreateHome() error { return nil }
func (s *recordingSession) ExternalPath(p string) string { return filepath.Join(s.dir, p) }

func (s *recordingSession) CheckCall(argv []string, opts session.RunOptions) error {
	s.calls = append(s.calls, argv)
	if len(argv) > 0 && argv[0] == s.failOn {
		return &exec.ExitError{}
	}
	return nil
}

func (s *recordingSession) CheckOutput(argv []string, opts session.RunOptions) ([]byte, error) {
	s.calls = append(s.calls, argv)
	return nil, nil
}

func (s *recordingSession) Spawn(argv []string, opts session.RunOptions) (*exec.Cmd, error) {
	return exec.Command("true"), nil
}

func (s *recordingSession) Exists(path string) bool              { return s.existing[path] }
func (s *recordingSession) Scandir(string) ([]os.DirEntry, error) { return nil, nil }
func (s *recordingSession) Mkdir(string) error                    { return nil }
func (s *recordingSession) Rmtree(string) error                   { return nil }
func (s *recordingSession) SetupFromDirectory(path, subdir string) (string, string, error) {
	return s.dir, subdir, nil
}

var _ session.Session = (*recordingSession)(nil)

func TestStackedResolverFallsThroughUnsatisfied(t *testing.T) {
	first := &fakeResolver{claims: map[string]bool{"binary": true}}
	second := &fakeResolver{claims: map[string]bool{"python-package": true}}
	stacked := NewStackedResolver(first, second)

	reqs := []requirement.Requirement{&requirement.Binary{Name: "gcc"}, &requirement.PythonPackage{Package: "requests"}}
	if err := stacked.Install(reqs); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !first.installed || !second.installed {
		t.Errorf("expected both subs to have been asked to install, first=%v second=%v", first.installed, second.installed)
	}
}

func TestStackedResolverReturnsUnsatisfied(t *testing.T) {
	stacked := NewStackedResolver(&fakeResolver{claims: map[string]bool{"binary": true}})
	err := stacked.Install([]requirement.Requirement{&requirement.PythonPackage{Package: "requests"}})
	var unsatisfied *UnsatisfiedRequirements
	if err == nil {
		t.Fatal("expected an error")
	}
	if u, ok := err.(*UnsatisfiedRequirements); ok {
		unsatisfied = u
	} else {
		t.Fatalf("got %T, want *UnsatisfiedRequirements", err)
	}
	if len(unsatisfied.Requirements) != 1 {
		t.Errorf("got %d unsatisfied requirements, want 1", len(unsatisfied.Requirements))
	}
}

func TestStackedResolverEnvEarlierWins(t *testing.T) {
	stacked := NewStackedResolver(
		&fakeResolver{env: map[string]string{"X": "first"}},
		&fakeResolver{env: map[string]string{"X": "second", "Y": "second"}},
	)
	got := stacked.Env()
	want := map[string]string{"X": "first", "Y": "second"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Env() diff (-want +got):\n%s", diff)
	}
}

// fakeResolver claims requirements whose family is set in claims and
// records whether Install/Explain were ever called.
type fakeResolver struct {
	claims    map[string]bool
	env       map[string]string
	installed bool
}

func (f *fakeResolver) Install(reqs []requirement.Requirement) error {
	f.installed = true
	var unclaimed []requirement.Requirement
	for _, r := range reqs {
		if !f.claims[r.Family()] {
			unclaimed = append(unclaimed, r)
		}
	}
	if len(unclaimed) > 0 {
		return &UnsatisfiedRequirements{Requirements: unclaimed}
	}
	return nil
}

func (f *fakeResolver) Explain(reqs []requirement.Requirement) ([]string, error) { return nil, nil }
func (f *fakeResolver) Env() map[string]string                                   { return f.env }

func TestCPANResolverRunsCpanInstall(t *testing.T) {
	s := newRecordingSession(t)
	r := &CPANResolver{Session: s}
	if err := r.Install([]requirement.Requirement{&requirement.PerlModule{Module: "Foo::Bar"}}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	want := [][]string{{"cpan", "-i", "Foo::Bar"}}
	if diff := cmp.Diff(want, s.calls); diff != "" {
		t.Errorf("calls diff (-want +got):\n%s", diff)
	}
}

func TestNpmResolverMapsCommandToPackage(t *testing.T) {
	s := newRecordingSession(t)
	r := &NpmResolver{Session: s}
	if err := r.Install([]requirement.Requirement{&requirement.Binary{Name: "del-cli"}}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	want := [][]string{{"npm", "-g", "install", "del-cli"}}
	if diff := cmp.Diff(want, s.calls); diff != "" {
		t.Errorf("calls diff (-want +got):\n%s", diff)
	}
}

func TestNpmResolverLeavesUnknownBinaryUnsatisfied(t *testing.T) {
	s := newRecordingSession(t)
	r := &NpmResolver{Session: s}
	err := r.Install([]requirement.Requirement{&requirement.Binary{Name: "gcc"}})
	if _, ok := err.(*UnsatisfiedRequirements); !ok {
		t.Fatalf("got %v, want *UnsatisfiedRequirements", err)
	}
	if len(s.calls) != 0 {
		t.Errorf("expected no npm invocation, got %v", s.calls)
	}
}

func TestNpmResolverNodeModuleUsesTopLevelPackage(t *testing.T) {
	s := newRecordingSession(t)
	r := &NpmResolver{Session: s}
	if err := r.Install([]requirement.Requirement{requirement.NewNodeModule("left-pad/lib/util")}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	want := [][]string{{"npm", "-g", "install", "left-pad"}}
	if diff := cmp.Diff(want, s.calls); diff != "" {
		t.Errorf("calls diff (-want +got):\n%s", diff)
	}
}

func TestGoResolverSetsGOPATHWhenSystemWide(t *testing.T) {
	r := &GoResolver{UserLocal: false}
	env := r.Env()
	if env["GOPATH"] != "/usr/share/gocode" {
		t.Errorf("GOPATH = %q, want /usr/share/gocode", env["GOPATH"])
	}
	r.UserLocal = true
	if got := r.Env(); got != nil {
		t.Errorf("Env() with UserLocal = %v, want nil", got)
	}
}

// fakeFileIndex resolves paths from a fixed table, enough to exercise
// AptResolver's binary-to-package mapping.
type fakeFileIndex struct {
	byPath map[string][]string
}

func (f *fakeFileIndex) SearchFiles(_ context.Context, path string, regex, caseInsensitive bool) ([]string, error) {
	return f.byPath[path], nil
}

func TestAptResolverResolvesBinaryToPackage(t *testing.T) {
	s := newRecordingSession(t)
	idx := &fakeFileIndex{byPath: map[string][]string{"/usr/bin/gcc": {"gcc-12"}}}
	r := NewAptResolver(s, idx)
	if err := r.Install([]requirement.Requirement{&requirement.Binary{Name: "gcc"}}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	want := [][]string{{"apt", "-y", "install", "gcc-12"}}
	if diff := cmp.Diff(want, s.calls); diff != "" {
		t.Errorf("calls diff (-want +got):\n%s", diff)
	}
}

func TestAptResolverSkipsAlreadyInstalledBinary(t *testing.T) {
	s := newRecordingSession(t)
	s.existing["/usr/bin/gcc"] = true
	idx := &fakeFileIndex{}
	r := NewAptResolver(s, idx)
	if err := r.Install([]requirement.Requirement{&requirement.Binary{Name: "gcc"}}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(s.calls) != 0 {
		t.Errorf("expected no apt invocation, got %v", s.calls)
	}
}

func TestAptResolverTieBreaksOnShortestName(t *testing.T) {
	s := newRecordingSession(t)
	idx := &fakeFileIndex{byPath: map[string][]string{"/usr/bin/convert": {"imagemagick-6.q16", "im"}}}
	r := NewAptResolver(s, idx)
	if err := r.Install([]requirement.Requirement{&requirement.Binary{Name: "convert"}}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	want := [][]string{{"apt", "-y", "install", "im"}}
	if diff := cmp.Diff(want, s.calls); diff != "" {
		t.Errorf("calls diff (-want +got):\n%s", diff)
	}
}

func TestAptResolverUnresolvedBinaryIsUnsatisfied(t *testing.T) {
	s := newRecordingSession(t)
	idx := &fakeFileIndex{}
	r := NewAptResolver(s, idx)
	err := r.Install([]requirement.Requirement{&requirement.Binary{Name: "frobnicate"}})
	if _, ok := err.(*UnsatisfiedRequirements); !ok {
		t.Fatalf("got %v, want *UnsatisfiedRequirements", err)
	}
}

func TestDepServerClientUsesRemoteResolution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resolve-apt" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]string{"gcc-12"})
	}))
	defer srv.Close()

	s := newRecordingSession(t)
	c := NewDepServerClient(srv.URL, &AptManager{Session: s}, nil)
	if err := c.Install([]requirement.Requirement{&requirement.Binary{Name: "gcc"}}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	want := [][]string{{"apt", "-y", "install", "gcc-12"}}
	if diff := cmp.Diff(want, s.calls); diff != "" {
		t.Errorf("calls diff (-want +got):\n%s", diff)
	}
}

func TestDepServerClientFallsBackLocallyOnFamilyUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Reason", "family-unknown")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newRecordingSession(t)
	idx := &fakeFileIndex{byPath: map[string][]string{"/usr/bin/gcc": {"gcc-12"}}}
	local := NewAptResolver(s, idx)
	c := NewDepServerClient(srv.URL, &AptManager{Session: s}, local)
	if err := c.Install([]requirement.Requirement{&requirement.Binary{Name: "gcc"}}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	want := [][]string{{"apt", "-y", "install", "gcc-12"}}
	if diff := cmp.Diff(want, s.calls); diff != "" {
		t.Errorf("calls diff (-want +got):\n%s", diff)
	}
}

func TestDepServerClientWithoutFallbackReturnsUnsatisfied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newRecordingSession(t)
	c := NewDepServerClient(srv.URL, &AptManager{Session: s}, nil)
	err := c.Install([]requirement.Requirement{&requirement.Binary{Name: "gcc"}})
	if _, ok := err.(*UnsatisfiedRequirements); !ok {
		t.Fatalf("got %v, want *UnsatisfiedRequirements", err)
	}
}

func TestPopularityTieBreakerDefersWhenNoCandidateKnown(t *testing.T) {
	tb := PopularityTieBreaker(map[string]int{"foo": 3})
	if got := tb([]string{"bar", "baz"}); got != "" {
		t.Errorf("got %q, want empty deferral", got)
	}
}

func TestPopularityTieBreakerPicksHighestCount(t *testing.T) {
	tb := PopularityTieBreaker(map[string]int{"foo": 3, "bar": 9})
	if got, want := tb([]string{"foo", "bar"}), "bar"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNoAptPackageError(t *testing.T) {
	err := &NoAptPackage{Requirement: &requirement.PythonPackage{Package: "requests"}}
	if err.Error() == "" {
		t.Error("expected non-empty error message")
	}
}

func TestDepServerErrorUnwrap(t *testing.T) {
	err := &DepServerError{Inner: fmt.Errorf("boom")}
	if err.Unwrap() == nil {
		t.Error("expected Unwrap to return inner error")
	}
}
