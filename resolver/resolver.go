// Package resolver implements the install side of the fix loop: turning
// a batch of abstract Requirements into installed packages, by one of
// several strategies (a language-native package manager, apt, or a
// remote dep-server). Grounded on ognibuild/resolver/__init__.py.
package resolver

import (
	"fmt"
	"strings"

	"github.com/ognibuild/ognibuild/fixloop"
	"github.com/ognibuild/ognibuild/requirement"
)

// Resolver installs a batch of requirements, or explains how it would.
// Both fixloop.Resolver and buildsystem.Resolver are satisfied
// structurally by every concrete type in this package.
type Resolver interface {
	Install(reqs []requirement.Requirement) error
	Explain(reqs []requirement.Requirement) ([]string, error)
	// Env returns environment variables that should be set for build
	// actions run after this resolver has installed its requirements
	// (e.g. GOPATH for the Go resolver).
	Env() map[string]string
}

// UnsatisfiedRequirements is returned by a Resolver's Install when some
// of the requirements it was given are outside the families it knows how
// to install; the caller (typically StackedResolver) can hand the
// remainder to another Resolver.
type UnsatisfiedRequirements struct {
	Requirements []requirement.Requirement
}

func (e *UnsatisfiedRequirements) Error() string {
	names := make([]string, len(e.Requirements))
	for i, r := range e.Requirements {
		names[i] = r.String()
	}
	return "resolver: unsatisfied requirements: " + strings.Join(names, ", ")
}

// Is makes errors.Is(err, fixloop.ErrUnsatisfiedRequirements) match, so
// fixloop's InstallFixer treats an unsatisfied install as a declined fix.
func (e *UnsatisfiedRequirements) Is(target error) bool {
	return target == fixloop.ErrUnsatisfiedRequirements
}

// StackedResolver tries each of Subs in order, handing the remaining
// unsatisfied requirements from one to the next; it succeeds once every
// requirement was claimed by some sub-resolver.
type StackedResolver struct {
	Subs []Resolver
}

func NewStackedResolver(subs ...Resolver) *StackedResolver {
	return &StackedResolver{Subs: subs}
}

func (s *StackedResolver) Install(reqs []requirement.Requirement) error {
	for _, sub := range s.Subs {
		err := sub.Install(reqs)
		if err == nil {
			return nil
		}
		unsatisfied, ok := err.(*UnsatisfiedRequirements)
		if !ok {
			return err
		}
		reqs = unsatisfied.Requirements
	}
	if len(reqs) > 0 {
		return &UnsatisfiedRequirements{Requirements: reqs}
	}
	return nil
}

func (s *StackedResolver) Explain(reqs []requirement.Requirement) ([]string, error) {
	var out []string
	for _, sub := range s.Subs {
		lines, err := sub.Explain(reqs)
		if err != nil {
			return nil, err
		}
		out = append(out, lines...)
	}
	return out, nil
}

// Env returns the union of every sub-resolver's environment, with
// earlier resolvers in Subs overriding later ones -- the Python
// implementation iterates its subs in reverse so the first resolver
// wins, which this replicates by applying later subs first.
func (s *StackedResolver) Env() map[string]string {
	ret := map[string]string{}
	for i := len(s.Subs) - 1; i >= 0; i-- {
		for k, v := range s.Subs[i].Env() {
			ret[k] = v
		}
	}
	return ret
}

func (s *StackedResolver) String() string {
	parts := make([]string, len(s.Subs))
	for i, sub := range s.Subs {
		parts[i] = fmt.Sprintf("%v", sub)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
