// Package fixloop implements the failure-driven repair loop: run a
// command, and on failure, classify the log, convert the identified
// problem to a Requirement, ask a BuildFixer to resolve it, and retry --
// stopping when a retry reaches success, the same problem recurs
// without progress, or no fixer can address the problem at all.
package fixloop

import (
	"log"

	"github.com/ognibuild/ognibuild"
	"github.com/ognibuild/ognibuild/problem"
	"github.com/ognibuild/ognibuild/session"
)

// Classifier turns the tee-captured output lines of a failed command
// into a Problem, or reports that the failure could not be classified.
// It stands in for the external log-classification library
// (buildlog_consultant) that ognibuild calls out to.
type Classifier func(lines []string) (p *problem.Problem, matchLineno int, matchLine string, ok bool)

// Context is passed to every BuildFixer attempt; it carries whatever
// state a fixer needs to make durable changes (e.g. a VCS tree to
// commit dependency additions to). The debian-specific fixloop variant
// supplies a richer Context through the same interface.
type Context interface {
	// AddDependency records that package satisfies req, for fixers
	// that persist dependency metadata (e.g. debian/control). Returns
	// whether a change was made.
	AddDependency(req interface{}) (bool, error)
}

// BuildFixer attempts to resolve a single classified Problem.
type BuildFixer interface {
	CanFix(p *problem.Problem) bool
	Fix(p *problem.Problem, ctx Context) (bool, error)
}

// Fix applies f if it claims the problem, matching the
// can_fix-then-_fix two-step of the Python BuildFixer base class.
func Fix(f BuildFixer, p *problem.Problem, ctx Context) (bool, error) {
	if !f.CanFix(p) {
		return false, nil
	}
	return f.Fix(p, ctx)
}

// problemKey identifies a problem for the non-progress cycle check:
// two problems of the same kind with the same attributes are
// considered the same recurring failure.
func problemKey(p *problem.Problem) string {
	return p.Error()
}

// RunWithBuildFixers runs argv in s repeatedly, attempting to resolve
// each classified failure with one of fixers, until the command
// succeeds, the same problem recurs (no progress was made), or no
// fixer addresses the current problem. Mirrors run_with_build_fixer /
// resolve_error.
func RunWithBuildFixers(s session.Session, argv []string, classify Classifier, fixers []BuildFixer, ctx Context) error {
	var fixedErrors []string
	for {
		retcode, lines, err := session.RunWithTee(s, argv, session.RunOptions{})
		if err != nil {
			return err
		}
		if retcode == 0 {
			return nil
		}
		p, lineno, line, ok := classify(lines)
		if !ok {
			log.Printf("build failed with unidentified error, giving up")
			return &ognibuild.UnidentifiedError{Retcode: retcode, Argv: argv, Lines: lines}
		}
		if p == nil {
			return &ognibuild.UnidentifiedError{
				Retcode: retcode, Argv: argv, Lines: lines,
				Secondary: &ognibuild.SecondaryError{Lineno: lineno, Line: line},
			}
		}

		log.Printf("identified error: %v", p)
		key := problemKey(p)
		for _, fixed := range fixedErrors {
			if fixed == key {
				log.Printf("failed to resolve error %v, it persisted. Giving up.", p)
				return &ognibuild.DetailedFailure{Retcode: retcode, Argv: argv, Err: p}
			}
		}
		resolved, err := resolveError(p, fixers, ctx)
		if err != nil {
			return err
		}
		if !resolved {
			log.Printf("failed to find resolution for error %v. Giving up.", p)
			return &ognibuild.DetailedFailure{Retcode: retcode, Argv: argv, Err: p}
		}
		fixedErrors = append(fixedErrors, key)
	}
}

func resolveError(p *problem.Problem, fixers []BuildFixer, ctx Context) (bool, error) {
	var relevant []BuildFixer
	for _, f := range fixers {
		if f.CanFix(p) {
			relevant = append(relevant, f)
		}
	}
	if len(relevant) == 0 {
		log.Printf("no fixer found for %v", p)
		return false, nil
	}
	for _, f := range relevant {
		log.Printf("attempting to use fixer %T to address %v", f, p)
		made, err := f.Fix(p, ctx)
		if err != nil {
			return false, err
		}
		if made {
			return true, nil
		}
	}
	return false, nil
}
