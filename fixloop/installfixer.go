package fixloop

import (
	"errors"

	"github.com/ognibuild/ognibuild/problem"
	"github.com/ognibuild/ognibuild/problemconvert"
	"github.com/ognibuild/ognibuild/requirement"
)

// Resolver installs (or explains how to install) a set of abstract
// requirements. github.com/ognibuild/ognibuild/resolver's types satisfy
// this interface structurally; it is declared narrowly here so fixloop
// does not need to import the full resolver package.
type Resolver interface {
	Install(reqs []requirement.Requirement) error
	Explain(reqs []requirement.Requirement) ([]string, error)
}

// ErrUnsatisfiedRequirements is returned by a Resolver when it cannot
// install the given requirements at all.
var ErrUnsatisfiedRequirements = errors.New("fixloop: unsatisfied requirements")

// ExplainInstallError is raised by ExplainInstallFixer instead of
// installing anything: it carries the shell commands a human would run.
type ExplainInstallError struct {
	Commands []string
}

func (e *ExplainInstallError) Error() string {
	return "would run: " + joinCommands(e.Commands)
}

func joinCommands(cmds []string) string {
	out := ""
	for i, c := range cmds {
		if i > 0 {
			out += "; "
		}
		out += c
	}
	return out
}

// ParserVersion, when set, gates problemconvert entries behind a
// minimum build-log-parser version the same way problemconvert.Convert
// does; InstallFixer/ExplainInstallFixer use it for every lookup.
type problemToRequirement struct {
	parserVersion string
}

func (c problemToRequirement) convert(p *problem.Problem) (requirement.Requirement, bool) {
	return problemconvert.ConvertWithFallback(p, c.parserVersion)
}

// InstallFixer resolves a problem by converting it to a requirement and
// installing it via Resolver.
type InstallFixer struct {
	Resolver      Resolver
	ParserVersion string
}

func NewInstallFixer(r Resolver) *InstallFixer { return &InstallFixer{Resolver: r} }

func (f *InstallFixer) CanFix(p *problem.Problem) bool {
	_, ok := problemToRequirement{f.ParserVersion}.convert(p)
	return ok
}

func (f *InstallFixer) Fix(p *problem.Problem, _ Context) (bool, error) {
	req, ok := problemToRequirement{f.ParserVersion}.convert(p)
	if !ok {
		return false, nil
	}
	if err := f.Resolver.Install([]requirement.Requirement{req}); err != nil {
		if errors.Is(err, ErrUnsatisfiedRequirements) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExplainInstallFixer never installs anything: on a fixable problem it
// raises ExplainInstallError describing the commands a human would run.
type ExplainInstallFixer struct {
	Resolver      Resolver
	ParserVersion string
}

func NewExplainInstallFixer(r Resolver) *ExplainInstallFixer { return &ExplainInstallFixer{Resolver: r} }

func (f *ExplainInstallFixer) CanFix(p *problem.Problem) bool {
	_, ok := problemToRequirement{f.ParserVersion}.convert(p)
	return ok
}

func (f *ExplainInstallFixer) Fix(p *problem.Problem, _ Context) (bool, error) {
	req, ok := problemToRequirement{f.ParserVersion}.convert(p)
	if !ok {
		return false, nil
	}
	explanations, err := f.Resolver.Explain([]requirement.Requirement{req})
	if err != nil {
		return false, err
	}
	if len(explanations) == 0 {
		return false, nil
	}
	return false, &ExplainInstallError{Commands: explanations}
}

// InstallMissingRequirements installs every requirement in reqs that
// metFn reports as not already met. If explain is true, nothing is
// installed; instead an ExplainInstallError (or
// ErrUnsatisfiedRequirements, if the resolver has no explanation
// either) is returned describing what would be done.
func InstallMissingRequirements(resolver Resolver, reqs []requirement.Requirement, metFn func(requirement.Requirement) (bool, error), explain bool) error {
	var missing []requirement.Requirement
	for _, req := range reqs {
		ok, err := metFn(req)
		if err != nil || !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if explain {
		commands, err := resolver.Explain(missing)
		if err != nil {
			return err
		}
		if len(commands) == 0 {
			return ErrUnsatisfiedRequirements
		}
		return &ExplainInstallError{Commands: commands}
	}
	return resolver.Install(missing)
}
