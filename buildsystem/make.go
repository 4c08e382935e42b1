package buildsystem

import (
	"errors"
	"regexp"

	"github.com/ognibuild/ognibuild"
	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/session"
)

// Make drives an autotools/Makefile-based project, recovering from a
// handful of well-known "make dist"/"./autogen.sh" failure shapes
// before giving up to the generic fix loop.
type Make struct{ common }

func (m *Make) setup() error {
	if m.Session.Exists("Makefile.PL") && !m.Session.Exists("Makefile") {
		if err := m.Resolver.Install([]requirement.Requirement{binaryPkg("perl")}); err != nil {
			return err
		}
		if err := m.run([]string{"perl", "Makefile.PL"}); err != nil {
			return err
		}
	}

	if !m.Session.Exists("Makefile") && !m.Session.Exists("configure") {
		switch {
		case m.Session.Exists("autogen.sh"):
			interpreter, err := ognibuild.ShebangBinary(m.Session.ExternalPath("autogen.sh"))
			if err != nil {
				return err
			}
			if interpreter == "" {
				if err := m.run([]string{"/bin/sh", "./autogen.sh"}); err != nil {
					return err
				}
			}
			err = m.run([]string{"./autogen.sh"})
			var uerr *ognibuild.UnidentifiedError
			if errors.As(err, &uerr) && containsLine(uerr.Lines, "Gnulib not yet bootstrapped; run ./bootstrap instead.\n") {
				if err := m.run([]string{"./bootstrap"}); err != nil {
					return err
				}
				return m.run([]string{"./autogen.sh"})
			}
			return err
		case m.Session.Exists("configure.ac") || m.Session.Exists("configure.in"):
			if err := m.Resolver.Install([]requirement.Requirement{
				binaryPkg("autoconf"), binaryPkg("automake"), binaryPkg("gettext"),
				binaryPkg("libtool"), binaryPkg("gnu-standards"),
			}); err != nil {
				return err
			}
			if err := m.run([]string{"autoreconf", "-i"}); err != nil {
				return err
			}
		}
	}

	if !m.Session.Exists("Makefile") && m.Session.Exists("configure") {
		return m.Session.CheckCall([]string{"./configure"}, session.RunOptions{})
	}
	return nil
}

func (m *Make) Dist() error {
	if err := m.setup(); err != nil {
		return err
	}
	if err := m.Resolver.Install([]requirement.Requirement{binaryPkg("make")}); err != nil {
		return err
	}
	return m.dist()
}

var (
	reMissingMakeInc  = regexp.MustCompile(`Makefile:[0-9]+: \*\*\* Missing 'Make\.inc' Run '\./configure \[options\]' and retry\.  Stop\.\n`)
	reMissingManifest = regexp.MustCompile(`Problem opening MANIFEST: No such file or directory at .* line [0-9]+\.`)
)

func (m *Make) dist() error {
	err := m.run([]string{"make", "dist"})
	var uerr *ognibuild.UnidentifiedError
	if !errors.As(err, &uerr) {
		return err
	}
	switch {
	case containsLine(uerr.Lines, "make: *** No rule to make target 'dist'.  Stop.\n"),
		containsLine(uerr.Lines, "make[1]: *** No rule to make target 'dist'. Stop.\n"):
		return nil
	case containsLine(uerr.Lines, "Reconfigure the source tree (via './config' or 'perl Configure'), please.\n"):
		if err := m.run([]string{"./config"}); err != nil {
			return err
		}
		return m.run([]string{"make", "dist"})
	case containsLine(uerr.Lines, "Please try running 'make manifest' and then run 'make dist' again.\n"):
		if err := m.run([]string{"make", "manifest"}); err != nil {
			return err
		}
		return m.run([]string{"make", "dist"})
	case containsLine(uerr.Lines, "Please run ./configure first\n"):
		if err := m.run([]string{"./configure"}); err != nil {
			return err
		}
		return m.run([]string{"make", "dist"})
	case anyLineMatches(uerr.Lines, reMissingMakeInc):
		if err := m.run([]string{"./configure"}); err != nil {
			return err
		}
		return m.run([]string{"make", "dist"})
	case anyLineMatches(uerr.Lines, reMissingManifest):
		if err := m.run([]string{"make", "manifest"}); err != nil {
			return err
		}
		return m.run([]string{"make", "dist"})
	default:
		return err
	}
}

func containsLine(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}

func anyLineMatches(lines []string, re *regexp.Regexp) bool {
	for _, l := range lines {
		if re.MatchString(l) {
			return true
		}
	}
	return false
}
