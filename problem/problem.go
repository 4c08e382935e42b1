// Package problem represents a single classified build-log failure: a
// stable Kind tag (e.g. "missing-pkg-config-package") plus the
// structured attributes the matching log parser extracted (e.g. the
// module name and minimum version). It is the output of log
// classification and the input to problemconvert.
package problem

import "fmt"

// Problem is a classified build failure. Attrs holds parser-specific
// fields; accessor helpers below provide typed access for the fields
// problemconvert's converter table reads.
type Problem struct {
	Kind  string
	Attrs map[string]interface{}
}

func New(kind string, attrs map[string]interface{}) *Problem {
	return &Problem{Kind: kind, Attrs: attrs}
}

func (p *Problem) Error() string {
	return fmt.Sprintf("problem: %s %v", p.Kind, p.Attrs)
}

func (p *Problem) String() string { return p.Error() }

func (p *Problem) str(key string) string {
	v, ok := p.Attrs[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (p *Problem) strSlice(key string) []string {
	v, ok := p.Attrs[key]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, el := range s {
			if str, ok := el.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Path is the filesystem path a "missing-file" problem reported absent.
func (p *Problem) Path() string { return p.str("path") }

// Command is the executable a "command-missing" problem could not find.
func (p *Problem) Command() string { return p.str("command") }

// Module is the pkg-config/perl/go module name a problem names.
func (p *Problem) Module() string { return p.str("module") }

// MinimumVersion is the lowest acceptable version a problem names, if
// any.
func (p *Problem) MinimumVersion() string { return p.str("minimum_version") }

// Header is the missing C header path a "missing-c-header" problem
// names.
func (p *Problem) Header() string { return p.str("header") }

// Library is the missing library name a problem names.
func (p *Problem) Library() string { return p.str("library") }

// Filenames lists the candidate filenames a "missing-cmake-files"
// problem could be satisfied by any one of.
func (p *Problem) Filenames() []string { return p.strSlice("filenames") }

// Version is the version a problem's filenames should provide.
func (p *Problem) Version() string { return p.str("version") }

// PythonVersion is the interpreter implementation a python problem was
// observed under ("cpython3", "pypy", ...).
func (p *Problem) PythonVersion() string { return p.str("python_version") }

// Distribution is the PyPI distribution name a
// "missing-python-distribution" problem names.
func (p *Problem) Distribution() string { return p.str("distribution") }

// Package is the generic package name field several problem kinds use.
func (p *Problem) Package() string { return p.str("package") }

// Gem is the missing RubyGems gem name.
func (p *Problem) Gem() string { return p.str("gem") }

// Modules lists the Qt modules a "missing-qt-modules" problem names.
func (p *Problem) Modules() []string { return p.strSlice("modules") }

// Components lists the named components of a missing-cmake-components
// problem (e.g. Boost or KF5 component names).
func (p *Problem) Components() []string { return p.strSlice("components") }

// Deps lists the dependency strings of a missing-haskell-dependencies
// problem, each parseable by requirement.HaskellPackageFromString.
func (p *Problem) Deps() []string { return p.strSlice("deps") }

// Artifacts lists the "group:artifact[:kind]:version" coordinate
// strings of a missing-maven-artifacts problem.
func (p *Problem) Artifacts() []string { return p.strSlice("artifacts") }

// Crate is the missing crates.io crate name of a missing-cargo-crate
// problem.
func (p *Problem) Crate() string { return p.str("crate") }

// Relations holds the raw apt relation strings of an
// unsatisfied-apt-dependencies problem.
func (p *Problem) Relations() []string { return p.strSlice("relations") }

// PhpClass is the missing autoloadable PHP class name.
func (p *Problem) PhpClass() string { return p.str("php_class") }

// Name is the generic free-form name field several problem kinds use
// (vague dependency name, pytest config option name, ...).
func (p *Problem) Name() string { return p.str("name") }

// Extension is the missing PHP extension name.
func (p *Problem) Extension() string { return p.str("extension") }

// Classname is the missing JVM class name.
func (p *Problem) Classname() string { return p.str("classname") }

// Macro is the missing autoconf macro name.
func (p *Problem) Macro() string { return p.str("macro") }

// JDKPath/Filename together name a missing file inside a JDK install.
func (p *Problem) JDKPath() string { return p.str("jdk_path") }
func (p *Problem) Filename() string { return p.str("filename") }

// ContentType/Name (sprockets) together name a missing asset-pipeline
// file.
func (p *Problem) ContentType() string { return p.str("content_type") }

// Vcs lists the version control systems a
// "vcs-control-directory-needed" problem reports needing access to.
func (p *Problem) Vcs() []string { return p.strSlice("vcs") }

// Directory is the missing gnulib directory a problem names.
func (p *Problem) Directory() string { return p.str("directory") }

// Inc lists additional perl @INC entries a "missing-perl-module"
// problem was observed with.
func (p *Problem) Inc() []string { return p.strSlice("inc") }

// URL is the generic URL field several problem kinds use (missing XML
// entity, unknown certificate authority).
func (p *Problem) URL() string { return p.str("url") }

// Args lists the command-line arguments an
// "unsupported-pytest-arguments" problem was observed with.
func (p *Problem) Args() []string { return p.strSlice("args") }

// Fixture is the missing pytest fixture name.
func (p *Problem) Fixture() string { return p.str("fixture") }
