// Package problemconvert maps a classified problem.Problem to the
// abstract requirement.Requirement(s) that would resolve it, via a
// static table keyed on problem kind. Some entries are gated on a
// minimum build-log-parser version: if the parser that produced the
// problem is older than the entry requires, the entry is skipped (the
// problem shape it expects may not be populated yet).
package problemconvert

import (
	"log"

	"github.com/ognibuild/ognibuild/problem"
	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/versionutil"
)

// converterFunc maps a problem to a requirement, or returns nil if the
// problem's fields don't actually resolve to one (e.g. an unrecognized
// pytest fixture name).
type converterFunc func(p *problem.Problem) requirement.Requirement

type converterEntry struct {
	kind              string
	convert           converterFunc
	minParserVersion  string
}

var pytestFixtureToPlugin = map[string]string{
	"aiohttp_client":          "aiohttp",
	"aiohttp_client_cls":      "aiohttp",
	"aiohttp_server":          "aiohttp",
	"aiohttp_raw_server":      "aiohttp",
	"mock":                    "mock",
	"benchmark":               "benchmark",
	"event_loop":              "asyncio",
	"unused_tcp_port":         "asyncio",
	"unused_udp_port":         "asyncio",
	"unused_tcp_port_factory": "asyncio",
	"unused_udp_port_factory": "asyncio",
}

func mapPytestArgumentsToPlugin(args []string) requirement.Requirement {
	for _, arg := range args {
		if len(arg) >= 5 && arg[:5] == "--cov" {
			return requirement.NewPytestPlugin("cov")
		}
	}
	return nil
}

func mapPytestConfigOptionToPlugin(name string) requirement.Requirement {
	if name == "asyncio_mode" {
		return requirement.NewPytestPlugin("asyncio")
	}
	return nil
}

func mapPytestFixtureToPlugin(fixture string) requirement.Requirement {
	plugin, ok := pytestFixtureToPlugin[fixture]
	if !ok {
		return nil
	}
	return requirement.NewPytestPlugin(plugin)
}

func oneOfCMakefiles(p *problem.Problem) requirement.Requirement {
	filenames := p.Filenames()
	elements := make([]requirement.Requirement, len(filenames))
	for i, fn := range filenames {
		elements[i] = &requirement.CMakefile{Filename: fn, Version: p.Version()}
	}
	return &requirement.OneOf{Elements: elements}
}

// table is the direct port of PROBLEM_CONVERTERS from
// buildlog_converters.py, in the same order (order matters only in that
// Convert returns the first match; the table is keyed uniquely by kind
// so order is otherwise immaterial).
var table = []converterEntry{
	{"missing-file", func(p *problem.Problem) requirement.Requirement { return requirement.NewPath(p.Path()) }, ""},
	{"command-missing", func(p *problem.Problem) requirement.Requirement { return &requirement.Binary{Name: p.Command()} }, ""},
	{"valac-cannot-compile", func(p *problem.Problem) requirement.Requirement {
		return &requirement.VagueDependency{Name: "valac"}
	}, "0.0.27"},
	{"missing-cmake-files", oneOfCMakefiles, ""},
	{"missing-command-or-build-file", func(p *problem.Problem) requirement.Requirement { return &requirement.Binary{Name: p.Command()} }, ""},
	{"missing-pkg-config-package", func(p *problem.Problem) requirement.Requirement {
		return &requirement.PkgConfig{Module: p.Module(), MinimumVersion: p.MinimumVersion()}
	}, ""},
	{"missing-c-header", func(p *problem.Problem) requirement.Requirement { return requirement.NewCHeader(p.Header()) }, ""},
	{"missing-introspection-typelib", func(p *problem.Problem) requirement.Requirement {
		return requirement.NewIntrospectionTypelib(p.Library())
	}, ""},
	{"missing-python-module", func(p *problem.Problem) requirement.Requirement {
		return &requirement.PythonModule{Module: p.Module(), PythonVersion: p.PythonVersion(), MinimumVersion: p.MinimumVersion()}
	}, ""},
	{"missing-python-distribution", func(p *problem.Problem) requirement.Requirement {
		return &requirement.PythonPackage{Package: p.Distribution(), PythonVersion: p.PythonVersion(), MinimumVersion: p.MinimumVersion()}
	}, ""},
	{"javascript-runtime-missing", func(p *problem.Problem) requirement.Requirement { return requirement.NewJavaScriptRuntime() }, ""},
	{"missing-node-module", func(p *problem.Problem) requirement.Requirement { return requirement.NewNodeModule(p.Module()) }, ""},
	{"missing-node-package", func(p *problem.Problem) requirement.Requirement { return requirement.NewNodePackage(p.Package()) }, ""},
	{"missing-ruby-gem", func(p *problem.Problem) requirement.Requirement {
		return &requirement.RubyGem{Gem: p.Gem(), MinimumVersion: p.Version()}
	}, ""},
	{"missing-qt-modules", func(p *problem.Problem) requirement.Requirement {
		modules := p.Modules()
		if len(modules) == 0 {
			return nil
		}
		return requirement.NewQtModule(modules[0])
	}, "0.0.27"},
	{"missing-php-class", func(p *problem.Problem) requirement.Requirement { return requirement.NewPhpClass(p.PhpClass()) }, ""},
	{"missing-r-package", func(p *problem.Problem) requirement.Requirement {
		return &requirement.RPackage{Package: p.Package(), MinimumVersion: p.MinimumVersion()}
	}, ""},
	{"missing-vague-dependency", func(p *problem.Problem) requirement.Requirement {
		return &requirement.VagueDependency{Name: p.Name(), MinimumVersion: p.MinimumVersion()}
	}, ""},
	{"missing-c#-compiler", func(p *problem.Problem) requirement.Requirement { return &requirement.Binary{Name: "msc"} }, ""},
	{"missing-gnome-common", func(p *problem.Problem) requirement.Requirement { return requirement.NewGnomeCommon() }, ""},
	{"missing-jdk", func(p *problem.Problem) requirement.Requirement { return requirement.NewJDK() }, ""},
	{"missing-jre", func(p *problem.Problem) requirement.Requirement { return requirement.NewJRE() }, ""},
	{"missing-qt", func(p *problem.Problem) requirement.Requirement { return requirement.NewQT() }, ""},
	{"missing-x11", func(p *problem.Problem) requirement.Requirement { return requirement.NewX11() }, ""},
	{"missing-libtool", func(p *problem.Problem) requirement.Requirement { return requirement.NewLibtool() }, ""},
	{"missing-php-extension", func(p *problem.Problem) requirement.Requirement { return requirement.NewPHPExtension(p.Extension()) }, ""},
	{"missing-rust-compiler", func(p *problem.Problem) requirement.Requirement { return &requirement.Binary{Name: "rustc"} }, ""},
	{"missing-java-class", func(p *problem.Problem) requirement.Requirement { return requirement.NewJavaClass(p.Classname()) }, ""},
	{"missing-go-package", func(p *problem.Problem) requirement.Requirement { return requirement.NewGoPackage(p.Package()) }, ""},
	{"missing-autoconf-macro", func(p *problem.Problem) requirement.Requirement { return requirement.NewAutoconfMacro(p.Macro()) }, ""},
	{"missing-vala-package", func(p *problem.Problem) requirement.Requirement { return requirement.NewValaPackage(p.Package()) }, ""},
	{"missing-lua-module", func(p *problem.Problem) requirement.Requirement { return requirement.NewLuaModule(p.Module()) }, ""},
	{"missing-jdk-file", func(p *problem.Problem) requirement.Requirement {
		return &requirement.JDKFile{JDKPath: p.JDKPath(), Filename: p.Filename()}
	}, ""},
	{"missing-ruby-file", func(p *problem.Problem) requirement.Requirement { return requirement.NewRubyFile(p.Filename()) }, ""},
	{"missing-library", func(p *problem.Problem) requirement.Requirement { return requirement.NewLibrary(p.Library()) }, ""},
	{"missing-sprockets-file", func(p *problem.Problem) requirement.Requirement {
		return &requirement.SprocketsFile{ContentType: p.ContentType(), Name: p.Name()}
	}, ""},
	{"dh-addon-load-failure", func(p *problem.Problem) requirement.Requirement { return requirement.NewDhAddon(p.Path()) }, ""},
	{"missing-xml-entity", func(p *problem.Problem) requirement.Requirement { return requirement.NewXmlEntity(p.URL()) }, ""},
	{"missing-gnulib-directory", func(p *problem.Problem) requirement.Requirement {
		return requirement.NewGnulibDirectory(p.Directory())
	}, ""},
	{"vcs-control-directory-needed", func(p *problem.Problem) requirement.Requirement {
		return &requirement.VcsControlDirectoryAccess{VCS: p.Vcs()}
	}, ""},
	{"missing-static-library", func(p *problem.Problem) requirement.Requirement {
		return &requirement.StaticLibrary{Library: p.Library(), Filename: p.Filename()}
	}, ""},
	{"missing-perl-module", func(p *problem.Problem) requirement.Requirement {
		return &requirement.PerlModule{Module: p.Module(), Filename: p.Filename(), Inc: p.Inc()}
	}, ""},
	{"unknown-certificate-authority", func(p *problem.Problem) requirement.Requirement {
		return requirement.NewCertificateAuthority(p.URL())
	}, ""},
	{"unsupported-pytest-arguments", func(p *problem.Problem) requirement.Requirement {
		return mapPytestArgumentsToPlugin(p.Args())
	}, "0.0.27"},
	{"unsupported-pytest-config-option", func(p *problem.Problem) requirement.Requirement {
		return mapPytestConfigOptionToPlugin(p.Name())
	}, "0.0.34"},
	{"missing-pytest-fixture", func(p *problem.Problem) requirement.Requirement {
		return mapPytestFixtureToPlugin(p.Fixture())
	}, ""},
}

var tableIndex = func() map[string]converterEntry {
	m := make(map[string]converterEntry, len(table))
	for _, e := range table {
		m[e.kind] = e
	}
	return m
}()

// Convert looks up p.Kind in the converter table and applies it,
// returning (nil, false) if there is no entry for the kind, the entry
// is gated behind a parserVersion newer than the one supplied, or the
// converter itself determined no requirement applies (e.g. an
// unrecognized pytest fixture).
func Convert(p *problem.Problem, parserVersion string) (requirement.Requirement, bool) {
	entry, ok := tableIndex[p.Kind]
	if !ok {
		return nil, false
	}
	if entry.minParserVersion != "" && parserVersion != "" && !versionutil.AtLeast(parserVersion, entry.minParserVersion) {
		log.Printf("skipping converter for %q: requires parser >= %s, have %s", p.Kind, entry.minParserVersion, parserVersion)
		return nil, false
	}
	req := entry.convert(p)
	if req == nil {
		return nil, false
	}
	return req, true
}
