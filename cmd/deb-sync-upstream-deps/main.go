// Command deb-sync-upstream-deps reports (and, with --update, records
// into debian/control) the upstream-declared dependencies a build
// system's own manifest names, mapped to Debian package names. Grounded
// on ognibuild/debian/upstream_deps.py's get_project_wide_deps/main.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ognibuild/ognibuild/buildsystem"
	"github.com/ognibuild/ognibuild/fileindex"
	"github.com/ognibuild/ognibuild/fixloop/debian"
	"github.com/ognibuild/ognibuild/resolver"
	"github.com/ognibuild/ognibuild/session"
)

var (
	directory      = flag.String("directory", ".", "directory to run in (alias -d)")
	directoryShort = flag.String("d", "", "shorthand for -directory")
	update         = flag.Bool("update", false, "record the resolved build dependencies into debian/control")
	verbose        = flag.Bool("verbose", false, "be verbose")
)

func resolveDirectory() string {
	if *directoryShort != "" {
		return *directoryShort
	}
	return *directory
}

// projectWideDeps resolves bs's upstream-declared dependencies to apt
// package names, split by whether they apply to the build or test
// phase. Unresolvable dependencies are logged and skipped, mirroring
// get_project_wide_deps's "Unable to map upstream requirement" warning.
func projectWideDeps(apt *resolver.AptResolver, bs buildsystem.BuildSystem) (buildDeps, testDeps []string) {
	declared, err := bs.DeclaredDependencies()
	if err != nil {
		if err != buildsystem.ErrNotSupported {
			log.Printf("unable to obtain declared dependencies: %v", err)
		}
		return nil, nil
	}
	for _, dep := range declared {
		pkg, err := apt.ResolvePackageName(dep.Requirement)
		if err != nil {
			log.Printf("unable to map upstream requirement %v (kind %s) to a Debian package: %v", dep.Requirement, dep.Kind, err)
			continue
		}
		if *verbose {
			log.Printf("mapped %v (kind: %s) to %s", dep.Requirement, dep.Kind, pkg)
		}
		switch dep.Kind {
		case "build", "core":
			buildDeps = append(buildDeps, pkg)
		case "test":
			testDeps = append(testDeps, pkg)
		default:
			log.Printf("unknown dependency kind %q for %v", dep.Kind, dep.Requirement)
		}
	}
	return buildDeps, testDeps
}

func joinUnique(pkgs []string) string {
	seen := map[string]bool{}
	var out string
	for _, p := range pkgs {
		if seen[p] {
			continue
		}
		seen[p] = true
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}

func run() int {
	flag.Parse()

	dir := resolveDirectory()
	s := session.NewPlain()
	if err := s.Open(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer s.Close()
	s.Chdir(dir)

	apt := resolver.NewAptResolver(s, &fileindex.AptFileIndex{Session: s})
	systems := buildsystem.Detect(s, apt, nil, nil)
	if len(systems) == 0 {
		fmt.Fprintln(os.Stderr, "deb-sync-upstream-deps: no supported build tools found")
		return 1
	}

	var buildDeps, testDeps []string
	for _, bs := range systems {
		bd, td := projectWideDeps(apt, bs)
		buildDeps = append(buildDeps, bd...)
		testDeps = append(testDeps, td...)
	}

	if len(buildDeps) > 0 {
		fmt.Printf("Build-Depends: %s\n", joinUnique(buildDeps))
	}
	if len(testDeps) > 0 {
		fmt.Printf("Test-Depends: %s\n", joinUnique(testDeps))
	}

	if *update {
		tree := debian.NewLocalTree(dir)
		for _, pkg := range buildDeps {
			if _, err := debian.AddBuildDependency(tree, "", pkg, ""); err != nil {
				fmt.Fprintf(os.Stderr, "deb-sync-upstream-deps: adding %s: %v\n", pkg, err)
				return 1
			}
		}
	}
	return 0
}

func main() {
	os.Exit(run())
}
