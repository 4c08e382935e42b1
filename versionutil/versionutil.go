// Package versionutil provides small helpers for comparing and
// manipulating the loosely dotted-numeric version strings ognibuild
// passes around (parser minimum-versions, requirement minimum
// versions). These are not always valid semver (many are bare
// "X.Y.Z" or even "X.Y"), so golang.org/x/mod/semver's strict "vX.Y.Z"
// requirement does not fit; Compare below is a direct, intentionally
// small port of the dotted-integer comparison ognibuild relies on.
package versionutil

import (
	"regexp"
	"strconv"
	"strings"
)

// Compare returns -1, 0, or 1 according to whether a is less than,
// equal to, or greater than b, comparing corresponding dot-separated
// numeric components in turn and treating a missing trailing component
// as 0 (so "1.2" == "1.2.0").
func Compare(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(as) {
			av = atoi(as[i])
		}
		if i < len(bs) {
			bv = atoi(bs[i])
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// AtLeast reports whether v >= minimum.
func AtLeast(v, minimum string) bool { return Compare(v, minimum) >= 0 }

func atoi(s string) int {
	// version components occasionally carry suffixes like "27-dev";
	// take the leading digit run and ignore the rest.
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// AddSuffix appends (or bumps) a build-identifying suffix on a Debian
// package version, ported from debian/build.py's version_add_suffix. A
// Debian version is "upstream_version[-debian_revision]"; the suffix is
// applied to the debian_revision if present, otherwise to the upstream
// version. If the target component already ends in suffix followed by
// a run of digits, that numeric tail is incremented; otherwise
// suffix+"1" is appended fresh.
func AddSuffix(version, suffix string) string {
	upstream, revision, hasRevision := splitDebianVersion(version)
	if hasRevision {
		revision = bumpSuffixed(revision, suffix)
		return upstream + "-" + revision
	}
	return bumpSuffixed(upstream, suffix)
}

func splitDebianVersion(version string) (upstream, revision string, hasRevision bool) {
	idx := strings.LastIndexByte(version, '-')
	if idx < 0 {
		return version, "", false
	}
	return version[:idx], version[idx+1:], true
}

func bumpSuffixed(component, suffix string) string {
	re := regexp.MustCompile(`^(.*)(` + regexp.QuoteMeta(suffix) + `)([0-9]+)$`)
	if m := re.FindStringSubmatch(component); m != nil {
		n, _ := strconv.Atoi(m[3])
		return m[1] + m[2] + strconv.Itoa(n+1)
	}
	return component + suffix + "1"
}
