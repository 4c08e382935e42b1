// Package debian adapts the generic fix loop to Debian packaging: its
// fixers persist a missing build requirement as a debian/control or
// debian/tests/control dependency stanza edit, committed through a
// narrow VCSTree interface, rather than installing anything directly.
// Grounded on ognibuild/debian/fix_build.py's
// add_build_dependency/add_test_dependency/BuildDependencyContext.
package debian

import (
	"bytes"
	"fmt"
	"strings"
)

// field is a single "Name: value" control-file field; continuation
// lines are folded into value with a single space, which loses the
// original comma-per-line layout debmutate's format-preserving editor
// keeps. No such format-preserving deb822 editor exists in the Go
// example pack, and the narrow VCSTree interface this package uses
// deliberately excludes that machinery (it belongs to the
// changelog/VCS-manipulation concern the spec scopes out beyond narrow
// interfaces), so fields are folded and written back on a single line
// instead.
type field struct {
	name  string
	value string
}

type paragraph struct {
	fields []field
}

func (p *paragraph) get(name string) (string, bool) {
	for _, f := range p.fields {
		if strings.EqualFold(f.name, name) {
			return f.value, true
		}
	}
	return "", false
}

func (p *paragraph) set(name, value string) {
	for i, f := range p.fields {
		if strings.EqualFold(f.name, name) {
			p.fields[i].value = value
			return
		}
	}
	p.fields = append(p.fields, field{name: name, value: value})
}

type controlFile struct {
	paragraphs []*paragraph
}

// parseControl parses a deb822-style control file into an ordered list
// of paragraphs. Comments ("#"-prefixed lines) are dropped.
func parseControl(data []byte) *controlFile {
	cf := &controlFile{}
	cur := &paragraph{}
	flush := func() {
		if len(cur.fields) > 0 {
			cf.paragraphs = append(cf.paragraphs, cur)
		}
		cur = &paragraph{}
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(cur.fields) > 0 {
			last := &cur.fields[len(cur.fields)-1]
			cont := strings.TrimSpace(line)
			if cont == "." {
				continue
			}
			if last.value == "" {
				last.value = cont
			} else {
				last.value += " " + cont
			}
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		cur.fields = append(cur.fields, field{
			name:  strings.TrimSpace(line[:idx]),
			value: strings.TrimSpace(line[idx+1:]),
		})
	}
	flush()
	return cf
}

// render writes the paragraphs back out, one field per line, blank
// lines between paragraphs.
func (cf *controlFile) render() []byte {
	var buf bytes.Buffer
	for i, p := range cf.paragraphs {
		if i > 0 {
			buf.WriteString("\n")
		}
		for _, f := range p.fields {
			fmt.Fprintf(&buf, "%s: %s\n", f.name, f.value)
		}
	}
	return buf.Bytes()
}

// depEntryName returns the bare package name a dependency-list entry
// names, stripping any version constraint, architecture restriction, or
// build-profile annotation (e.g. "foo (>= 1.0) [amd64]" -> "foo").
func depEntryName(entry string) string {
	entry = strings.TrimSpace(entry)
	for _, sep := range []byte{' ', '('} {
		if i := strings.IndexByte(entry, sep); i >= 0 {
			entry = entry[:i]
		}
	}
	return entry
}

func splitDepList(deps string) []string {
	if strings.TrimSpace(deps) == "" {
		return nil
	}
	parts := strings.Split(deps, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ensureSomeVersion adds pkg to deps (a comma-separated dependency
// list) with no version constraint, unless some entry already names
// pkg. Mirrors debmutate.control.ensure_some_version.
func ensureSomeVersion(deps, pkg string) string {
	entries := splitDepList(deps)
	for _, e := range entries {
		if depEntryName(e) == pkg {
			return deps
		}
	}
	entries = append(entries, pkg)
	return strings.Join(entries, ", ")
}

// ensureMinimumVersion adds or upgrades pkg's entry in deps to require
// at least minVersion. If pkg is already present without a "(>=
// ...)" constraint, or with one, its entry is overwritten outright
// rather than compared numerically -- this package does not carry a
// Debian version-comparison routine (none of the examples in this pack
// implement dpkg's version ordering), so a fixer re-running with a
// higher minimum simply replaces the previous constraint.
func ensureMinimumVersion(deps, pkg, minVersion string) string {
	entries := splitDepList(deps)
	want := fmt.Sprintf("%s (>= %s)", pkg, minVersion)
	for i, e := range entries {
		if depEntryName(e) == pkg {
			entries[i] = want
			return strings.Join(entries, ", ")
		}
	}
	entries = append(entries, want)
	return strings.Join(entries, ", ")
}
