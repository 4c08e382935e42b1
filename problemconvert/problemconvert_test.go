package problemconvert

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ognibuild/ognibuild/problem"
	"github.com/ognibuild/ognibuild/requirement"
)

func TestConvert(t *testing.T) {
	for _, test := range []struct {
		desc          string
		problem       *problem.Problem
		parserVersion string
		want          requirement.Requirement
		wantOK        bool
	}{
		{
			desc:    "missing file",
			problem: problem.New("missing-file", map[string]interface{}{"path": "/usr/bin/foo"}),
			wantOK:  true,
			want:    requirement.NewPath("/usr/bin/foo"),
		},
		{
			desc:    "missing pkg-config package",
			problem: problem.New("missing-pkg-config-package", map[string]interface{}{"module": "glib-2.0", "minimum_version": "2.50"}),
			wantOK:  true,
			want:    &requirement.PkgConfig{Module: "glib-2.0", MinimumVersion: "2.50"},
		},
		{
			desc:          "version gated entry below minimum is skipped",
			problem:       problem.New("valac-cannot-compile", nil),
			parserVersion: "0.0.10",
			wantOK:        false,
		},
		{
			desc:          "version gated entry at minimum succeeds",
			problem:       problem.New("valac-cannot-compile", nil),
			parserVersion: "0.0.27",
			wantOK:        true,
			want:          &requirement.VagueDependency{Name: "valac"},
		},
		{
			desc:    "unknown kind",
			problem: problem.New("totally-unknown-problem", nil),
			wantOK:  false,
		},
		{
			desc:    "unrecognized pytest fixture yields no requirement",
			problem: problem.New("missing-pytest-fixture", map[string]interface{}{"fixture": "something_bespoke"}),
			wantOK:  false,
		},
		{
			desc:    "known pytest fixture maps to plugin",
			problem: problem.New("missing-pytest-fixture", map[string]interface{}{"fixture": "mock"}),
			wantOK:  true,
			want:    requirement.NewPytestPlugin("mock"),
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			got, ok := Convert(test.problem, test.parserVersion)
			if ok != test.wantOK {
				t.Fatalf("Convert() ok = %v, want %v", ok, test.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(test.want, got, cmp.Exporter(func(reflect.Type) bool { return true })); diff != "" {
				t.Errorf("Convert() diff (-want +got):\n%s", diff)
			}
		})
	}
}
