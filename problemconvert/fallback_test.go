package problemconvert

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ognibuild/ognibuild/problem"
	"github.com/ognibuild/ognibuild/requirement"
)

func TestConvertWithFallback(t *testing.T) {
	for _, test := range []struct {
		desc    string
		problem *problem.Problem
		want    requirement.Requirement
		wantOK  bool
	}{
		{
			desc: "boost cmake components",
			problem: problem.New("missing-cmake-components", map[string]interface{}{
				"name": "Boost", "components": []string{"filesystem", "system"},
			}),
			wantOK: true,
			want: &requirement.OneOf{Elements: []requirement.Requirement{
				requirement.NewBoostComponent("filesystem"),
				requirement.NewBoostComponent("system"),
			}},
		},
		{
			desc: "unrecognized cmake component group",
			problem: problem.New("missing-cmake-components", map[string]interface{}{
				"name": "Frobnicate",
			}),
			wantOK: false,
		},
		{
			desc:    "latex sty file",
			problem: problem.New("missing-latex-file", map[string]interface{}{"filename": "foo.sty"}),
			wantOK:  true,
			want:    requirement.NewLatexPackage("foo"),
		},
		{
			desc:    "latex non-sty file",
			problem: problem.New("missing-latex-file", map[string]interface{}{"filename": "foo.cls"}),
			wantOK:  false,
		},
		{
			desc:    "haskell dependencies",
			problem: problem.New("missing-haskell-dependencies", map[string]interface{}{"deps": []string{"text >=1.0"}}),
			wantOK:  true,
			want: &requirement.OneOf{Elements: []requirement.Requirement{
				requirement.HaskellPackageFromString("text >=1.0"),
			}},
		},
		{
			desc:    "maven artifacts",
			problem: problem.New("missing-maven-artifacts", map[string]interface{}{"artifacts": []string{"junit:junit:4.13"}}),
			wantOK:  true,
			want: &requirement.OneOf{Elements: []requirement.Requirement{
				&requirement.MavenArtifact{GroupID: "junit", ArtifactID: "junit", Version: "4.13", Kind: "jar"},
			}},
		},
		{
			desc:    "perl predeclared known",
			problem: problem.New("missing-perl-predeclared", map[string]interface{}{"name": "catalyst"}),
			wantOK:  true,
			want:    &requirement.PerlModule{Module: "Module::Install::Catalyst"},
		},
		{
			desc:    "perl predeclared unknown",
			problem: problem.New("missing-perl-predeclared", map[string]interface{}{"name": "bespoke_thing"}),
			wantOK:  true,
			want:    &requirement.PerlPreDeclared{Name: "bespoke_thing"},
		},
		{
			desc:    "cargo crate",
			problem: problem.New("missing-cargo-crate", map[string]interface{}{"crate": "serde"}),
			wantOK:  true,
			want:    requirement.NewCargoCrate("serde"),
		},
		{
			desc:    "setup.py test command",
			problem: problem.New("missing-setup.py-command", map[string]interface{}{"command": "test"}),
			wantOK:  true,
			want:    &requirement.PythonPackage{Package: "setuptools"},
		},
		{
			desc:    "setup.py other command",
			problem: problem.New("missing-setup.py-command", map[string]interface{}{"command": "bdist"}),
			wantOK:  false,
		},
		{
			desc:    "gnome-common glib-gettext",
			problem: problem.New("missing-gnome-common-dependency", map[string]interface{}{"package": "glib-gettext"}),
			wantOK:  true,
			want:    &requirement.Binary{Name: "glib-gettextize"},
		},
		{
			desc:    "unsatisfied apt dependencies has no conversion yet",
			problem: problem.New("unsatisfied-apt-dependencies", nil),
			wantOK:  false,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			got, ok := ConvertWithFallback(test.problem, "")
			if ok != test.wantOK {
				t.Fatalf("ConvertWithFallback() ok = %v, want %v", ok, test.wantOK)
			}
			if !ok {
				return
			}
			if diff := cmp.Diff(test.want, got, cmp.Exporter(func(reflect.Type) bool { return true })); diff != "" {
				t.Errorf("ConvertWithFallback() diff (-want +got):\n%s", diff)
			}
		})
	}
}
