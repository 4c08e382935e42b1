package ognibuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestShebangBinary(t *testing.T) {
	dir := t.TempDir()
	for _, test := range []struct {
		desc       string
		firstLine  string
		executable bool
		want       string
	}{
		{desc: "plain interpreter", firstLine: "#!/usr/bin/python3\n", executable: true, want: "python3"},
		{desc: "env wrapped", firstLine: "#!/usr/bin/env python3\n", executable: true, want: "python3"},
		{desc: "bare env", firstLine: "#!env perl\n", executable: true, want: "perl"},
		{desc: "not executable", firstLine: "#!/usr/bin/python3\n", executable: false, want: ""},
		{desc: "no shebang", firstLine: "print('hi')\n", executable: true, want: ""},
	} {
		t.Run(test.desc, func(t *testing.T) {
			p := filepath.Join(dir, test.desc+".sh")
			mode := os.FileMode(0644)
			if test.executable {
				mode = 0755
			}
			if err := os.WriteFile(p, []byte(test.firstLine), mode); err != nil {
				t.Fatal(err)
			}
			got, err := ShebangBinary(p)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("ShebangBinary() diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsDistFile(t *testing.T) {
	for _, test := range []struct {
		name string
		want bool
	}{
		{"foo-1.0.tar.gz", true},
		{"foo-1.0.tgz", true},
		{"foo-1.0.tar.bz2", true},
		{"foo-1.0.tar.xz", true},
		{"foo-1.0.zip", true},
		{"foo-1.0.tar", true},
		{"README.md", false},
		{"foo-1.0.whl", false},
	} {
		if got := IsDistFile(test.name); got != test.want {
			t.Errorf("IsDistFile(%q) = %v, want %v", test.name, got, test.want)
		}
	}
}
