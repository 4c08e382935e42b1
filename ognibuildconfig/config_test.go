package ognibuildconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "repositories:\n  - http://example.com/repo\ndeb_email: dev@example.com\ndeb_fullname: Dev Example\nuser_local: true\n"
	if err := os.WriteFile(filepath.Join(dir, "ognibuild.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := &Config{
		Repositories: []string{"http://example.com/repo"},
		DebEmail:     "dev@example.com",
		DebFullname:  "Dev Example",
		UserLocal:    true,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() diff (-want +got):\n%s", diff)
	}
}

func TestLoadWithoutFileIsNotAnError(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DebEmail != "" {
		t.Errorf("DebEmail = %q, want empty", cfg.DebEmail)
	}
}

func TestEnvOverlaysFileConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := "deb_email: fromfile@example.com\n"
	if err := os.WriteFile(filepath.Join(dir, "ognibuild.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEBEMAIL", "fromenv@example.com")
	t.Setenv("DEBFULLNAME", "Env Name")
	t.Setenv("REPOSITORIES", "deb-a.example/repo:deb-b.example/repo")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DebEmail != "fromenv@example.com" {
		t.Errorf("DebEmail = %q, want env override", cfg.DebEmail)
	}
	if cfg.DebFullname != "Env Name" {
		t.Errorf("DebFullname = %q", cfg.DebFullname)
	}
	want := []string{"deb-a.example/repo", "deb-b.example/repo"}
	if diff := cmp.Diff(want, cfg.Repositories); diff != "" {
		t.Errorf("Repositories diff (-want +got):\n%s", diff)
	}
}

func TestWithRepositoriesOverridesWithoutMutatingOriginal(t *testing.T) {
	base := &Config{Repositories: []string{"http://orig.example"}}
	next := base.WithRepositories([]string{"http://flag.example"})
	if base.Repositories[0] != "http://orig.example" {
		t.Errorf("base mutated: %v", base.Repositories)
	}
	if next.Repositories[0] != "http://flag.example" {
		t.Errorf("next.Repositories = %v, want flag override", next.Repositories)
	}
}

func TestWithUserLocalOverridesWithoutMutatingOriginal(t *testing.T) {
	base := &Config{UserLocal: false}
	next := base.WithUserLocal(true)
	if base.UserLocal {
		t.Error("base mutated")
	}
	if !next.UserLocal {
		t.Error("next.UserLocal = false, want true")
	}
}
