package debian

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocalTreeGetFileWriteFileRoundTrip(t *testing.T) {
	root := t.TempDir()
	tree := NewLocalTree(root)

	if err := tree.WriteFile("debian/control", []byte("Source: foo\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := tree.GetFile("debian/control")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if string(got) != "Source: foo\n" {
		t.Errorf("GetFile() = %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "debian", "control")); err != nil {
		t.Errorf("file not written to disk: %v", err)
	}
}

func TestLocalTreeCommitAndResetAreNoopsWithoutGit(t *testing.T) {
	root := t.TempDir()
	tree := NewLocalTree(root)
	if tree.git {
		t.Fatal("expected no .git directory to be detected")
	}
	if err := tree.Commit("message"); err != nil {
		t.Errorf("Commit: %v", err)
	}
	if err := tree.Reset(); err != nil {
		t.Errorf("Reset: %v", err)
	}
}

func TestNewLocalTreeDetectsGitCheckout(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	tree := NewLocalTree(root)
	if !tree.git {
		t.Error("expected .git directory to be detected")
	}
}
