package debian

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// LocalTree is a VCSTree backed directly by the filesystem at Root,
// optionally committing through git when Root is a git checkout.
// Callers operating outside of a full VCS (deb-sync-upstream-deps,
// which has no breezy-equivalent working tree to hand) use this
// instead of hand-rolling file I/O themselves.
type LocalTree struct {
	Root string
	git  bool
}

// NewLocalTree returns a LocalTree rooted at root. Commit and Reset are
// no-ops when root is not a git checkout; GetFile/WriteFile always work
// directly against the filesystem.
func NewLocalTree(root string) *LocalTree {
	_, err := os.Stat(filepath.Join(root, ".git"))
	return &LocalTree{Root: root, git: err == nil}
}

func (t *LocalTree) GetFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(t.Root, path))
}

func (t *LocalTree) WriteFile(path string, data []byte) error {
	full := filepath.Join(t.Root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0644)
}

func (t *LocalTree) Commit(message string) error {
	if !t.git {
		return nil
	}
	return t.git1("commit", "-a", "-m", message)
}

func (t *LocalTree) Reset() error {
	if !t.git {
		return nil
	}
	return t.git1("checkout", "--", ".")
}

func (t *LocalTree) git1(args ...string) error {
	argv := append([]string{"-C", t.Root}, args...)
	cmd := exec.Command("git", argv...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %v: %w: %s", args, err, stderr.String())
	}
	return nil
}

var _ VCSTree = (*LocalTree)(nil)
