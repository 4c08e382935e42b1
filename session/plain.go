package session

import (
	"os"
	"os/exec"
	"os/user"
	"path/filepath"

	"golang.org/x/xerrors"
)

// Plain runs commands directly on the host. Its Location is always "/".
// When User differs from the current user, commands are wrapped in
// "sudo -u user".
type Plain struct {
	open bool
	cwd  string
}

var _ Session = (*Plain)(nil)

func NewPlain() *Plain { return &Plain{} }

func (p *Plain) Open() error {
	if p.open {
		return ErrSessionAlreadyOpen
	}
	p.open = true
	return nil
}

func (p *Plain) Close() error {
	if !p.open {
		return ErrNoSessionOpen
	}
	p.open = false
	return nil
}

func (p *Plain) Location() string  { return "/" }
func (p *Plain) IsTemporary() bool { return false }
func (p *Plain) Chdir(path string) { p.cwd = path }

func (p *Plain) prependUser(user string, argv []string) []string {
	if user == "" || user == currentUsername() {
		return argv
	}
	out := make([]string, 0, len(argv)+3)
	out = append(out, "sudo", "-u", user)
	out = append(out, argv...)
	return out
}

func currentUsername() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}

func (p *Plain) cmd(argv []string, opts RunOptions) (*exec.Cmd, error) {
	if !p.open {
		return nil, ErrNoSessionOpen
	}
	argv = p.prependUser(opts.User, argv)
	cmd := exec.Command(argv[0], argv[1:]...)
	cwd := opts.Cwd
	if cwd == "" {
		cwd = p.cwd
	}
	cmd.Dir = cwd
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), envSlice(opts.Env)...)
	}
	return cmd, nil
}

func (p *Plain) CheckCall(argv []string, opts RunOptions) error {
	cmd, err := p.cmd(argv, opts)
	if err != nil {
		return err
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = nil
	if err := cmd.Run(); err != nil {
		return xerrors.Errorf("%v: %w", argv, err)
	}
	return nil
}

func (p *Plain) CheckOutput(argv []string, opts RunOptions) ([]byte, error) {
	cmd, err := p.cmd(argv, opts)
	if err != nil {
		return nil, err
	}
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Plain) Spawn(argv []string, opts RunOptions) (*exec.Cmd, error) {
	return p.cmd(argv, opts)
}

func (p *Plain) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (p *Plain) Scandir(path string) ([]os.DirEntry, error) { return os.ReadDir(path) }
func (p *Plain) Mkdir(path string) error                    { return os.Mkdir(path, 0755) }
func (p *Plain) Rmtree(path string) error                   { return os.RemoveAll(path) }
func (p *Plain) CreateHome() error                           { return nil }
func (p *Plain) ExternalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func (p *Plain) SetupFromDirectory(path, subdir string) (external, internal string, err error) {
	// A plain session runs directly on the host filesystem; nothing to
	// copy, the caller's directory is already the build directory.
	return path, path, nil
}

func envSlice(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}
