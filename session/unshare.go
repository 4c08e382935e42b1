package session

import (
	"log"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

// Unshare runs commands inside a fresh "unshare" namespace rooted at a
// temporary directory populated by Setup (e.g. extracting a base-root
// tarball). The temporary root is removed on Close.
type Unshare struct {
	Name  string
	Setup func(root string) error

	path string
	cwd  string
}

var _ Session = (*Unshare)(nil)

// NewUnshareFromTarball prepares an Unshare session whose root is populated
// by extracting tarballPath and appending an /etc/passwd entry for the
// invoking user.
func NewUnshareFromTarball(name, tarballPath string) *Unshare {
	return &Unshare{
		Name: name,
		Setup: func(root string) error {
			if err := extractTarball(tarballPath, root); err != nil {
				return err
			}
			u, err := user.Current()
			if err != nil {
				return err
			}
			f, err := os.OpenFile(filepath.Join(root, "etc/passwd"), os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = f.WriteString(u.Username + ":x:" + u.Uid + ":" + u.Gid + "::" + u.HomeDir + ":/bin/sh\n")
			return err
		},
	}
}

func (u *Unshare) Open() error {
	if u.path != "" {
		return ErrSessionAlreadyOpen
	}
	dir, err := os.MkdirTemp("", u.Name)
	if err != nil {
		return err
	}
	if u.Setup != nil {
		if err := u.Setup(dir); err != nil {
			os.RemoveAll(dir)
			return xerrors.Errorf("setting up unshare root: %w", err)
		}
	}
	u.path = dir
	return nil
}

func (u *Unshare) Close() error {
	if u.path == "" {
		return ErrNoSessionOpen
	}
	err := os.RemoveAll(u.path)
	u.path = ""
	return err
}

func (u *Unshare) Location() string  { return u.path }
func (u *Unshare) IsTemporary() bool { return true }
func (u *Unshare) Chdir(path string) { u.cwd = path }

func (u *Unshare) unshareArgv(argv []string, opts RunOptions) ([]string, error) {
	if u.path == "" {
		return nil, ErrNoSessionOpen
	}
	args := []string{"--root=" + u.path, "--map-users=auto"}
	switch {
	case opts.User == "root":
		args = append(args, "--map-root-user")
	case opts.User == "" || opts.User == currentUsername():
		args = append(args, "--map-current-user")
	default:
		return nil, xerrors.Errorf("unsupported user %q", opts.User)
	}
	args = append(args,
		"--cgroup", "--user", "--pid", "--uts", "--mount", "--ipc",
		"--fork", "--mount-proc", "--map-groups=auto", "--kill-child")
	cwd := opts.Cwd
	if cwd == "" {
		cwd = u.cwd
	}
	if cwd != "" {
		args = append(args, "--wd="+cwd)
	}
	full := append([]string{"unshare"}, args...)
	full = append(full, "--")
	full = append(full, argv...)
	return full, nil
}

func (u *Unshare) CheckCall(argv []string, opts RunOptions) error {
	full, err := u.unshareArgv(argv, opts)
	if err != nil {
		return err
	}
	cmd := exec.Command(full[0], full[1:]...)
	if len(opts.Env) > 0 {
		cmd.Env = envSlice(opts.Env)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return xerrors.Errorf("%v: %w", argv, err)
	}
	return nil
}

func (u *Unshare) CheckOutput(argv []string, opts RunOptions) ([]byte, error) {
	full, err := u.unshareArgv(argv, opts)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(full[0], full[1:]...)
	if len(opts.Env) > 0 {
		cmd.Env = envSlice(opts.Env)
	}
	return cmd.Output()
}

func (u *Unshare) Spawn(argv []string, opts RunOptions) (*exec.Cmd, error) {
	full, err := u.unshareArgv(argv, opts)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(full[0], full[1:]...)
	if len(opts.Env) > 0 {
		cmd.Env = envSlice(opts.Env)
	}
	return cmd, nil
}

// CreateHome creates the session user's home directory as root, then
// chowns it to the invoking user.
func (u *Unshare) CreateHome() error {
	home, err := u.CheckOutput([]string{"sh", "-c", "echo $HOME"}, RunOptions{Cwd: "/"})
	if err != nil {
		return err
	}
	homeDir := strings.TrimSpace(string(home))
	logname, err := u.CheckOutput([]string{"sh", "-c", "echo $LOGNAME"}, RunOptions{Cwd: "/"})
	if err != nil {
		return err
	}
	log.Printf("creating directory %s in unshare session", homeDir)
	if err := u.CheckCall([]string{"mkdir", "-p", homeDir}, RunOptions{Cwd: "/", User: "root"}); err != nil {
		return err
	}
	return u.CheckCall([]string{"chown", strings.TrimSpace(string(logname)), homeDir}, RunOptions{Cwd: "/", User: "root"})
}

func (u *Unshare) ExternalPath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Join(u.path, strings.TrimPrefix(path, "/"))
	}
	return filepath.Join(u.path, strings.TrimPrefix(filepath.Join(u.cwd, path), "/"))
}

func (u *Unshare) Exists(path string) bool {
	_, err := os.Stat(u.ExternalPath(path))
	return err == nil
}

func (u *Unshare) Scandir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(u.ExternalPath(path))
}

func (u *Unshare) Mkdir(path string) error  { return os.Mkdir(u.ExternalPath(path), 0755) }
func (u *Unshare) Rmtree(path string) error { return os.RemoveAll(u.ExternalPath(path)) }

func (u *Unshare) SetupFromDirectory(path, subdir string) (external, internal string, err error) {
	buildDir := filepath.Join(u.path, "build")
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return "", "", err
	}
	dir, err := os.MkdirTemp(buildDir, "")
	if err != nil {
		return "", "", err
	}
	reldir := "/" + strings.TrimPrefix(dir, u.path)
	exportDir := filepath.Join(dir, subdir)
	if err := copyTree(path, exportDir); err != nil {
		return "", "", err
	}
	return exportDir, filepath.Join(reldir, subdir), nil
}

func extractTarball(tarballPath, dest string) error {
	f, err := os.Open(tarballPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return extractTarStream(f, dest)
}
