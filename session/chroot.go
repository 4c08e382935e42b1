package session

import (
	"bufio"
	"bytes"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

// Chroot runs commands inside an schroot session of the named chroot
// configuration (as listed by "schroot -l").
type Chroot struct {
	Chroot string

	sessionID string
	location  string
	cwd       string
}

var _ Session = (*Chroot)(nil)

func NewChroot(chroot string) *Chroot { return &Chroot{Chroot: chroot} }

func (c *Chroot) Open() error {
	if c.sessionID != "" {
		return ErrSessionAlreadyOpen
	}
	var stderr bytes.Buffer
	cmd := exec.Command("schroot", "-c", c.Chroot, "-b")
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		lines := splitLines(stderr.String())
		switch len(lines) {
		case 0:
			return &SetupFailure{Reason: "no output from schroot"}
		case 1:
			return &SetupFailure{Reason: lines[0], ErrLines: lines}
		default:
			return &SetupFailure{Reason: lines[len(lines)-1], ErrLines: lines}
		}
	}
	c.sessionID = strings.TrimSpace(string(out))
	log.Printf("opened schroot session %s (from %s)", c.sessionID, c.Chroot)
	return nil
}

func (c *Chroot) Close() error {
	if c.sessionID == "" {
		return ErrNoSessionOpen
	}
	var stderr bytes.Buffer
	cmd := exec.Command("schroot", "-c", "session:"+c.sessionID, "-e")
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		for _, line := range splitLines(stderr.String()) {
			if strings.HasPrefix(line, "E: ") {
				log.Printf("%s", line[3:])
			}
		}
		log.Printf("failed to close schroot session %s, leaving stray", c.sessionID)
		c.sessionID = ""
		return xerrors.Errorf("closing schroot session: %w", err)
	}
	c.sessionID = ""
	c.location = ""
	return nil
}

func (c *Chroot) Location() string {
	if c.location == "" && c.sessionID != "" {
		out, err := exec.Command("schroot", "--location", "-c", "session:"+c.sessionID).Output()
		if err == nil {
			c.location = strings.TrimSpace(string(out))
		}
	}
	return c.location
}

func (c *Chroot) IsTemporary() bool { return true }
func (c *Chroot) Chdir(path string) { c.cwd = path }

func (c *Chroot) runArgv(argv []string, opts RunOptions) []string {
	base := []string{"schroot", "-r", "-c", "session:" + c.sessionID}
	cwd := opts.Cwd
	if cwd == "" {
		cwd = c.cwd
	}
	if cwd != "" {
		base = append(base, "-d", cwd)
	}
	if opts.User != "" {
		base = append(base, "-u", opts.User)
	}
	if len(opts.Env) > 0 {
		var sb strings.Builder
		for k, v := range opts.Env {
			sb.WriteString(k + "=" + shellQuote(v) + " ")
		}
		for _, a := range argv {
			sb.WriteString(shellQuote(a) + " ")
		}
		argv = []string{"sh", "-c", sb.String()}
	}
	return append(append(base, "--"), argv...)
}

func (c *Chroot) CheckCall(argv []string, opts RunOptions) error {
	if c.sessionID == "" {
		return ErrNoSessionOpen
	}
	cmd := exec.Command(c.runArgv(argv, opts)[0], c.runArgv(argv, opts)[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return xerrors.Errorf("%v: %w", argv, err)
	}
	return nil
}

func (c *Chroot) CheckOutput(argv []string, opts RunOptions) ([]byte, error) {
	if c.sessionID == "" {
		return nil, ErrNoSessionOpen
	}
	full := c.runArgv(argv, opts)
	out, err := exec.Command(full[0], full[1:]...).Output()
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", argv, err)
	}
	return out, nil
}

func (c *Chroot) Spawn(argv []string, opts RunOptions) (*exec.Cmd, error) {
	if c.sessionID == "" {
		return nil, ErrNoSessionOpen
	}
	full := c.runArgv(argv, opts)
	return exec.Command(full[0], full[1:]...), nil
}

func (c *Chroot) CreateHome() error {
	home, err := c.CheckOutput([]string{"sh", "-c", "echo $HOME"}, RunOptions{Cwd: "/"})
	if err != nil {
		return err
	}
	homeDir := strings.TrimSpace(string(home))
	user, err := c.CheckOutput([]string{"sh", "-c", "echo $LOGNAME"}, RunOptions{Cwd: "/"})
	if err != nil {
		return err
	}
	logname := strings.TrimSpace(string(user))
	log.Printf("creating directory %s in schroot session", homeDir)
	if err := c.CheckCall([]string{"mkdir", "-p", homeDir}, RunOptions{Cwd: "/", User: "root"}); err != nil {
		return err
	}
	return c.CheckCall([]string{"chown", logname, homeDir}, RunOptions{Cwd: "/", User: "root"})
}

func (c *Chroot) ExternalPath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Join(c.Location(), strings.TrimPrefix(path, "/"))
	}
	return filepath.Join(c.Location(), strings.TrimPrefix(filepath.Join(c.cwd, path), "/"))
}

func (c *Chroot) Exists(path string) bool {
	_, err := os.Stat(c.ExternalPath(path))
	return err == nil
}

func (c *Chroot) Scandir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(c.ExternalPath(path))
}

func (c *Chroot) Mkdir(path string) error  { return os.Mkdir(c.ExternalPath(path), 0755) }
func (c *Chroot) Rmtree(path string) error { return os.RemoveAll(c.ExternalPath(path)) }

func (c *Chroot) SetupFromDirectory(path, subdir string) (external, internal string, err error) {
	buildDir := filepath.Join(c.Location(), "build")
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return "", "", err
	}
	dir, err := os.MkdirTemp(buildDir, "")
	if err != nil {
		return "", "", err
	}
	reldir := "/" + strings.TrimPrefix(dir, c.Location())
	exportDir := filepath.Join(dir, subdir)
	if err := copyTree(path, exportDir); err != nil {
		return "", "", err
	}
	return exportDir, filepath.Join(reldir, subdir), nil
}

func splitLines(s string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
