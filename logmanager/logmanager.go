// Package logmanager captures the stdout/stderr of a build action to a
// logfile, optionally teeing it to the controlling terminal, and rotates
// previous logs out of the way before a retry. It mirrors ognibuild.logs:
// RotateLogfile moves an existing log aside so repeated runs of the same
// command don't clobber each other's output.
package logmanager

import (
	"fmt"
	"log"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// LogManager wraps a function so its combined stdout/stderr is captured
// somewhere other than the caller's own descriptors.
type LogManager interface {
	Wrap(fn func() error) func() error
}

// withRedirectedStdio dups fd over both stdout and stderr for the
// duration of fn, then restores the originals. This is the same
// os.dup/os.dup2 dance as logs.copy_output/redirect_output; Go code that
// writes through os.Stdout (notably session.RunWithTee) is affected by
// it exactly like a Python contextmanager would be.
func withRedirectedStdio(fd int, fn func() error) error {
	oldStdout, err := unix.Dup(int(os.Stdout.Fd()))
	if err != nil {
		return fmt.Errorf("logmanager: dup stdout: %w", err)
	}
	defer unix.Close(oldStdout)
	oldStderr, err := unix.Dup(int(os.Stderr.Fd()))
	if err != nil {
		return fmt.Errorf("logmanager: dup stderr: %w", err)
	}
	defer unix.Close(oldStderr)

	if err := unix.Dup2(fd, int(os.Stdout.Fd())); err != nil {
		return fmt.Errorf("logmanager: dup2 stdout: %w", err)
	}
	if err := unix.Dup2(fd, int(os.Stderr.Fd())); err != nil {
		return fmt.Errorf("logmanager: dup2 stderr: %w", err)
	}
	defer func() {
		os.Stdout.Sync()
		os.Stderr.Sync()
		unix.Dup2(oldStdout, int(os.Stdout.Fd()))
		unix.Dup2(oldStderr, int(os.Stderr.Fd()))
	}()

	return fn()
}

// CopyOutput redirects the process's stdout and stderr to outputPath for
// the duration of fn. When tee is true, output is also copied to the
// original stdout/stderr via a "tee" subprocess, mirroring
// logs.copy_output's tee=True branch; when false it is redirected only
// (logs.redirect_output).
func CopyOutput(outputPath string, tee bool, fn func() error) error {
	if !tee {
		f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		return withRedirectedStdio(int(f.Fd()), fn)
	}

	cmd := exec.Command("tee", outputPath)
	pipeR, pipeW, err := os.Pipe()
	if err != nil {
		return err
	}
	cmd.Stdin = pipeR
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		pipeR.Close()
		pipeW.Close()
		return err
	}

	runErr := withRedirectedStdio(int(pipeW.Fd()), fn)
	pipeR.Close()
	pipeW.Close()
	waitErr := cmd.Wait()
	if runErr != nil {
		return runErr
	}
	return waitErr
}

// RedirectOutput redirects stdout/stderr to an already-open file for the
// duration of fn, without tee-ing or rotating anything.
func RedirectOutput(to *os.File, fn func() error) error {
	return withRedirectedStdio(int(to.Fd()), fn)
}

// RotateLogfile renames an existing logfile at sourcePath to
// "<name>.N" for the first unused N, so a fresh attempt never
// overwrites the previous one's output.
func RotateLogfile(sourcePath string) error {
	if _, err := os.Stat(sourcePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	i := 1
	for {
		target := fmt.Sprintf("%s.%d", sourcePath, i)
		if _, err := os.Stat(target); os.IsNotExist(err) {
			if err := os.Rename(sourcePath, target); err != nil {
				return err
			}
			log.Printf("storing previous build log at %s", target)
			return nil
		}
		i++
	}
}

// DirectoryLogManager writes logs for repeated actions to a single path,
// rotating the previous attempt's log out of the way and either tee-ing
// ("copy") or redirecting ("redirect") output to it.
type DirectoryLogManager struct {
	Path string
	Mode string // "copy" or "redirect"
}

func (m *DirectoryLogManager) Wrap(fn func() error) func() error {
	return func() error {
		if err := RotateLogfile(m.Path); err != nil {
			return err
		}
		switch m.Mode {
		case "copy":
			return CopyOutput(m.Path, true, fn)
		case "redirect":
			return CopyOutput(m.Path, false, fn)
		default:
			return fmt.Errorf("logmanager: unsupported mode %q", m.Mode)
		}
	}
}

// NoLogManager runs fn unmodified, leaving stdout/stderr untouched.
type NoLogManager struct{}

func (NoLogManager) Wrap(fn func() error) func() error { return fn }
