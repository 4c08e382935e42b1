// Package ognibuild implements failure-driven repair of arbitrary source
// repository builds: detect the build system in use, run its lifecycle
// actions through a Session, and when an invocation fails, classify the
// failure, resolve it to an installable requirement, install it, and retry.
package ognibuild

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// Version is the ognibuild release this binary implements.
var Version = [3]int{0, 0, 17}

// UserAgent is sent on all outbound HTTP requests made by this module.
var UserAgent = "Ognibuild/0.0.17"

// InterruptibleContext returns a context canceled on SIGINT or SIGTERM. A
// second signal terminates the process immediately, which is useful when
// cleanup (e.g. tearing down a chroot session) hangs.
func InterruptibleContext() (context.Context, context.CancelFunc) {
	ctx, canc := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		signal.Stop(sig)
		canc()
	}()
	return ctx, canc
}

// DetailedFailure is a failed command paired with a structured Problem. It
// is the control signal the fix loop matches on.
type DetailedFailure struct {
	Retcode int
	Argv    []string
	Err     error // underlying *problem.Problem, kept as error to avoid an import cycle
}

func (e *DetailedFailure) Error() string {
	return "command failed with identified error: " + strings.Join(e.Argv, " ")
}

func (e *DetailedFailure) Unwrap() error { return e.Err }

// UnidentifiedError is a failed command whose log could not be classified.
type UnidentifiedError struct {
	Retcode   int
	Argv      []string
	Lines     []string
	Secondary *SecondaryError
}

// SecondaryError points at a highlighted offset/line in Lines that the log
// classifier flagged but could not turn into a Problem.
type SecondaryError struct {
	Lineno int
	Line   string
}

func (e *UnidentifiedError) Error() string {
	return "command failed with unidentified error: " + strings.Join(e.Argv, " ")
}

// UnknownRequirementFamily describes a requirement family tag that does
// not match any registered constructor. No code in this module returns
// it: requirement.Unmarshal reports that case with its own
// *requirement.UnknownRequirementFamily.
type UnknownRequirementFamily struct {
	Family string
}

func (e *UnknownRequirementFamily) Error() string {
	return "unknown requirement family: " + e.Family
}

// ShebangBinary returns the basename of the interpreter named in an
// executable file's "#!" line, or "" if the file is not executable or has
// no shebang. "/usr/bin/env PROG" and "env PROG" both yield "PROG".
func ShebangBinary(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if fi.Mode()&0111 == 0 {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "", scanner.Err()
	}
	firstLine := scanner.Text()
	if !strings.HasPrefix(firstLine, "#!") {
		return "", nil
	}
	args := strings.Fields(strings.TrimSpace(firstLine[2:]))
	if len(args) == 0 {
		return "", nil
	}
	if args[0] == "/usr/bin/env" || args[0] == "env" {
		if len(args) < 2 {
			return "", nil
		}
		return baseName(strings.TrimSpace(args[1])), nil
	}
	return baseName(strings.TrimSpace(args[0])), nil
}

func baseName(p string) string {
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

// IsDistFile reports whether name carries one of the recognized source
// distribution tarball extensions.
func IsDistFile(name string) bool {
	for _, ext := range distExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

var distExtensions = []string{
	".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".tar.lzma", ".tbz2", ".tar", ".zip",
}
