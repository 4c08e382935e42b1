package session

import (
	"bufio"
	"io"
	"os"

	"golang.org/x/xerrors"
)

// RunWithTee spawns argv in s, forwards every line of its merged
// stdout/stderr to the process's own stdout verbatim, and simultaneously
// accumulates the decoded lines for log analysis. Lines are flushed
// synchronously, one at a time; there is no batching. Returns the command's
// exit code and the accumulated lines.
func RunWithTee(s Session, argv []string, opts RunOptions) (retcode int, lines []string, err error) {
	cmd, err := s.Spawn(argv, opts)
	if err != nil {
		return 0, nil, xerrors.Errorf("spawning %v: %w", argv, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, nil, xerrors.Errorf("StdoutPipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	// surrogateescape is not representable in Go strings; invalid UTF-8
	// bytes are kept verbatim via a raw byte->string conversion, which is
	// the closest equivalent of Python's surrogateescape round-trip.
	if err := cmd.Start(); err != nil {
		return 0, nil, xerrors.Errorf("starting %v: %w", argv, err)
	}
	reader := bufio.NewReader(stdout)
	for {
		line, rerr := reader.ReadString('\n')
		if len(line) > 0 {
			os.Stdout.WriteString(line)
			lines = append(lines, line)
		}
		if rerr != nil {
			if rerr != io.EOF {
				err = rerr
			}
			break
		}
	}
	waitErr := cmd.Wait()
	retcode = cmd.ProcessState.ExitCode()
	if err != nil {
		return retcode, lines, err
	}
	_ = waitErr // exit status is reported via retcode, not an error
	return retcode, lines, nil
}
