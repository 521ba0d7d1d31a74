package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const (
	stderrTailSize   = 512
	commandWaitDelay = 2 * time.Second
)

// CommandError is returned when a command exits unsuccessfully.
type CommandError struct {
	ExitCode int
	Stderr   string // last bytes of stderr
	Err      error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("command exited with code %d", e.ExitCode)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// CommandFunc runs a command line as one attempt. The trimmed stdout is the
// attempt's value.
type CommandFunc struct {
	command string
	args    []string
	timeout time.Duration
}

// NewCommandFunc parses command once. A positive timeout bounds every attempt.
func NewCommandFunc(command string, timeout time.Duration) (*CommandFunc, error) {
	args, err := parseCommand(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidConfig)
	}
	return &CommandFunc{command: command, args: args, timeout: timeout}, nil
}

// Command returns the unparsed command line.
func (c *CommandFunc) Command() string {
	return c.command
}

// Run starts the command in its own process group and waits for it. When ctx
// ends the whole group is killed.
func (c *CommandFunc) Run(ctx context.Context) (any, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.args[0], c.args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid signals the process group
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = commandWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, &CommandError{
			ExitCode: exitCodeFromError(err),
			Stderr:   tail(strings.TrimSpace(stderr.String()), stderrTailSize),
			Err:      err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, 137 for a killed process, the exit code for
// ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// parseCommand parses a command string into arguments
// Handles quoted strings and basic escaping.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)
	// quoted tracks an explicitly empty argument like ""
	quoted := false

	runes := []rune(strings.TrimSpace(command))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoted = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case (r == ' ' || r == '\t') && !inQuote:
			if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}

	return args, nil
}
