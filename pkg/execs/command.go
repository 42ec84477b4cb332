package execs

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-shellwords"
)

var (
	// ErrCommandExecution is returned when command execution fails.
	ErrCommandExecution = errors.New("run")

	// ErrEmptyCommand is returned when a command is empty.
	ErrEmptyCommand = errors.New("empty command")
)

// Result represents the result of a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Command describes an external command.
type Command struct {
	// Command is the executable name or path.
	Command string
	// Args contains the command line arguments.
	Args []string
	// Env contains extra KEY=VALUE pairs appended to the caller's environment.
	Env []string
}

// ParseCommand splits a shell-style command line (e.g. "python3 /opt/gsutil/gsutil")
// into a [Command].
func ParseCommand(line string) (Command, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return Command{}, fmt.Errorf("parse command %q: %w", line, err)
	}
	if len(words) == 0 {
		return Command{}, ErrEmptyCommand
	}

	return Command{
		Command: words[0],
		Args:    words[1:],
	}, nil
}

// With returns a copy of c with args appended.
func (c Command) With(args ...string) Command {
	all := make([]string, 0, len(c.Args)+len(args))
	all = append(all, c.Args...)
	all = append(all, args...)

	return Command{
		Command: c.Command,
		Args:    all,
		Env:     c.Env,
	}
}

// GetEnv constructs environment variables for command execution.
// Cloud CLIs need the full caller environment (credentials, config dirs),
// so the caller's environment is inherited and Env is layered on top.
func (c Command) GetEnv() []string {
	env := os.Environ()

	return append(env, c.Env...)
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Command
	}

	return fmt.Sprintf("%s %s", c.Command, strings.Join(c.Args, " "))
}
