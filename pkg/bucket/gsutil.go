package bucket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dandye/mcp-security/pkg/execs"
	"github.com/dandye/mcp-security/pkg/log"
)

// ErrCreateFailed is returned when the storage tool fails to create a bucket.
var ErrCreateFailed = errors.New("failed to create bucket")

// Client checks for and creates buckets.
type Client interface {
	Exists(ctx context.Context, bucket string) (bool, error)
	Create(ctx context.Context, bucket, project string) error
}

// Make sure *GSUtil satisfies Client interface.
var _ Client = (*GSUtil)(nil)

// GSUtil implements [Client] by running the gsutil command-line tool.
type GSUtil struct {
	cmd execs.Command
}

// DefaultCommand is the storage tool used when none is configured.
var DefaultCommand = execs.Command{Command: "gsutil"}

// NewGSUtil creates a new [GSUtil] that runs cmd.
// A zero cmd uses [DefaultCommand].
func NewGSUtil(cmd execs.Command) *GSUtil {
	if cmd.Command == "" {
		cmd = DefaultCommand
	}

	return &GSUtil{cmd: cmd}
}

// Exists reports whether bucket exists, by listing it.
// Any non-zero exit status is treated as "does not exist"; only a failure to
// start the tool at all is returned as an error.
func (g *GSUtil) Exists(ctx context.Context, bucket string) (bool, error) {
	res, err := execs.NewExecutor(g.cmd, "ls", bucket).Exec(ctx, "")
	if err == nil {
		return true, nil
	}
	if res != nil {
		log.WithContext(ctx).DebugContext(ctx, "bucket listing failed",
			slog.String("bucket", bucket),
			slog.Int("exit_code", res.ExitCode),
			slog.String("stderr", strings.TrimSpace(res.Stderr)),
		)

		return false, nil
	}

	return false, fmt.Errorf("check bucket %s: %w", bucket, err)
}

// Create makes bucket in project.
func (g *GSUtil) Create(ctx context.Context, bucket, project string) error {
	res, err := execs.NewExecutor(g.cmd, "mb", "-p", project, bucket).Exec(ctx, "")
	if err == nil {
		return nil
	}
	if res != nil && strings.TrimSpace(res.Stderr) != "" {
		return fmt.Errorf("%w: %s", ErrCreateFailed, strings.TrimSpace(res.Stderr))
	}

	return fmt.Errorf("%w: %w", ErrCreateFailed, err)
}

func (g *GSUtil) String() string {
	return g.cmd.String()
}
