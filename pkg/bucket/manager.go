package bucket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandye/mcp-security/pkg/envfile"
	"github.com/dandye/mcp-security/pkg/log"
	"github.com/dandye/mcp-security/pkg/ui/status"
)

const (
	// EnvProject names the cloud project variable.
	EnvProject = "GOOGLE_CLOUD_PROJECT"

	// EnvStagingBucket names the staging bucket variable.
	EnvStagingBucket = "GCS_STAGING_BUCKET"
)

// Prompter asks the user a yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Manager resolves, checks and creates the staging bucket.
type Manager struct {
	env      *envfile.File
	client   Client
	prompter Prompter
	out      *status.Printer
	now      func() time.Time
}

// ManagerOpt configures a [Manager].
type ManagerOpt func(*Manager)

// WithPrompter sets the [Prompter] used by [Manager.VerifyOrCreate].
func WithPrompter(p Prompter) ManagerOpt {
	return func(m *Manager) {
		m.prompter = p
	}
}

// WithClock overrides the clock used for generated names.
func WithClock(now func() time.Time) ManagerOpt {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new [Manager].
func NewManager(env *envfile.File, client Client, out *status.Printer, opts ...ManagerOpt) *Manager {
	m := &Manager{
		env:    env,
		client: client,
		out:    out,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Project returns the configured cloud project, if any.
func (m *Manager) Project() string {
	p, _ := m.env.Lookup(EnvProject)

	return p
}

// ConfiguredName returns explicit if set, otherwise GCS_STAGING_BUCKET.
func (m *Manager) ConfiguredName(explicit string) string {
	if explicit != "" {
		return Normalize(explicit)
	}

	name, _ := m.env.Lookup(EnvStagingBucket)

	return Normalize(name)
}

// ResolveName returns the configured bucket name, generating (and
// persisting to the env file) a new one when nothing is configured.
func (m *Manager) ResolveName(explicit string) (string, error) {
	if name := m.ConfiguredName(explicit); name != "" {
		return name, nil
	}

	name, err := GenerateName(m.Project(), m.now())
	if err != nil {
		m.out.Failure("❌ Error: %s in environment", ErrMissingProject)

		return "", err
	}

	m.out.Printf("Generated staging bucket name: %s", name)

	err = m.env.Update(EnvStagingBucket, name)
	if err != nil {
		return "", fmt.Errorf("save bucket name: %w", err)
	}

	return name, nil
}

// Check reports whether the configured bucket exists.
func (m *Manager) Check(ctx context.Context, explicit string) error {
	name := m.ConfiguredName(explicit)
	if name == "" {
		m.out.Failure("❌ Error: No bucket specified")

		return ErrNoBucket
	}

	exists, err := m.client.Exists(ctx, name)
	if err != nil {
		m.out.Failure("Error checking bucket: %v", err)

		return err
	}

	if exists {
		m.out.Success("✅ Bucket exists: %s", name)

		return nil
	}

	m.out.Failure("❌ Bucket does not exist: %s", name)
	m.out.Printf("Create with: %s", CreateHint(m.Project(), name))

	return fmt.Errorf("%w: %s", ErrBucketNotFound, name)
}

// VerifyOrCreate verifies that the bucket exists, offering to create it when
// interactive is set.
func (m *Manager) VerifyOrCreate(ctx context.Context, explicit string, interactive bool) error {
	logger := log.WithContext(ctx)

	name, err := m.ResolveName(explicit)
	if err != nil {
		return err
	}

	m.out.Printf("Checking if bucket exists: %s", name)

	exists, err := m.client.Exists(ctx, name)
	if err != nil {
		m.out.Failure("Error checking bucket: %v", err)

		return err
	}

	if exists {
		m.out.Success("✅ Staging bucket exists: %s", name)

		return nil
	}

	m.out.Failure("❌ Staging bucket does not exist: %s", name)

	project := m.Project()
	if project == "" {
		m.out.Failure("❌ Error: %s", ErrMissingProject)

		return ErrMissingProject
	}

	if interactive && m.prompter != nil {
		create, err := m.prompter.Confirm(ctx, "Would you like to create it now?")
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}

		logger.DebugContext(ctx, "create prompt answered", slog.Bool("create", create))

		if create {
			return m.create(ctx, name, project)
		}

		m.out.Println()
		m.out.Println("To create the bucket manually, run:")
	} else {
		m.out.Println()
		m.out.Println("To create the bucket, run:")
	}

	m.out.Hint("  %s", CreateHint(project, name))

	return fmt.Errorf("%w: %s", ErrBucketNotFound, name)
}

// Create creates the configured bucket, generating a name if needed.
func (m *Manager) Create(ctx context.Context, explicit string) error {
	name, err := m.ResolveName(explicit)
	if err != nil {
		return err
	}

	project := m.Project()
	if project == "" {
		m.out.Failure("❌ Error: %s", ErrMissingProject)

		return ErrMissingProject
	}

	return m.create(ctx, name, project)
}

func (m *Manager) create(ctx context.Context, name, project string) error {
	log.WithContext(ctx).InfoContext(ctx, "creating bucket",
		slog.String("bucket", name),
		slog.String("project", project),
	)

	err := m.client.Create(ctx, name, project)
	if err != nil {
		m.out.Failure("❌ %v", err)

		return err
	}

	m.out.Success("✅ Successfully created bucket: %s", name)

	return nil
}
