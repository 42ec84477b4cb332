package bucket_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandye/mcp-security/pkg/bucket"
	"github.com/dandye/mcp-security/pkg/envfile"
	"github.com/dandye/mcp-security/pkg/ui/status"
)

var errBoom = errors.New("boom")

type fakeClient struct {
	existing  map[string]bool
	createErr error
	created   []string
}

func (c *fakeClient) Exists(_ context.Context, name string) (bool, error) {
	return c.existing[name], nil
}

func (c *fakeClient) Create(_ context.Context, name, project string) error {
	if c.createErr != nil {
		return c.createErr
	}

	c.created = append(c.created, project+" "+name)

	return nil
}

type fakePrompter struct {
	answer bool
	asked  []string
}

func (p *fakePrompter) Confirm(_ context.Context, q string) (bool, error) {
	p.asked = append(p.asked, q)

	return p.answer, nil
}

var fixedNow = time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)

// newEnv writes content to an env file under a temp dir and clears the
// variables the manager reads, so file values are observed.
func newEnv(t *testing.T, content string) *envfile.File {
	t.Helper()

	t.Setenv(bucket.EnvProject, "")
	t.Setenv(bucket.EnvStagingBucket, "")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	f, err := envfile.Load(path)
	require.NoError(t, err)

	return f
}

func newManager(t *testing.T, env *envfile.File, c bucket.Client, opts ...bucket.ManagerOpt) (*bucket.Manager, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	opts = append([]bucket.ManagerOpt{bucket.WithClock(func() time.Time { return fixedNow })}, opts...)

	return bucket.NewManager(env, c, status.NewPrinter(buf), opts...), buf
}

func TestManager_Check(t *testing.T) {
	tcs := map[string]struct {
		env      string
		explicit string
		existing map[string]bool
		want     string
		err      error
	}{
		"exists from env file": {
			env:      "GCS_STAGING_BUCKET=gs://b1\n",
			existing: map[string]bool{"gs://b1": true},
			want:     "Bucket exists: gs://b1",
		},
		"explicit flag wins": {
			env:      "GCS_STAGING_BUCKET=gs://b1\n",
			explicit: "b2",
			existing: map[string]bool{"gs://b2": true},
			want:     "Bucket exists: gs://b2",
		},
		"missing bucket": {
			env:  "GOOGLE_CLOUD_PROJECT=proj\nGCS_STAGING_BUCKET=gs://b1\n",
			want: "Create with: gsutil mb -p proj gs://b1",
			err:  bucket.ErrBucketNotFound,
		},
		"missing bucket without project": {
			env:  "GCS_STAGING_BUCKET=gs://b1\n",
			want: "Create with: gsutil mb -p <PROJECT> gs://b1",
			err:  bucket.ErrBucketNotFound,
		},
		"nothing configured": {
			want: "No bucket specified",
			err:  bucket.ErrNoBucket,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			m, buf := newManager(t, newEnv(t, tc.env), &fakeClient{existing: tc.existing})

			err := m.Check(t.Context(), tc.explicit)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}

			assert.Contains(t, buf.String(), tc.want)
		})
	}
}

func TestManager_VerifyOrCreate(t *testing.T) {
	tcs := map[string]struct {
		env         string
		interactive bool
		answer      bool
		existing    map[string]bool
		wantCreated []string
		wantOut     []string
		wantAsked   bool
		err         error
	}{
		"exists": {
			env:      "GOOGLE_CLOUD_PROJECT=proj\nGCS_STAGING_BUCKET=gs://b\n",
			existing: map[string]bool{"gs://b": true},
			wantOut:  []string{"Checking if bucket exists: gs://b", "Staging bucket exists: gs://b"},
		},
		"interactive yes creates": {
			env:         "GOOGLE_CLOUD_PROJECT=proj\nGCS_STAGING_BUCKET=gs://b\n",
			interactive: true,
			answer:      true,
			wantAsked:   true,
			wantCreated: []string{"proj gs://b"},
			wantOut:     []string{"Staging bucket does not exist: gs://b", "Successfully created bucket: gs://b"},
		},
		"interactive no prints manual hint": {
			env:         "GOOGLE_CLOUD_PROJECT=proj\nGCS_STAGING_BUCKET=gs://b\n",
			interactive: true,
			wantAsked:   true,
			wantOut:     []string{"To create the bucket manually, run:", "gsutil mb -p proj gs://b"},
			err:         bucket.ErrBucketNotFound,
		},
		"non-interactive prints hint": {
			env:     "GOOGLE_CLOUD_PROJECT=proj\nGCS_STAGING_BUCKET=gs://b\n",
			wantOut: []string{"To create the bucket, run:", "gsutil mb -p proj gs://b"},
			err:     bucket.ErrBucketNotFound,
		},
		"missing project": {
			env:         "GCS_STAGING_BUCKET=gs://b\n",
			interactive: true,
			wantOut:     []string{"GOOGLE_CLOUD_PROJECT not set"},
			err:         bucket.ErrMissingProject,
		},
		"generated name": {
			env:         "GOOGLE_CLOUD_PROJECT=proj\n",
			interactive: true,
			answer:      true,
			wantAsked:   true,
			wantCreated: []string{"proj gs://agent-deploy-proj-20250102-030405"},
			wantOut:     []string{"Generated staging bucket name: gs://agent-deploy-proj-20250102-030405"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			client := &fakeClient{existing: tc.existing}
			prompter := &fakePrompter{answer: tc.answer}
			m, buf := newManager(t, newEnv(t, tc.env), client, bucket.WithPrompter(prompter))

			err := m.VerifyOrCreate(t.Context(), "", tc.interactive)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tc.wantCreated, client.created)
			assert.Equal(t, tc.wantAsked, len(prompter.asked) == 1)

			for _, s := range tc.wantOut {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestManager_ResolveNamePersists(t *testing.T) {
	env := newEnv(t, "# staging\nGOOGLE_CLOUD_PROJECT=proj\n")
	m, _ := newManager(t, env, &fakeClient{})

	name, err := m.ResolveName("")
	require.NoError(t, err)
	assert.Equal(t, "gs://agent-deploy-proj-20250102-030405", name)

	b, err := os.ReadFile(env.Path())
	require.NoError(t, err)
	assert.Equal(t,
		"# staging\nGOOGLE_CLOUD_PROJECT=proj\nGCS_STAGING_BUCKET=gs://agent-deploy-proj-20250102-030405\n",
		string(b))

	reloaded, err := envfile.Load(env.Path())
	require.NoError(t, err)

	m2, _ := newManager(t, reloaded, &fakeClient{})
	again, err := m2.ResolveName("")
	require.NoError(t, err)
	assert.Equal(t, name, again)
}

func TestManager_ResolveNameMissingProject(t *testing.T) {
	m, buf := newManager(t, newEnv(t, ""), &fakeClient{})

	_, err := m.ResolveName("")
	require.ErrorIs(t, err, bucket.ErrMissingProject)
	assert.Contains(t, buf.String(), "GOOGLE_CLOUD_PROJECT not set in environment")
}

func TestManager_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := &fakeClient{}
		m, buf := newManager(t, newEnv(t, "GOOGLE_CLOUD_PROJECT=proj\n"), client)

		require.NoError(t, m.Create(t.Context(), "gs://explicit"))
		assert.Equal(t, []string{"proj gs://explicit"}, client.created)
		assert.Contains(t, buf.String(), "Successfully created bucket: gs://explicit")
	})

	t.Run("client failure", func(t *testing.T) {
		m, buf := newManager(t, newEnv(t, "GOOGLE_CLOUD_PROJECT=proj\n"), &fakeClient{createErr: errBoom})

		require.ErrorIs(t, m.Create(t.Context(), "gs://explicit"), errBoom)
		assert.Contains(t, buf.String(), "boom")
	})

	t.Run("missing project", func(t *testing.T) {
		m, _ := newManager(t, newEnv(t, ""), &fakeClient{})

		require.ErrorIs(t, m.Create(t.Context(), "gs://explicit"), bucket.ErrMissingProject)
	})
}
