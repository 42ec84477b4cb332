package authtest_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/dandye/mcp-security/pkg/authtest"
	"github.com/dandye/mcp-security/pkg/chronicle"
	"github.com/dandye/mcp-security/pkg/gcpauth"
	"github.com/dandye/mcp-security/pkg/ui/status"
)

type fakeResolver struct {
	info *gcpauth.Info
	err  error
}

func (r fakeResolver) Resolve(context.Context) (*gcpauth.Info, error) {
	return r.info, r.err
}

var okResolver = fakeResolver{info: &gcpauth.Info{
	ProjectID:       "proj",
	CredentialsType: "impersonated_service_account",
	ServiceAccount:  "chronicle-mcp-sa@proj.iam.gserviceaccount.com",
	TokenValid:      true,
}}

func okFactory(ctx context.Context) (*chronicle.SecOpsClient, error) {
	return chronicle.NewSecOpsClient(ctx, option.WithHTTPClient(http.DefaultClient))
}

func failingFactory(context.Context) (*chronicle.SecOpsClient, error) {
	return nil, errors.New("no transport")
}

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func setChronicleEnv(t *testing.T, project, customer string) {
	t.Helper()

	unsetEnv(t, chronicle.EnvRegion, gcpauth.EnvCredentials, "GOOGLE_CLOUD_PROJECT")
	t.Setenv(chronicle.EnvProjectID, project)
	t.Setenv(chronicle.EnvCustomerID, customer)
}

func stepNames(r *authtest.Report) map[string]bool {
	m := map[string]bool{}
	for _, s := range r.Steps {
		m[s.Name] = s.Passed
	}

	return m
}

func TestTester_Run(t *testing.T) {
	tcs := map[string]struct {
		resolver  gcpauth.Resolver
		factory   authtest.ClientFactory
		project   string
		customer  string
		wantSteps map[string]bool
		wantOut   []string
		wantErrs  int
		wantWarns int
	}{
		"all passing": {
			resolver: okResolver,
			factory:  okFactory,
			project:  "proj",
			customer: "customer-123456789",
			wantSteps: map[string]bool{
				authtest.StepEnvironment:     true,
				authtest.StepContainer:       true,
				authtest.StepCredentialsFile: true,
				authtest.StepGoogleAuth:      true,
				authtest.StepChronicleClient: true,
				authtest.StepChronicleAPI:    true,
			},
			wantOut: []string{
				"PASSED: CHRONICLE_CUSTOMER_ID: customer...",
				"Service account: chronicle-mcp-sa@proj.iam.gserviceaccount.com",
				"Chronicle API connection established",
				"Passed: 6/6",
				"All tests passed!",
			},
		},
		"missing customer": {
			resolver: okResolver,
			factory:  okFactory,
			project:  "proj",
			wantSteps: map[string]bool{
				authtest.StepEnvironment:     false,
				authtest.StepContainer:       true,
				authtest.StepCredentialsFile: true,
				authtest.StepGoogleAuth:      true,
				authtest.StepChronicleClient: true,
				authtest.StepChronicleAPI:    true,
			},
			wantOut: []string{
				"Missing required environment variable: CHRONICLE_CUSTOMER_ID",
				"Missing Chronicle configuration for API test",
				"Passed: 5/6",
			},
			wantErrs:  1,
			wantWarns: 1,
		},
		"no default credentials": {
			resolver: fakeResolver{err: fmt.Errorf("%w: not found", gcpauth.ErrDefaultCredentials)},
			factory:  okFactory,
			project:  "proj",
			customer: "cust",
			wantSteps: map[string]bool{
				authtest.StepEnvironment:     true,
				authtest.StepContainer:       true,
				authtest.StepCredentialsFile: true,
				authtest.StepGoogleAuth:      false,
			},
			wantOut:  []string{"Try: gcloud auth application-default login", "Passed: 3/4"},
			wantErrs: 2,
		},
		"client init failure": {
			resolver: okResolver,
			factory:  failingFactory,
			project:  "proj",
			customer: "cust",
			wantSteps: map[string]bool{
				authtest.StepEnvironment:     true,
				authtest.StepContainer:       true,
				authtest.StepCredentialsFile: true,
				authtest.StepGoogleAuth:      true,
				authtest.StepChronicleClient: false,
			},
			wantOut:  []string{"Failed to initialize SecOpsClient: no transport"},
			wantErrs: 1,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			setChronicleEnv(t, tc.project, tc.customer)

			buf := &bytes.Buffer{}
			tester := authtest.NewTester(status.NewPrinter(buf),
				authtest.WithResolver(tc.resolver),
				authtest.WithClientFactory(tc.factory),
			)

			report, err := tester.Run(t.Context())
			require.NotNil(t, report)

			if tc.wantErrs == 0 {
				require.NoError(t, err)
				assert.True(t, report.Success())
			} else {
				require.ErrorIs(t, err, authtest.ErrTestsFailed)
				assert.False(t, report.Success())
			}

			assert.Equal(t, tc.wantSteps, stepNames(report))
			assert.Len(t, report.Errors, tc.wantErrs)
			assert.Len(t, report.Warnings, tc.wantWarns)

			for _, s := range tc.wantOut {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestTester_RunContainerMode(t *testing.T) {
	t.Run("credentials file present", func(t *testing.T) {
		setChronicleEnv(t, "proj", "cust")

		creds := filepath.Join(t.TempDir(), "creds.json")
		require.NoError(t, os.WriteFile(creds, []byte(`{"type":"external_account"}`), 0o600))
		t.Setenv(gcpauth.EnvCredentials, creds)

		buf := &bytes.Buffer{}
		report, err := authtest.NewTester(status.NewPrinter(buf),
			authtest.WithContainerMode(true),
			authtest.WithContainerDetector(func() bool { return true }),
			authtest.WithResolver(okResolver),
			authtest.WithClientFactory(okFactory),
		).Run(t.Context())
		require.NoError(t, err)
		assert.Empty(t, report.Warnings)
		assert.Contains(t, buf.String(), "Running in container mode")
		assert.Contains(t, buf.String(), "Running inside container environment")
		assert.Contains(t, buf.String(), "Credentials type: external_account")
		assert.Contains(t, buf.String(), "GOOGLE_APPLICATION_CREDENTIALS: .../creds.json")
	})

	t.Run("credentials file missing", func(t *testing.T) {
		setChronicleEnv(t, "proj", "cust")
		t.Setenv(gcpauth.EnvCredentials, filepath.Join(t.TempDir(), "absent.json"))

		buf := &bytes.Buffer{}
		report, err := authtest.NewTester(status.NewPrinter(buf),
			authtest.WithContainerMode(true),
			authtest.WithContainerDetector(func() bool { return false }),
			authtest.WithResolver(okResolver),
			authtest.WithClientFactory(okFactory),
		).Run(t.Context())
		require.ErrorIs(t, err, authtest.ErrTestsFailed)
		assert.False(t, stepNames(report)[authtest.StepCredentialsFile])
		assert.Equal(t, []string{"Not detected as container environment"}, report.Warnings)
	})

	t.Run("credentials variable unset", func(t *testing.T) {
		setChronicleEnv(t, "proj", "cust")

		report, err := authtest.NewTester(status.NewPrinter(&bytes.Buffer{}),
			authtest.WithContainerMode(true),
			authtest.WithContainerDetector(func() bool { return true }),
			authtest.WithResolver(okResolver),
			authtest.WithClientFactory(okFactory),
		).Run(t.Context())
		require.NoError(t, err)
		assert.Equal(t, []string{"GOOGLE_APPLICATION_CREDENTIALS not set"}, report.Warnings)
	})
}

func TestTester_Quick(t *testing.T) {
	t.Run("passing", func(t *testing.T) {
		setChronicleEnv(t, "proj", "cust")

		buf := &bytes.Buffer{}
		err := authtest.NewTester(status.NewPrinter(buf),
			authtest.WithResolver(okResolver),
			authtest.WithClientFactory(okFactory),
		).Quick(t.Context())
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "Chronicle client initialized successfully")
		assert.Contains(t, buf.String(), "All tests passed!")
		assert.NotContains(t, buf.String(), "Troubleshooting")
	})

	t.Run("missing variables", func(t *testing.T) {
		setChronicleEnv(t, "", "")

		buf := &bytes.Buffer{}
		err := authtest.NewTester(status.NewPrinter(buf),
			authtest.WithResolver(okResolver),
			authtest.WithClientFactory(okFactory),
		).Quick(t.Context())
		require.ErrorIs(t, err, authtest.ErrTestsFailed)
		assert.Contains(t, buf.String(), "CHRONICLE_PROJECT_ID: None")
		assert.Contains(t, buf.String(), "Troubleshooting")
		assert.Contains(t, buf.String(), "--impersonate-service-account=chronicle-mcp-sa@$GOOGLE_CLOUD_PROJECT")
	})

	t.Run("auth failure", func(t *testing.T) {
		setChronicleEnv(t, "proj", "cust")

		buf := &bytes.Buffer{}
		err := authtest.NewTester(status.NewPrinter(buf),
			authtest.WithResolver(fakeResolver{err: errors.New("denied")}),
			authtest.WithClientFactory(okFactory),
		).Quick(t.Context())
		require.ErrorIs(t, err, authtest.ErrTestsFailed)
		assert.Contains(t, buf.String(), "Google auth failed: denied")
	})
}

func TestLoadConfiguration(t *testing.T) {
	t.Run("file values fill unset variables", func(t *testing.T) {
		unsetEnv(t, authtest.ConfigKeys...)
		t.Setenv(chronicle.EnvRegion, "europe")

		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte(
			"CHRONICLE_PROJECT_ID=file-project\n"+
				"CHRONICLE_CUSTOMER_ID=0123456789abcdef\n"+
				"CHRONICLE_REGION=us\n"+
				"GOOGLE_CLOUD_PROJECT=gcp-project\n"+
				"UNRELATED=1\n"), 0o600))

		buf := &bytes.Buffer{}
		cfg := authtest.LoadConfiguration(path, false, status.NewPrinter(buf))

		assert.Equal(t, authtest.Configuration{
			Chronicle: chronicle.Config{
				ProjectID:  "file-project",
				CustomerID: "0123456789abcdef",
				Region:     "europe",
			},
			GoogleCloudProject: "gcp-project",
		}, cfg)
		assert.Contains(t, buf.String(), "Loaded configuration from "+path)
		assert.Contains(t, buf.String(), "CHRONICLE_CUSTOMER_ID: 01234567...")
		assert.Empty(t, os.Getenv("UNRELATED"))
	})

	t.Run("skip", func(t *testing.T) {
		unsetEnv(t, authtest.ConfigKeys...)

		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("CHRONICLE_PROJECT_ID=file-project\n"), 0o600))

		buf := &bytes.Buffer{}
		cfg := authtest.LoadConfiguration(path, true, status.NewPrinter(buf))

		assert.Empty(t, cfg.Chronicle.ProjectID)
		assert.Equal(t, chronicle.DefaultRegion, cfg.Chronicle.Region)
		assert.Contains(t, buf.String(), "Skipping .env file loading")
	})

	t.Run("missing file", func(t *testing.T) {
		unsetEnv(t, authtest.ConfigKeys...)

		buf := &bytes.Buffer{}
		cfg := authtest.LoadConfiguration(filepath.Join(t.TempDir(), "absent.env"), false, status.NewPrinter(buf))

		assert.Empty(t, cfg.Chronicle.ProjectID)
		assert.Empty(t, buf.String())
	})
}
