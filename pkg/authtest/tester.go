package authtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dandye/mcp-security/pkg/bucket"
	"github.com/dandye/mcp-security/pkg/chronicle"
	"github.com/dandye/mcp-security/pkg/gcpauth"
	"github.com/dandye/mcp-security/pkg/log"
	"github.com/dandye/mcp-security/pkg/ui/status"
)

// ErrTestsFailed is returned when any test step fails.
var ErrTestsFailed = errors.New("authentication tests failed")

// Step names, in execution order.
const (
	StepEnvironment     = "Environment Variables"
	StepContainer       = "Container Environment"
	StepCredentialsFile = "Credentials File Access"
	StepGoogleAuth      = "Google Authentication"
	StepChronicleClient = "Chronicle Client"
	StepChronicleAPI    = "Chronicle API"
)

// ClientFactory creates a SecOps client.
type ClientFactory func(ctx context.Context) (*chronicle.SecOpsClient, error)

// StepResult records the outcome of one test step.
type StepResult struct {
	Name   string
	Passed bool
}

// Report summarizes a test run.
type Report struct {
	Steps    []StepResult
	Errors   []string
	Warnings []string
}

// Passed returns the number of passed steps.
func (r *Report) Passed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Passed {
			n++
		}
	}

	return n
}

// Success reports whether all steps passed and no errors were logged.
func (r *Report) Success() bool {
	return r.Passed() == len(r.Steps) && len(r.Errors) == 0
}

// Tester runs the authentication test suite.
type Tester struct {
	out         *status.Printer
	resolver    gcpauth.Resolver
	newClient   ClientFactory
	inContainer func() bool
	report      *Report
	verbose     bool
	container   bool
}

// TesterOpt configures a [Tester].
type TesterOpt func(*Tester)

// WithVerbose enables extra detail lines.
func WithVerbose(v bool) TesterOpt {
	return func(t *Tester) {
		t.verbose = v
	}
}

// WithContainerMode enables the container-specific steps.
func WithContainerMode(v bool) TesterOpt {
	return func(t *Tester) {
		t.container = v
	}
}

// WithResolver overrides the credential resolver.
func WithResolver(r gcpauth.Resolver) TesterOpt {
	return func(t *Tester) {
		t.resolver = r
	}
}

// WithClientFactory overrides how SecOps clients are created.
func WithClientFactory(f ClientFactory) TesterOpt {
	return func(t *Tester) {
		t.newClient = f
	}
}

// WithContainerDetector overrides container detection.
func WithContainerDetector(f func() bool) TesterOpt {
	return func(t *Tester) {
		t.inContainer = f
	}
}

// NewTester creates a new [Tester] writing to out.
func NewTester(out *status.Printer, opts ...TesterOpt) *Tester {
	t := &Tester{
		out:      out,
		resolver: gcpauth.ADCResolver{},
		newClient: func(ctx context.Context) (*chronicle.SecOpsClient, error) {
			return chronicle.NewSecOpsClient(ctx)
		},
		inContainer: gcpauth.InContainer,
		report:      &Report{},
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *Tester) fail(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	t.report.Errors = append(t.report.Errors, msg)
	t.out.Failure("FAILED: %s", msg)
}

func (t *Tester) warn(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	t.report.Warnings = append(t.report.Warnings, msg)
	t.out.Warning("WARNING: %s", msg)
}

func (t *Tester) pass(format string, a ...any) {
	t.out.Success("PASSED: %s", fmt.Sprintf(format, a...))
}

func (t *Tester) info(format string, a ...any) {
	t.out.Detail(format, a...)
}

func (t *Tester) debug(format string, a ...any) {
	if t.verbose {
		t.out.Detail(format, a...)
	}
}

func (t *Tester) record(name string, passed bool) {
	t.report.Steps = append(t.report.Steps, StepResult{Name: name, Passed: passed})
}

// Run executes every step and prints a summary. It returns an error
// wrapping [ErrTestsFailed] unless the run succeeded.
func (t *Tester) Run(ctx context.Context) (*Report, error) {
	t.report = &Report{}
	logger := log.WithContext(ctx)

	rule := strings.Repeat("=", 60)
	t.out.Println(rule)
	t.out.Header("Chronicle Authentication Test Suite")
	t.out.Println(rule)

	if t.container {
		t.info("Running in container mode")
	} else {
		t.info("Running in local mode")
	}

	steps := []struct {
		run  func(context.Context) bool
		name string
	}{
		{name: StepEnvironment, run: t.testEnvironment},
		{name: StepContainer, run: t.testContainer},
		{name: StepCredentialsFile, run: t.testCredentialsFile},
		{name: StepGoogleAuth, run: t.testGoogleAuth},
	}

	for _, s := range steps {
		t.out.Println()
		t.out.Header("--- %s ---", s.name)

		passed := s.run(ctx)
		t.record(s.name, passed)

		logger.DebugContext(ctx, "test step finished",
			slog.String("step", s.name),
			slog.Bool("passed", passed),
		)
	}

	if t.stepPassed(StepGoogleAuth) {
		t.out.Println()
		t.out.Header("--- Chronicle Client Initialization ---")

		client := t.testClientInit(ctx)
		t.record(StepChronicleClient, client != nil)

		if client != nil {
			t.out.Println()
			t.out.Header("--- Chronicle API Access ---")
			t.record(StepChronicleAPI, t.testAPIAccess(client))
		}
	}

	t.summarize(rule)

	if !t.report.Success() {
		return t.report, fmt.Errorf("%w: %d error(s)", ErrTestsFailed, len(t.report.Errors))
	}

	return t.report, nil
}

func (t *Tester) stepPassed(name string) bool {
	for _, s := range t.report.Steps {
		if s.Name == name {
			return s.Passed
		}
	}

	return false
}

func (t *Tester) summarize(rule string) {
	r := t.report

	t.out.Println()
	t.out.Println(rule)
	t.out.Header("Test Results Summary")
	t.out.Println(rule)

	for _, s := range r.Steps {
		if s.Passed {
			t.pass("%s: PASSED", s.Name)
		} else {
			// Summary lines are not counted as new errors.
			t.out.Failure("FAILED: %s: FAILED", s.Name)
		}
	}

	t.out.Println()
	t.out.Printf("Passed: %d/%d", r.Passed(), len(r.Steps))

	if len(r.Warnings) > 0 {
		t.out.Println()
		t.out.Printf("Warnings: %d", len(r.Warnings))

		for _, w := range r.Warnings {
			t.out.Warning("WARNING: %s", w)
		}
	}

	if len(r.Errors) > 0 {
		t.out.Println()
		t.out.Printf("Errors: %d", len(r.Errors))

		for _, e := range r.Errors {
			t.out.Failure("ERROR: %s", e)
		}
	}

	t.out.Println()

	if r.Success() {
		t.pass("All tests passed! Authentication is working correctly.")
	} else {
		t.out.Failure("FAILED: %d test(s) failed. Please check the errors above.", len(r.Errors))
	}
}

func (t *Tester) testEnvironment(context.Context) bool {
	t.info("Testing environment variables...")

	ok := true

	for _, k := range []string{chronicle.EnvProjectID, chronicle.EnvCustomerID} {
		v := os.Getenv(k)
		if v == "" {
			t.fail("Missing required environment variable: %s", k)

			ok = false

			continue
		}

		t.pass("%s: %s", k, gcpauth.Mask(v))
	}

	optional := []struct{ key, fallback string }{
		{chronicle.EnvRegion, chronicle.DefaultRegion},
		{bucket.EnvProject, "Not set (using " + chronicle.EnvProjectID + ")"},
		{gcpauth.EnvCredentials, "Not set (using ADC)"},
	}

	for _, o := range optional {
		v := os.Getenv(o.key)

		switch {
		case v == "":
			t.info("%s: %s", o.key, o.fallback)
		case o.key == gcpauth.EnvCredentials:
			t.info("%s: .../%s", o.key, filepath.Base(v))
		default:
			t.info("%s: %s", o.key, v)
		}
	}

	return ok
}

func (t *Tester) testContainer(context.Context) bool {
	if !t.container {
		return true
	}

	t.info("Testing container environment...")

	if t.inContainer() {
		t.pass("Running inside container environment")
	} else {
		t.warn("Not detected as container environment")
	}

	for _, k := range []string{"HOSTNAME", "PWD"} {
		if v := os.Getenv(k); v != "" {
			t.info("%s: %s", k, v)
		}
	}

	return true
}

func (t *Tester) testCredentialsFile(context.Context) bool {
	if !t.container {
		return true
	}

	t.info("Testing credentials file access (container mode)...")

	path := os.Getenv(gcpauth.EnvCredentials)
	if path == "" {
		t.warn("%s not set", gcpauth.EnvCredentials)

		return true
	}

	fc, err := gcpauth.CheckCredentialsFile(path)
	switch {
	case !fc.Exists:
		t.fail("Credentials file does not exist: %s", path)

		return false

	case !fc.Readable:
		t.pass("Credentials file exists: %s", path)
		t.fail("Credentials file is not readable")

		return false

	case err != nil:
		t.pass("Credentials file exists: %s", path)
		t.pass("Credentials file is readable")
		t.fail("Credentials file is not valid JSON")

		return false
	}

	t.pass("Credentials file exists: %s", path)
	t.pass("Credentials file is readable")

	if fc.Type == "" {
		t.warn("Credentials file missing 'type' field")
	} else {
		t.info("Credentials type: %s", fc.Type)
	}

	return true
}

func (t *Tester) testGoogleAuth(ctx context.Context) bool {
	t.info("Testing Google authentication...")

	info, err := t.resolver.Resolve(ctx)
	switch {
	case errors.Is(err, gcpauth.ErrDefaultCredentials):
		t.fail("Default credentials not found: %v", err)
		t.fail("Try: gcloud auth application-default login")

		return false

	case err != nil:
		t.fail("Google authentication failed: %v", err)

		return false
	}

	t.pass("Google auth successful")
	t.info("Project: %s", orNone(info.ProjectID))
	t.info("Credentials type: %s", info.CredentialsType)

	if info.ServiceAccount != "" {
		t.info("Service account: %s", info.ServiceAccount)
	} else {
		t.info("Using user credentials (ADC)")
	}

	t.info("Token valid: %t", info.TokenValid)

	return true
}

func (t *Tester) testClientInit(ctx context.Context) *chronicle.SecOpsClient {
	t.info("Testing Chronicle client initialization...")

	client, err := t.newClient(ctx)
	if err != nil {
		t.fail("Failed to initialize SecOpsClient: %v", err)

		return nil
	}

	t.pass("SecOpsClient initialized successfully")

	return client
}

// testAPIAccess binds the client to the configured instance. It issues no
// API requests.
func (t *Tester) testAPIAccess(client *chronicle.SecOpsClient) bool {
	t.info("Testing Chronicle API access...")

	cfg := chronicle.ConfigFromEnv()
	if cfg.Validate() != nil {
		t.warn("Missing Chronicle configuration for API test")

		return true
	}

	c, err := client.Chronicle(cfg.CustomerID, cfg.ProjectID, cfg.Region)
	if err != nil {
		t.fail("Chronicle API access failed: %v", err)

		return false
	}

	t.pass("Chronicle API connection established")
	t.info("Customer ID: %s", gcpauth.Mask(cfg.CustomerID))
	t.info("Project ID: %s", cfg.ProjectID)
	t.info("Region: %s", cfg.Region)
	t.debug("Endpoint: %s", c.Endpoint(""))
	t.pass("Chronicle API authentication successful")

	return true
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}

	return s
}
