package gcpauth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dandye/mcp-security/pkg/ui/status"
)

// EnvCredentials names the variable pointing at a credentials file.
const EnvCredentials = "GOOGLE_APPLICATION_CREDENTIALS"

var (
	// ErrServiceAccountRequired is returned when impersonation is requested
	// without a service account.
	ErrServiceAccountRequired = errors.New("--service-account required for impersonation mode")

	// ErrKeyFileRequired is returned when service-account mode is requested
	// without a key file.
	ErrKeyFileRequired = errors.New("--key-file required for service-account mode")

	// ErrKeyFileNotFound is returned when the key file does not exist.
	ErrKeyFileNotFound = errors.New("key file not found")
)

// Options holds mode-specific settings.
type Options struct {
	ServiceAccount string
	KeyFile        string
}

// Setup prepares the environment for mode and prints what the user is
// expected to have configured.
func Setup(mode Mode, opts Options, out *status.Printer) error {
	rule := strings.Repeat("-", 40)

	out.Println()
	out.Header("Setting up authentication mode: %s", mode)
	out.Println(rule)

	switch mode {
	case ModeADC:
		out.Println("Using Application Default Credentials (ADC)")
		out.Hint("Ensure you've run: gcloud auth application-default login")

	case ModeImpersonation:
		if opts.ServiceAccount == "" {
			out.Failure("ERROR: %s", ErrServiceAccountRequired)

			return ErrServiceAccountRequired
		}

		out.Printf("Using service account impersonation: %s", opts.ServiceAccount)
		out.Println("Ensure you've run:")
		out.Hint("  %s", ImpersonationLoginHint(opts.ServiceAccount))

	case ModeServiceAccount:
		if opts.KeyFile == "" {
			out.Failure("ERROR: %s", ErrKeyFileRequired)

			return ErrKeyFileRequired
		}

		_, err := os.Stat(opts.KeyFile)
		if err != nil {
			out.Failure("ERROR: Key file not found: %s", opts.KeyFile)

			return fmt.Errorf("%w: %s", ErrKeyFileNotFound, opts.KeyFile)
		}

		err = os.Setenv(EnvCredentials, opts.KeyFile)
		if err != nil {
			return fmt.Errorf("set %s: %w", EnvCredentials, err)
		}

		out.Printf("Using service account key file: %s", opts.KeyFile)

	case ModeContainer:
		out.Println("Container mode: expecting pre-configured environment")
		out.Println("Authentication should be configured by container runtime")

	default:
		return fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}

	out.Println(rule)

	return nil
}

// ImpersonationLoginHint returns the gcloud command that creates ADC
// impersonating serviceAccount.
func ImpersonationLoginHint(serviceAccount string) string {
	return "gcloud auth application-default login --impersonate-service-account=" + serviceAccount
}
