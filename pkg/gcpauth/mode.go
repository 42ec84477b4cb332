// Package gcpauth configures and inspects Google Cloud credentials.
//
// Credentials are resolved with Application Default Credentials (ADC) via
// [golang.org/x/oauth2/google]. The [Mode] selected on the command line only
// changes how the environment is prepared before resolution; resolution
// itself is always ADC.
package gcpauth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Mode selects how credentials are provided.
type Mode string

const (
	// ModeADC uses the user's application default credentials.
	ModeADC Mode = "adc"
	// ModeImpersonation uses ADC created with service account impersonation.
	ModeImpersonation Mode = "impersonation"
	// ModeServiceAccount uses a service account key file.
	ModeServiceAccount Mode = "service-account"
	// ModeContainer expects the container runtime to provide credentials.
	ModeContainer Mode = "container"
)

// ErrUnknownMode is returned for unsupported authentication modes.
var ErrUnknownMode = errors.New("unknown auth mode")

// AllModes lists every supported [Mode].
var AllModes = []Mode{ModeADC, ModeImpersonation, ModeServiceAccount, ModeContainer}

// ParseMode parses s as a [Mode].
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(AllModes, m) {
		return m, nil
	}

	return "", fmt.Errorf("%w %q, must be one of: %s", ErrUnknownMode, s, ModeNames())
}

// ModeNames returns the supported modes as a comma-separated list.
func ModeNames() string {
	names := make([]string, 0, len(AllModes))
	for _, m := range AllModes {
		names = append(names, string(m))
	}

	return strings.Join(names, ", ")
}

func (m Mode) String() string {
	return string(m)
}

// Set implements [github.com/spf13/pflag.Value].
func (m *Mode) Set(s string) error {
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}

// Type implements [github.com/spf13/pflag.Value].
func (m *Mode) Type() string {
	return "mode"
}
