package gcpauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/oauth2/google"
)

// ScopeCloudPlatform is the OAuth scope requested for Google Cloud APIs.
const ScopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"

var (
	// ErrDefaultCredentials is returned when no default credentials are found.
	ErrDefaultCredentials = errors.New("default credentials not found")

	// ErrTokenRefresh is returned when a token cannot be obtained.
	ErrTokenRefresh = errors.New("token refresh failed")

	// ErrInvalidCredentialsFile is returned for unreadable or malformed
	// credential files.
	ErrInvalidCredentialsFile = errors.New("invalid credentials file")
)

// Info describes resolved credentials.
type Info struct {
	// ProjectID is the project associated with the credentials, if any.
	ProjectID string
	// CredentialsType is the credential file "type", or "compute_metadata"
	// when credentials come from the metadata server.
	CredentialsType string
	// ServiceAccount is the service account email, if the credentials
	// belong to (or impersonate) one.
	ServiceAccount string
	// TokenValid reports whether an access token was obtained.
	TokenValid bool
}

// Resolver resolves credentials.
type Resolver interface {
	Resolve(ctx context.Context) (*Info, error)
}

// Make sure ADCResolver satisfies Resolver interface.
var _ Resolver = ADCResolver{}

// ADCResolver resolves Application Default Credentials.
type ADCResolver struct {
	// Scopes requested for the token. Defaults to [ScopeCloudPlatform].
	Scopes []string
}

// Resolve finds the default credentials and fetches a token to confirm they
// can be refreshed. When the token cannot be fetched the partial [Info] is
// returned together with an error wrapping [ErrTokenRefresh].
func (r ADCResolver) Resolve(ctx context.Context) (*Info, error) {
	scopes := r.Scopes
	if len(scopes) == 0 {
		scopes = []string{ScopeCloudPlatform}
	}

	creds, err := google.FindDefaultCredentials(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDefaultCredentials, err)
	}

	info := &Info{
		ProjectID:       creds.ProjectID,
		CredentialsType: "compute_metadata",
	}
	if len(creds.JSON) > 0 {
		info.CredentialsType, info.ServiceAccount = DescribeCredentialsJSON(creds.JSON)
	}

	tok, err := creds.TokenSource.Token()
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrTokenRefresh, err)
	}

	info.TokenValid = tok.Valid()

	return info, nil
}

type credentialsFile struct {
	Type                           string `json:"type"`
	ClientEmail                    string `json:"client_email"`
	ServiceAccountImpersonationURL string `json:"service_account_impersonation_url"`
}

// DescribeCredentialsJSON returns the credential type and service account
// email contained in a credentials file. The service account is taken from
// "client_email", or from the impersonation URL for impersonated and
// external account credentials.
func DescribeCredentialsJSON(data []byte) (string, string) {
	var f credentialsFile

	err := json.Unmarshal(data, &f)
	if err != nil {
		return "", ""
	}

	if f.ClientEmail != "" {
		return f.Type, f.ClientEmail
	}

	return f.Type, serviceAccountFromURL(f.ServiceAccountImpersonationURL)
}

// serviceAccountFromURL extracts EMAIL from
// ".../serviceAccounts/EMAIL:generateAccessToken".
func serviceAccountFromURL(u string) string {
	_, rest, ok := strings.Cut(u, "/serviceAccounts/")
	if !ok {
		return ""
	}

	email, _, _ := strings.Cut(rest, ":")

	return email
}

// FileCheck is the result of [CheckCredentialsFile].
type FileCheck struct {
	// Type is the credential "type" field; empty if missing.
	Type     string
	Exists   bool
	Readable bool
}

// CheckCredentialsFile checks that path exists, is readable and contains a
// JSON object. A missing "type" field is reported via an empty
// [FileCheck.Type] rather than an error.
func CheckCredentialsFile(path string) (FileCheck, error) {
	var fc FileCheck

	_, err := os.Stat(path)
	if err != nil {
		return fc, fmt.Errorf("%w: %w", ErrInvalidCredentialsFile, err)
	}

	fc.Exists = true

	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("%w: %w", ErrInvalidCredentialsFile, err)
	}

	fc.Readable = true

	var f credentialsFile

	err = json.Unmarshal(data, &f)
	if err != nil {
		return fc, fmt.Errorf("%w: not valid JSON: %w", ErrInvalidCredentialsFile, err)
	}

	fc.Type = f.Type

	return fc, nil
}

// ContainerIndicators are paths whose presence suggests a container runtime.
var ContainerIndicators = []string{"/.dockerenv", "/proc/self/cgroup"}

// InContainer reports whether any of [ContainerIndicators] exists.
func InContainer() bool {
	return DetectContainer(ContainerIndicators...)
}

// DetectContainer reports whether any of paths exists.
func DetectContainer(paths ...string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}

	return false
}

// Mask shortens sensitive values to their first eight characters.
func Mask(value string) string {
	if utf8.RuneCountInString(value) <= 8 {
		return value
	}

	return string([]rune(value)[:8]) + "..."
}
