// Package chronicle constructs authenticated clients for the Google Security
// Operations (Chronicle) API.
//
// Construction only resolves credentials and computes endpoints; no API
// requests are made until a caller issues one through [Client.HTTPClient].
package chronicle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"github.com/dandye/mcp-security/pkg/gcpauth"
)

const (
	// UserAgent is sent with every request.
	UserAgent = "secops-app/1.0"

	// DefaultRegion is used when no region is configured.
	DefaultRegion = "us"

	// APIVersion is the Chronicle API version used by [Client.Endpoint].
	APIVersion = "v1alpha"
)

// Environment variables read by [ConfigFromEnv].
const (
	EnvProjectID  = "CHRONICLE_PROJECT_ID"
	EnvCustomerID = "CHRONICLE_CUSTOMER_ID"
	EnvRegion     = "CHRONICLE_REGION"
)

var (
	// ErrMissingCustomerID is returned when no customer ID is given.
	ErrMissingCustomerID = errors.New("customer ID is required")

	// ErrMissingProjectID is returned when no project ID is given.
	ErrMissingProjectID = errors.New("project ID is required")

	// ErrClientInit is returned when the HTTP client cannot be created.
	ErrClientInit = errors.New("initialize SecOps client")
)

// Config identifies a Chronicle instance.
type Config struct {
	ProjectID  string
	CustomerID string
	Region     string
}

// ConfigFromEnv reads a [Config] from the CHRONICLE_* environment variables.
func ConfigFromEnv() Config {
	region := os.Getenv(EnvRegion)
	if region == "" {
		region = DefaultRegion
	}

	return Config{
		ProjectID:  os.Getenv(EnvProjectID),
		CustomerID: os.Getenv(EnvCustomerID),
		Region:     region,
	}
}

// Validate checks that the required fields are set.
func (c Config) Validate() error {
	var errs []error
	if c.ProjectID == "" {
		errs = append(errs, ErrMissingProjectID)
	}
	if c.CustomerID == "" {
		errs = append(errs, ErrMissingCustomerID)
	}

	return errors.Join(errs...)
}

// SecOpsClient holds an authenticated HTTP client.
type SecOpsClient struct {
	http *http.Client
}

// NewSecOpsClient creates a [SecOpsClient]. Application Default Credentials
// are used unless opts supply other credentials or an HTTP client.
func NewSecOpsClient(ctx context.Context, opts ...option.ClientOption) (*SecOpsClient, error) {
	opts = append([]option.ClientOption{
		option.WithScopes(gcpauth.ScopeCloudPlatform),
		option.WithUserAgent(UserAgent),
	}, opts...)

	hc, _, err := htransport.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClientInit, err)
	}

	return &SecOpsClient{http: hc}, nil
}

// Chronicle returns a [Client] for the given instance. An empty region
// defaults to [DefaultRegion].
func (s *SecOpsClient) Chronicle(customerID, projectID, region string) (*Client, error) {
	if region == "" {
		region = DefaultRegion
	}

	cfg := Config{ProjectID: projectID, CustomerID: customerID, Region: region}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Client{cfg: cfg, http: s.http}, nil
}

// Client is bound to a single Chronicle instance.
type Client struct {
	http *http.Client
	cfg  Config
}

// Config returns the instance configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// HTTPClient returns the authenticated HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// BaseURL returns the regional API endpoint.
func (c *Client) BaseURL() string {
	return fmt.Sprintf("https://%s-chronicle.googleapis.com", c.cfg.Region)
}

// InstancePath returns the instance resource name.
func (c *Client) InstancePath() string {
	return fmt.Sprintf("projects/%s/locations/%s/instances/%s",
		c.cfg.ProjectID, c.cfg.Region, c.cfg.CustomerID)
}

// Endpoint returns the URL of a resource below the instance, e.g.
// Endpoint("rules") for the rules collection.
func (c *Client) Endpoint(resource string) string {
	p, err := url.JoinPath(c.BaseURL(), APIVersion, c.InstancePath(), strings.TrimPrefix(resource, "/"))
	if err != nil {
		return c.BaseURL()
	}

	return p
}
