package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"

	"github.com/dandye/mcp-security/pkg/chronicle"
)

// Toolset registers a group of tools on the server.
type Toolset interface {
	Name() string
	Register(server *mcp.Server, deps *Deps) error
}

// ChronicleFactory returns a Chronicle client, building it on first use.
type ChronicleFactory func(ctx context.Context) (*chronicle.Client, error)

// Deps are shared with every [Toolset].
type Deps struct {
	Chronicle ChronicleFactory
	Tracer    trace.Tracer
}

// NewChronicleFactory returns a [ChronicleFactory] for cfg. The client is
// created once; failures are not cached so a later call may succeed.
func NewChronicleFactory(cfg chronicle.Config, opts ...option.ClientOption) ChronicleFactory {
	var (
		mu     sync.Mutex
		client *chronicle.Client
	)

	return func(ctx context.Context) (*chronicle.Client, error) {
		mu.Lock()
		defer mu.Unlock()

		if client != nil {
			return client, nil
		}

		err := cfg.Validate()
		if err != nil {
			return nil, fmt.Errorf("chronicle config (set %s and %s): %w",
				chronicle.EnvProjectID, chronicle.EnvCustomerID, err)
		}

		secops, err := chronicle.NewSecOpsClient(ctx, opts...)
		if err != nil {
			return nil, err
		}

		c, err := secops.Chronicle(cfg.CustomerID, cfg.ProjectID, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("create chronicle client: %w", err)
		}

		client = c

		return client, nil
	}
}

// InstanceToolset exposes the Chronicle instance the server is bound to.
type InstanceToolset struct{}

// InstanceParams is the (empty) input of get_chronicle_instance.
type InstanceParams struct{}

// InstanceResult describes a Chronicle instance.
type InstanceResult struct {
	ProjectID  string `json:"projectId"`
	CustomerID string `json:"customerId"`
	Region     string `json:"region"`
	Instance   string `json:"instance"`
	Endpoint   string `json:"endpoint"`
}

func (InstanceToolset) Name() string {
	return "chronicle"
}

func (InstanceToolset) Register(server *mcp.Server, deps *Deps) error {
	if deps.Chronicle == nil {
		return fmt.Errorf("toolset %q: no chronicle factory", InstanceToolset{}.Name())
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_chronicle_instance",
		Description: "Describe the Chronicle instance (project, customer, region and API endpoint) that security operations tools act on.",
	}, WithTracing(deps.Tracer, func(
		ctx context.Context,
		_ *mcp.CallToolRequest,
		_ InstanceParams,
	) (*mcp.CallToolResult, InstanceResult, error) {
		c, err := deps.Chronicle(ctx)
		if err != nil {
			return nil, InstanceResult{}, err
		}

		cfg := c.Config()

		return nil, InstanceResult{
			ProjectID:  cfg.ProjectID,
			CustomerID: cfg.CustomerID,
			Region:     cfg.Region,
			Instance:   c.InstancePath(),
			Endpoint:   c.Endpoint(""),
		}, nil
	}))

	return nil
}
