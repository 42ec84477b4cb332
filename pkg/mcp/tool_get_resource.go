package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dandye/mcp-security/pkg/resource"
)

// ErrInvalidInput is returned when a tool receives unusable arguments.
var ErrInvalidInput = errors.New("invalid input")

// GetResourceParams defines parameters for the get_resource tool.
type GetResourceParams struct {
	URI  string `json:"uri,omitempty"  jsonschema:"the URI of the resource, as returned by list_resources"`
	Name string `json:"name,omitempty" jsonschema:"the exact name of the resource, as returned by list_resources"`
}

// GetResourceResult contains the result of getting a single resource.
type GetResourceResult struct {
	Resource  *ResourceSummary `json:"resource,omitempty"`
	Content   string           `json:"content,omitempty"`
	Found     bool             `json:"found"`
	Truncated bool             `json:"truncated,omitempty"`
}

func (s *Server) handleGetResource(
	_ context.Context,
	_ *mcp.CallToolRequest,
	params GetResourceParams,
) (*mcp.CallToolResult, GetResourceResult, error) {
	if params.URI == "" && params.Name == "" {
		return nil, GetResourceResult{}, fmt.Errorf("%w: one of uri or name is required", ErrInvalidInput)
	}

	d, ok := s.findResource(params)
	if !ok {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: formatNotFound(params)},
			},
		}, GetResourceResult{}, nil
	}

	summary := newResourceSummary(d)
	result := GetResourceResult{
		Resource: &summary,
		Found:    true,
	}

	text := fmt.Sprintf("Found resource %q (%s).", d.Name, d.MIMEType)

	if isText(d.MIMEType) {
		b, err := os.ReadFile(d.Path)
		if err != nil {
			return nil, GetResourceResult{}, fmt.Errorf("read %s: %w", d.URI, err)
		}

		result.Content, result.Truncated = truncateString(string(b), maxContentBytes)
		text = result.Content
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, result, nil
}

func (s *Server) findResource(params GetResourceParams) (resource.Descriptor, bool) {
	for _, d := range s.Resources() {
		if params.URI != "" && d.URI != params.URI {
			continue
		}
		if params.Name != "" && d.Name != params.Name {
			continue
		}

		return d, true
	}

	return resource.Descriptor{}, false
}

func formatNotFound(params GetResourceParams) string {
	id := params.URI
	if id == "" {
		id = params.Name
	}

	return fmt.Sprintf(
		"INVALID INPUT ERROR: Resource %q not found. Use an EXACT INPUT from the list_resources tool.",
		id,
	)
}
