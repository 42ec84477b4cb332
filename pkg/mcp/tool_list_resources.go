package mcp

import (
	"context"
	"fmt"
	"slices"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dandye/mcp-security/pkg/resource"
)

// ListResourcesParams defines parameters for the list_resources tool.
type ListResourcesParams struct {
	Tag string `json:"tag,omitempty" jsonschema:"only list resources carrying this tag, e.g. persona, runbook or report"`
}

// ListResourcesResult contains the result of listing resources.
type ListResourcesResult struct {
	Message       string            `json:"message"`
	Resources     []ResourceSummary `json:"resources"`
	ResourceCount int               `json:"resourceCount"`
}

// ResourceSummary describes a registered file resource.
type ResourceSummary struct {
	URI         string   `json:"uri"`
	Name        string   `json:"name"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	MIMEType    string   `json:"mimeType"`
	Tags        []string `json:"tags"`
	Size        int64    `json:"size"`
}

func newResourceSummary(d resource.Descriptor) ResourceSummary {
	return ResourceSummary{
		URI:         d.URI,
		Name:        d.Name,
		Title:       d.Title,
		Description: d.Description,
		MIMEType:    d.MIMEType,
		Tags:        slices.Clone(d.Tags),
		Size:        d.Size,
	}
}

func (s *Server) handleListResources(
	_ context.Context,
	_ *mcp.CallToolRequest,
	params ListResourcesParams,
) (*mcp.CallToolResult, ListResourcesResult, error) {
	result := ListResourcesResult{
		Resources: []ResourceSummary{},
	}

	for _, d := range s.Resources() {
		if params.Tag != "" && !slices.Contains(d.Tags, params.Tag) {
			continue
		}

		result.Resources = append(result.Resources, newResourceSummary(d))
	}

	result.ResourceCount = len(result.Resources)
	result.Message = fmt.Sprintf("Found %d resources.", result.ResourceCount)
	if params.Tag != "" {
		result.Message = fmt.Sprintf("Found %d resources tagged %q.", result.ResourceCount, params.Tag)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Message},
		},
	}, result, nil
}
