package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dandye/mcp-security/pkg/log"
)

// SetActivePersonaParams defines parameters for the set_active_persona tool.
type SetActivePersonaParams struct {
	Persona string `json:"persona"`
}

// PersonaResult reports the persona in effect.
type PersonaResult struct {
	Persona string `json:"persona"`
}

func (s *Server) handleSetActivePersona(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params SetActivePersonaParams,
) (*mcp.CallToolResult, PersonaResult, error) {
	first, err := s.personas.Set(req.Session, params.Persona)
	if err != nil {
		return nil, PersonaResult{}, fmt.Errorf("%w: choose one of %v", err, s.personas.Personas())
	}

	if first {
		s.personas.forgetOnClose(ctx, req.Session)
	}

	log.WithContext(ctx).InfoContext(ctx, "active persona changed",
		slog.String("session", req.Session.ID()),
		slog.String("persona", params.Persona),
	)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Active persona is now %q.", params.Persona)},
		},
	}, PersonaResult{Persona: params.Persona}, nil
}
