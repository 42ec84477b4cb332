// Package mcp serves agent resources (personas, runbooks and reports) and
// security operations toolsets over the Model Context Protocol.
package mcp

import (
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
)

const (
	name         = "Google Security Operations MCP server"
	instructions = `MCP Server 'Google Security Operations' exposes the personas, runbooks and reports of an agentic runbooks checkout, plus security operations tools backed by Chronicle.

When to use these resources and tools:
- Read 'resource://personas-available-list' to learn which personas exist
- Call 'set_active_persona' to adopt a persona for this session, then read its persona file
- Use 'list_resources' with a tag (e.g. "persona", "runbook", "report") to find files, and 'get_resource' to read one
- Read 'resource://persona-active-get' to check the persona currently in effect

IMPORTANT: Follow the runbook that matches the task before calling any security operations tool.
`

	// URIGreeting is a static text resource useful for smoke tests.
	URIGreeting = "resource://greeting"
	// URIPersonaActive reports the persona active for the calling session.
	URIPersonaActive = "resource://persona-active-get"
	// URIPersonasAvailable lists the selectable personas.
	URIPersonasAvailable = "resource://personas-available-list"

	greeting = "Hello from FastMCP Resources!"

	mimeJSON = "application/json"
	mimeText = "text/plain"

	// Maximum number of bytes of file content returned by get_resource.
	maxContentBytes = 64 * 1024
)

func newSetActivePersonaSchema(personas []string) *jsonschema.Schema {
	enum := make([]any, 0, len(personas))
	for _, p := range personas {
		enum = append(enum, p)
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"persona": {
				Type:        "string",
				Description: "The persona to adopt for the rest of this session.",
				Enum:        enum,
			},
		},
		Required: []string{"persona"},
	}
}

// truncateString truncates a string to at most maxLen bytes, on a rune
// boundary, with a marker if needed.
func truncateString(str string, maxLen int) (string, bool) {
	if len(str) <= maxLen {
		return str, false
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(str[cut]) {
		cut--
	}

	return str[:cut] + "\n[OUTPUT TRUNCATED]", true
}
