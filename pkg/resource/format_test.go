package resource_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandye/mcp-security/pkg/resource"
)

func TestFormatters(t *testing.T) {
	t.Parallel()

	base := filepath.FromSlash("/bank/run_books")

	tcs := map[string]struct {
		format   string
		file     string
		wantName string
		wantDesc string
	}{
		"persona": {
			format:   resource.FormatPersona,
			file:     "/bank/personas/soc_analyst_tier1.md",
			wantName: "Soc Analyst Tier1 Persona File",
			wantDesc: "The Persona File for Soc Analyst Tier1",
		},
		"persona upper case": {
			format:   resource.FormatPersona,
			file:     "/bank/personas/CISO.md",
			wantName: "Ciso Persona File",
			wantDesc: "The Persona File for Ciso",
		},
		"runbook at root": {
			format:   resource.FormatRunbook,
			file:     "/bank/run_books/triage_alerts.md",
			wantName: "Triage alerts Runbook",
			wantDesc: "The Runbook for Triage alerts",
		},
		"runbook nested": {
			format:   resource.FormatRunbook,
			file:     "/bank/run_books/incident_response/MALWARE/contain_host.md",
			wantName: "Incident response - Malware - Contain host Runbook",
			wantDesc: "The Runbook for Incident response - Malware - Contain host",
		},
		"report": {
			format:   resource.FormatReport,
			file:     "/bank/reports/case_42.pdf",
			wantName: "Report: case_42.pdf",
			wantDesc: "Report file case_42.pdf",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f, err := resource.FormatterByName(tc.format)
			require.NoError(t, err)

			file := filepath.FromSlash(tc.file)
			assert.Equal(t, tc.wantName, f.Name(file, base))
			assert.Equal(t, tc.wantDesc, f.Description(file, base))
		})
	}
}

func TestFormatterByNameUnknown(t *testing.T) {
	t.Parallel()

	_, err := resource.FormatterByName("playbook")
	require.ErrorIs(t, err, resource.ErrUnknownFormat)
	assert.Contains(t, err.Error(), "persona, report, runbook")
}
