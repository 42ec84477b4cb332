package resource_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandye/mcp-security/pkg/resource"
)

func TestMarkdownTitle(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input string
		want  string
	}{
		"atx heading":      {input: "# SOC Analyst (Tier 1)\n\nBody.", want: "SOC Analyst (Tier 1)"},
		"after paragraph":  {input: "intro\n\n## Second level\n", want: "Second level"},
		"setext heading":   {input: "Runbook\n=======\n", want: "Runbook"},
		"inline markup":    {input: "# Use `gsutil` *carefully*\n", want: "Use gsutil carefully"},
		"first of several": {input: "# One\n# Two\n", want: "One"},
		"no heading":       {input: "just text\n", want: ""},
		"empty":            {input: "", want: ""},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, resource.MarkdownTitle([]byte(tc.input)))
		})
	}
}

func TestMarkdownTitleFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ciso.md")
	require.NoError(t, os.WriteFile(path, []byte("# CISO\n"), 0o600))

	got, err := resource.MarkdownTitleFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CISO", got)

	_, err = resource.MarkdownTitleFile(filepath.Join(t.TempDir(), "absent.md"))
	require.Error(t, err)
}

func TestIsMarkdown(t *testing.T) {
	t.Parallel()

	assert.True(t, resource.IsMarkdown("text/markdown", "x.txt"))
	assert.True(t, resource.IsMarkdown("application/octet-stream", "x.MD"))
	assert.False(t, resource.IsMarkdown("application/octet-stream", "x.pdf"))
}
