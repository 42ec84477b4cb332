package resource_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandye/mcp-security/pkg/resource"
)

// writeTree creates files (slash-separated paths relative to root).
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

// realDir resolves symlinks in the temp dir (e.g. /tmp on macOS).
func realDir(t *testing.T) string {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	return dir
}

func byName(ds []resource.Descriptor) map[string]resource.Descriptor {
	m := map[string]resource.Descriptor{}
	for _, d := range ds {
		m[d.Name] = d
	}

	return m
}

func TestScanPersonas(t *testing.T) {
	t.Parallel()

	dir := realDir(t)
	writeTree(t, dir, map[string]string{
		"soc_analyst_tier1.md": "# Tier 1\n",
		"ciso.md":              "no heading",
		"personas.md":          "# Index\n",
		"notes.txt":            "ignored",
	})

	f, err := resource.FormatterByName(resource.FormatPersona)
	require.NoError(t, err)

	got, err := resource.Scan(t.Context(), resource.Spec{
		Dir:       dir,
		Tag:       "persona",
		Pattern:   "*.md",
		Formatter: f,
		MIMEType:  resource.MIMEMarkdown,
		Skip:      []string{"personas.md"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	m := byName(got)
	tier1 := m["Soc Analyst Tier1 Persona File"]
	assert.Equal(t, resource.Descriptor{
		URI:         "file://" + filepath.ToSlash(filepath.Join(dir, "soc_analyst_tier1.md")),
		Path:        filepath.Join(dir, "soc_analyst_tier1.md"),
		Name:        "Soc Analyst Tier1 Persona File",
		Description: "The Persona File for Soc Analyst Tier1",
		Title:       "Tier 1",
		MIMEType:    resource.MIMEMarkdown,
		Tags:        []string{"persona"},
		Size:        int64(len("# Tier 1\n")),
	}, tier1)

	assert.Contains(t, m, "Ciso Persona File")
	assert.Empty(t, m["Ciso Persona File"].Title)

	for _, d := range got {
		assert.NotEqual(t, "personas.md", filepath.Base(d.Path))
	}
}

func TestScanSkipsNamesAtAnyDepth(t *testing.T) {
	t.Parallel()

	dir := realDir(t)
	writeTree(t, dir, map[string]string{
		"a.md":             "",
		"skip.md":          "",
		"sub/skip.md":      "",
		"sub/deeper/b.md":  "",
		"sub/deeper/c.md":  "",
		"other/README.md":  "",
		"other/skip.md.md": "",
	})

	got, err := resource.Scan(t.Context(), resource.Spec{
		Dir:     dir,
		Tag:     "runbook",
		Pattern: "*.md",
		Skip:    []string{"skip.md", "README.md"},
	})
	require.NoError(t, err)

	names := []string{}
	for _, d := range got {
		names = append(names, d.Name)
	}

	assert.ElementsMatch(t, []string{"a.md", "b.md", "c.md", "skip.md.md"}, names)
}

func TestScanTags(t *testing.T) {
	t.Parallel()

	dir := realDir(t)
	writeTree(t, dir, map[string]string{
		"malware/triage/contain.md": "",
		"runbook/dup.md":            "",
		"top.md":                    "",
	})

	f, err := resource.FormatterByName(resource.FormatRunbook)
	require.NoError(t, err)

	got, err := resource.Scan(t.Context(), resource.Spec{
		Dir:       dir,
		Tag:       "runbook",
		Pattern:   "*.md",
		Formatter: f,
	})
	require.NoError(t, err)

	m := byName(got)
	assert.Equal(t, []string{"malware", "runbook", "triage"}, m["Malware - Triage - Contain Runbook"].Tags)
	assert.Equal(t, []string{"runbook"}, m["Runbook - Dup Runbook"].Tags)
	assert.Equal(t, []string{"runbook"}, m["Top Runbook"].Tags)
}

func TestScanReportsGlob(t *testing.T) {
	t.Parallel()

	dir := realDir(t)
	writeTree(t, dir, map[string]string{
		"case.pdf":          "%PDF",
		"Makefile":          "no extension",
		"2025/summary.json": "{}",
	})

	f, err := resource.FormatterByName(resource.FormatReport)
	require.NoError(t, err)

	got, err := resource.Scan(t.Context(), resource.Spec{
		Dir:       dir,
		Tag:       "report",
		Pattern:   "*.*",
		Formatter: f,
		MIMEType:  "application/octet-stream",
	})
	require.NoError(t, err)

	m := byName(got)
	assert.Len(t, m, 2)
	assert.Equal(t, []string{"2025", "report"}, m["Report: summary.json"].Tags)
	assert.Equal(t, "application/octet-stream", m["Report: case.pdf"].MIMEType)
	assert.Empty(t, m["Report: case.pdf"].Title)
}

func TestScanSymlinks(t *testing.T) {
	t.Parallel()

	target := realDir(t)
	writeTree(t, target, map[string]string{"real.md": "# Real\n"})

	dir := realDir(t)
	require.NoError(t, os.Symlink(filepath.Join(target, "real.md"), filepath.Join(dir, "link.md")))
	require.NoError(t, os.Symlink(filepath.Join(target, "gone.md"), filepath.Join(dir, "dangling.md")))

	got, err := resource.Scan(t.Context(), resource.Spec{Dir: dir, Pattern: "*.md"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "link.md", got[0].Name)
	assert.Equal(t, filepath.Join(target, "real.md"), got[0].Path)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(target, "real.md")), got[0].URI)
	assert.Equal(t, "Real", got[0].Title)
}

func TestScanSymlinkedRoot(t *testing.T) {
	t.Parallel()

	target := realDir(t)
	writeTree(t, target, map[string]string{"ir/malware_case.md": "# Malware\n"})

	link := filepath.Join(realDir(t), "run_books")
	require.NoError(t, os.Symlink(target, link))

	f, err := resource.FormatterByName(resource.FormatRunbook)
	require.NoError(t, err)

	got, err := resource.Scan(t.Context(), resource.Spec{
		Dir:       link,
		Tag:       "runbook",
		Pattern:   "*.md",
		Formatter: f,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "Ir - Malware case Runbook", got[0].Name)
	assert.Equal(t, []string{"ir", "runbook"}, got[0].Tags)
	assert.Equal(t, filepath.Join(target, "ir", "malware_case.md"), got[0].Path)
}

func TestScanMatchingDirectoryIsSkipped(t *testing.T) {
	t.Parallel()

	dir := realDir(t)
	writeTree(t, dir, map[string]string{"folder.md/inner.md": ""})

	got, err := resource.Scan(t.Context(), resource.Spec{Dir: dir, Pattern: "*.md"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "inner.md", got[0].Name)
	assert.Equal(t, []string{"folder.md"}, got[0].Tags)
}

func TestScanMissingDir(t *testing.T) {
	t.Parallel()

	got, err := resource.Scan(t.Context(), resource.Spec{
		Dir:     filepath.Join(t.TempDir(), "absent"),
		Pattern: "*.md",
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanBadPattern(t *testing.T) {
	t.Parallel()

	_, err := resource.Scan(t.Context(), resource.Spec{Dir: t.TempDir(), Pattern: "["})
	require.ErrorIs(t, err, filepath.ErrBadPattern)
}

func TestStat(t *testing.T) {
	t.Parallel()

	dir := realDir(t)
	writeTree(t, dir, map[string]string{"README.md": "# Readme\n"})

	got, err := resource.Stat(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(dir, "README.md")), got.URI)
	assert.Equal(t, int64(9), got.Size)

	_, err = resource.Stat(dir)
	require.ErrorIs(t, err, resource.ErrNotRegular)

	_, err = resource.Stat(filepath.Join(dir, "missing.md"))
	require.Error(t, err)
}
