package resource

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnknownFormat is returned by [FormatterByName] for unknown formats.
var ErrUnknownFormat = errors.New("unknown format")

// Formatter derives a resource name and description from a file path and
// the directory the file was found under.
type Formatter struct {
	Name        func(file, baseDir string) string
	Description func(file, baseDir string) string
}

// Built-in format names.
const (
	FormatPersona = "persona"
	FormatRunbook = "runbook"
	FormatReport  = "report"
)

var formatters = map[string]Formatter{
	FormatPersona: {
		Name: func(file, _ string) string {
			return personaName(file) + " Persona File"
		},
		Description: func(file, _ string) string {
			return "The Persona File for " + personaName(file)
		},
	},
	FormatRunbook: {
		Name: func(file, baseDir string) string {
			return runbookName(file, baseDir) + " Runbook"
		},
		Description: func(file, baseDir string) string {
			return "The Runbook for " + runbookName(file, baseDir)
		},
	},
	FormatReport: {
		Name: func(file, _ string) string {
			return "Report: " + filepath.Base(file)
		},
		Description: func(file, _ string) string {
			return "Report file " + filepath.Base(file)
		},
	},
}

// FormatterByName returns a built-in [Formatter].
func FormatterByName(name string) (Formatter, error) {
	f, ok := formatters[name]
	if !ok {
		return Formatter{}, fmt.Errorf("%w %q, must be one of: %s",
			ErrUnknownFormat, name, strings.Join(FormatNames(), ", "))
	}

	return f, nil
}

// FormatNames returns the built-in format names, sorted.
func FormatNames() []string {
	names := make([]string, 0, len(formatters))
	for n := range formatters {
		names = append(names, n)
	}

	slices.Sort(names)

	return names
}

// personaName turns "soc_analyst_tier1.md" into "Soc Analyst Tier1".
func personaName(file string) string {
	parts := strings.Split(stem(file), "_")
	for i, p := range parts {
		parts[i] = capitalize(p)
	}

	return strings.Join(parts, " ")
}

// runbookName joins the capitalized parent directories (relative to baseDir)
// and file stem with " - ", e.g. "Malware - Triage steps".
func runbookName(file, baseDir string) string {
	parts := []string{}

	rel, err := filepath.Rel(baseDir, filepath.Dir(file))
	if err == nil && rel != "." {
		for _, d := range strings.Split(filepath.ToSlash(rel), "/") {
			if d == "" || d == "." {
				continue
			}

			parts = append(parts, capitalize(strings.ReplaceAll(d, "_", " ")))
		}
	}

	if s := capitalize(strings.ReplaceAll(stem(file), "_", " ")); s != "" {
		parts = append(parts, s)
	}

	return strings.Join(parts, " - ")
}

func stem(file string) string {
	base := filepath.Base(file)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// capitalize upper-cases the first letter of s and lower-cases the rest.
func capitalize(s string) string {
	// Casers are stateful and not safe for concurrent use.
	s = cases.Lower(language.Und).String(s)

	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}

	return string(unicode.ToTitle(r)) + s[size:]
}
