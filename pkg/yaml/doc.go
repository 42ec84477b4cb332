// Package yaml wraps [github.com/goccy/go-yaml] with errors that annotate
// the offending source line, and validates decoded documents against JSON
// schemas.
package yaml
