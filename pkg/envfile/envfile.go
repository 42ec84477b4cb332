// Package envfile reads and updates line-oriented KEY=VALUE configuration
// files (".env" files).
//
// Values are parsed with [github.com/joho/godotenv], so quoting, inline
// comments and the "export" prefix behave the same way as in other dotenv
// tooling. Updates rewrite only the affected lines; comments, blank lines and
// ordering are preserved.
//
// Process environment variables always take precedence over file values:
// [File.Lookup] prefers the environment, and [File.Apply] never overwrites a
// variable that is already set.
package envfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

var (
	// ErrInvalidKey is returned when a key cannot be written to an env file.
	ErrInvalidKey = errors.New("invalid key")

	// ErrUnrepresentableValue is returned when a value would not read back
	// unchanged from an env file line.
	ErrUnrepresentableValue = errors.New("value cannot be written to env file")
)

// File is an in-memory view of an env file.
type File struct {
	values map[string]string
	path   string
	lines  []string
}

// Load reads the env file at path. A missing file is not an error; the
// returned [File] is empty and will be created on the first [File.Update].
func Load(path string) (*File, error) {
	f := &File{
		path:   path,
		values: map[string]string{},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read env file %q: %w", path, err)
	}

	values, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse env file %q: %w", path, err)
	}

	f.values = values
	f.lines = splitLines(data)

	return f, nil
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Get returns the value stored in the file for key.
func (f *File) Get(key string) (string, bool) {
	v, ok := f.values[key]

	return v, ok
}

// Lookup returns the value of key from the process environment if it is set
// and non-empty, otherwise the value stored in the file.
func (f *File) Lookup(key string) (string, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}

	v, ok := f.values[key]
	if !ok || v == "" {
		return "", false
	}

	return v, true
}

// Keys returns the keys stored in the file, sorted.
func (f *File) Keys() []string {
	return slices.Sorted(maps.Keys(f.values))
}

// Apply exports file values into the process environment. Only the given
// keys are considered, or every key in the file if none are given. Variables
// that are already set in the environment are left untouched, as are empty
// file values. It returns the keys that were exported.
func (f *File) Apply(keys ...string) []string {
	if len(keys) == 0 {
		keys = f.Keys()
	}

	applied := []string{}
	for _, key := range keys {
		v, ok := f.values[key]
		if !ok || v == "" {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, v); err != nil {
			continue
		}

		applied = append(applied, key)
	}

	return applied
}

// Update sets key to value, replacing existing lines for key in place or
// appending a new line, and writes the file.
func (f *File) Update(key, value string) error {
	if key == "" || strings.ContainsAny(key, "= \t\n#") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	line := fmt.Sprintf("%s=%s", key, quote(value))

	parsed, err := godotenv.Unmarshal(line)
	if err != nil || parsed[key] != value {
		return fmt.Errorf("%w: %s", ErrUnrepresentableValue, key)
	}

	replaced := false
	lines := make([]string, 0, len(f.lines)+1)
	for _, l := range f.lines {
		if lineKey(l) != key {
			lines = append(lines, l)

			continue
		}
		if !replaced {
			lines = append(lines, line)
			replaced = true
		}
	}
	if !replaced {
		lines = append(lines, line)
	}

	err = f.write(lines)
	if err != nil {
		return err
	}

	f.lines = lines
	f.values[key] = value

	return nil
}

func (f *File) write(lines []string) error {
	err := os.MkdirAll(filepath.Dir(f.path), 0o755)
	if err != nil {
		return fmt.Errorf("create env file directory: %w", err)
	}

	var b bytes.Buffer
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}

	err = os.WriteFile(f.path, b.Bytes(), 0o600)
	if err != nil {
		return fmt.Errorf("write env file %q: %w", f.path, err)
	}

	return nil
}

// lineKey returns the key assigned on an env file line, or "" for blank
// lines, comments and lines without an assignment.
func lineKey(line string) string {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "#") {
		return ""
	}

	s = strings.TrimPrefix(s, "export ")

	key, _, ok := strings.Cut(s, "=")
	if !ok {
		return ""
	}

	return strings.TrimSpace(key)
}

func splitLines(data []byte) []string {
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}

	return strings.Split(s, "\n")
}

// quote wraps values that godotenv would otherwise split, strip or expand.
func quote(v string) string {
	if v == "" || !strings.ContainsAny(v, " \t#\"'\\$\n") {
		return v
	}
	if !strings.ContainsAny(v, "'\n") {
		return "'" + v + "'"
	}

	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(v) + `"`
}
