package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/invopop/jsonschema"

	"github.com/dandye/mcp-security/pkg/resource"
	"github.com/dandye/mcp-security/pkg/yaml"
)

const (
	// APIVersion is the supported configuration API version.
	APIVersion = "secopsctl.dandye.github.io/v1"
	// Kind is the supported configuration kind.
	Kind = "ServerConfiguration"

	// MIMEOctetStream is the MIME type used for binary resources.
	MIMEOctetStream = "application/octet-stream"
)

var (
	// ErrInvalidConfig is returned for configurations that fail validation.
	ErrInvalidConfig = errors.New("invalid config")

	// DefaultPersonas are the personas offered when none are configured.
	DefaultPersonas = []string{
		"soc_analyst_tier1",
		"soc_analyst_tier2",
		"soc_analyst_tier3",
		"ciso",
	}
)

//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	// APIVersion specifies the API version for this configuration.
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`
	// Kind defines the type of configuration.
	Kind string `json:"kind" jsonschema:"title=Kind"`
	// BasePath is the directory relative paths are resolved against.
	// Defaults to the working directory.
	BasePath string `json:"basePath,omitempty" jsonschema:"title=Base Path"`
	// DefaultPersona is reported when a session has not selected a persona.
	DefaultPersona string `json:"defaultPersona,omitempty" jsonschema:"title=Default Persona"`
	// Personas lists the selectable personas.
	Personas []string `json:"personas,omitempty" jsonschema:"title=Personas"`
	// Files are individual files exposed as resources.
	Files []*File `json:"files,omitempty" jsonschema:"title=Files"`
	// Directories are scanned recursively for resources.
	Directories []*Directory `json:"directories,omitempty" jsonschema:"title=Directories"`
}

// File is a single file resource.
type File struct {
	Path        string   `json:"path" jsonschema:"title=Path"`
	Name        string   `json:"name,omitempty" jsonschema:"title=Name"`
	Description string   `json:"description,omitempty" jsonschema:"title=Description"`
	MIMEType    string   `json:"mimeType,omitempty" jsonschema:"title=MIME Type"`
	Tags        []string `json:"tags,omitempty" jsonschema:"title=Tags"`
}

// Directory is a tree of file resources.
type Directory struct {
	// Path of the directory to scan.
	Path string `json:"path" jsonschema:"title=Path"`
	// Tag is added to every resource found in the directory.
	Tag string `json:"tag" jsonschema:"title=Tag"`
	// Pattern is a glob matched against file names.
	Pattern string `json:"pattern,omitempty" jsonschema:"title=Pattern,default=*"`
	// Format selects how names and descriptions are derived.
	Format string `json:"format" jsonschema:"title=Format,enum=persona,enum=runbook,enum=report"`
	// MIMEType of the resources. Defaults by format.
	MIMEType string `json:"mimeType,omitempty" jsonschema:"title=MIME Type"`
	// Skip lists file names that are never registered.
	Skip []string `json:"skip,omitempty" jsonschema:"title=Skip"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	c := &Config{
		APIVersion: APIVersion,
		Kind:       Kind,
	}
	c.EnsureDefaults()

	return c
}

// DefaultDirectories mirror the layout of an agentic runbooks checkout.
func DefaultDirectories() []*Directory {
	return []*Directory{
		{
			Path:     filepath.Join("clinerules-bank", "personas"),
			Tag:      "persona",
			Pattern:  "*.md",
			Format:   resource.FormatPersona,
			MIMEType: resource.MIMEMarkdown,
			Skip:     []string{"personas.md"},
		},
		{
			Path:     filepath.Join("clinerules-bank", "run_books"),
			Tag:      "runbook",
			Pattern:  "*.md",
			Format:   resource.FormatRunbook,
			MIMEType: resource.MIMEMarkdown,
		},
		{
			Path:     "reports",
			Tag:      "report",
			Pattern:  "*.*",
			Format:   resource.FormatReport,
			MIMEType: MIMEOctetStream,
		},
	}
}

// DefaultFiles returns the files registered by default.
func DefaultFiles() []*File {
	return []*File{
		{
			Path:        "README.md",
			Name:        "README File",
			Description: "The project's README.",
			MIMEType:    resource.MIMEMarkdown,
			Tags:        []string{"documentation"},
		},
	}
}

// EnsureDefaults fills unset fields with defaults.
func (c *Config) EnsureDefaults() {
	if c.Personas == nil {
		c.Personas = slices.Clone(DefaultPersonas)
	}
	if c.DefaultPersona == "" && len(c.Personas) > 0 {
		c.DefaultPersona = c.Personas[0]
	}
	if c.Directories == nil {
		c.Directories = DefaultDirectories()
	}
	if c.Files == nil {
		c.Files = DefaultFiles()
	}

	for _, d := range c.Directories {
		if d.Pattern == "" {
			d.Pattern = "*"
		}
		if d.MIMEType == "" {
			d.MIMEType = defaultMIMEType(d.Format)
		}
	}
	for _, f := range c.Files {
		if f.Name == "" {
			f.Name = filepath.Base(f.Path)
		}
		if f.MIMEType == "" {
			f.MIMEType = defaultMIMEType("")
			if resource.IsMarkdown("", f.Path) {
				f.MIMEType = resource.MIMEMarkdown
			}
		}
	}
}

func defaultMIMEType(format string) string {
	switch format {
	case resource.FormatPersona, resource.FormatRunbook:
		return resource.MIMEMarkdown
	default:
		return MIMEOctetStream
	}
}

// Validate checks requirements that cannot be expressed in the schema.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(c.Personas, c.DefaultPersona) {
		errs = append(errs, fmt.Errorf("defaultPersona %q is not in personas", c.DefaultPersona))
	}

	seen := map[string]bool{}
	for i, p := range c.Personas {
		if p == "" {
			errs = append(errs, fmt.Errorf("personas[%d]: empty name", i))
		}
		if seen[p] {
			errs = append(errs, fmt.Errorf("personas[%d]: duplicate %q", i, p))
		}

		seen[p] = true
	}

	for i, d := range c.Directories {
		if d.Path == "" {
			errs = append(errs, fmt.Errorf("directories[%d]: path is required", i))
		}

		_, err := resource.FormatterByName(d.Format)
		if err != nil {
			errs = append(errs, fmt.Errorf("directories[%d]: %w", i, err))
		}

		_, err = filepath.Match(d.Pattern, "")
		if err != nil {
			errs = append(errs, fmt.Errorf("directories[%d]: pattern %q: %w", i, d.Pattern, err))
		}
	}

	for i, f := range c.Files {
		if f.Path == "" {
			errs = append(errs, fmt.Errorf("files[%d]: path is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// Resolve returns path resolved against BasePath. Absolute paths are
// returned unchanged.
func (c *Config) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(c.BasePath, path)
}

// Specs returns a scan spec for every configured directory.
func (c *Config) Specs() ([]resource.Spec, error) {
	specs := make([]resource.Spec, 0, len(c.Directories))

	for _, d := range c.Directories {
		f, err := resource.FormatterByName(d.Format)
		if err != nil {
			return nil, fmt.Errorf("directory %q: %w", d.Path, err)
		}

		specs = append(specs, resource.Spec{
			Dir:       c.Resolve(d.Path),
			Tag:       d.Tag,
			Pattern:   d.Pattern,
			Formatter: f,
			MIMEType:  d.MIMEType,
			Skip:      d.Skip,
		})
	}

	return specs, nil
}

// JSONSchemaExtend restricts apiVersion and kind to supported values.
func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	apiVersion, ok := jss.Properties.Get("apiVersion")
	if !ok {
		panic("apiVersion property not found in schema")
	}

	apiVersion.Const = APIVersion
	_, _ = jss.Properties.Set("apiVersion", apiVersion)

	kind, ok := jss.Properties.Get("kind")
	if !ok {
		panic("kind property not found in schema")
	}

	kind.Const = Kind
	_, _ = jss.Properties.Set("kind", kind)
}

// MarshalYAML encodes the configuration.
func (c *Config) MarshalYAML() ([]byte, error) {
	b := &bytes.Buffer{}
	enc := yaml.NewEncoder(b)

	err := enc.Encode(*c)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}

	return b.Bytes(), nil
}

// Write writes the configuration and its JSON schema to path, unless a
// config file already exists there.
func (c *Config) Write(path string) error {
	pathInfo, err := os.Stat(path)
	if pathInfo != nil {
		if err == nil && pathInfo.Mode().IsRegular() {
			slog.Debug("configuration file already exists, skipping write",
				slog.String("path", path),
			)

			return nil
		}
		if pathInfo.IsDir() {
			return fmt.Errorf("%s: path is a directory", path)
		}

		return fmt.Errorf("%s: unknown file state", path)
	}

	err = os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	b, err := c.MarshalYAML()
	if err != nil {
		return err
	}

	slog.Info("write configuration", slog.String("path", path))

	err = os.WriteFile(path, b, 0o600)
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	schemaPath := filepath.Join(filepath.Dir(path), SchemaFileName)
	slog.Debug("write JSON schema", slog.String("path", schemaPath))

	err = os.WriteFile(schemaPath, schemaJSON(), 0o600)
	if err != nil {
		return fmt.Errorf("write schema file: %w", err)
	}

	return nil
}

// GetPath returns the default configuration path.
func GetPath() string {
	if xdgHome, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdgHome != "" {
		return filepath.Join(xdgHome, "secopsctl", "server.yaml")
	}

	usrHome, err := os.UserHomeDir()
	if err == nil && usrHome != "" {
		return filepath.Join(usrHome, ".config", "secopsctl", "server.yaml")
	}

	tmpConfig := filepath.Join(os.TempDir(), "secopsctl", "server.yaml")

	slog.Warn("could not determine user config directory, using temp path for config",
		slog.String("path", tmpConfig),
		slog.Any("error", fmt.Errorf("$XDG_CONFIG_HOME is unset, fall back to home directory: %w", err)),
	)

	return tmpConfig
}
