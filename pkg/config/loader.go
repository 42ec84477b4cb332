package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dandye/mcp-security/pkg/yaml"
)

// Loader decodes and validates configuration data.
type Loader struct {
	validator *yaml.Validator
	yamlError *yaml.ErrorWrapper
	data      []byte
}

// NewLoaderFromBytes creates a [Loader] for data.
func NewLoaderFromBytes(data []byte) *Loader {
	return &Loader{
		data:      data,
		validator: DefaultValidator(),
		yamlError: yaml.NewErrorWrapper(yaml.WithSource(data)),
	}
}

// NewLoaderFromFile creates a [Loader] for the file at path.
func NewLoaderFromFile(path string) (*Loader, error) {
	data, err := readConfig(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return NewLoaderFromBytes(data), nil
}

// Validate validates the data against the schema without decoding it into
// a [Config].
func (l *Loader) Validate() error {
	var anyConfig any

	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	err := dec.Decode(&anyConfig)
	if err != nil {
		return l.yamlError.Wrap(err)
	}

	err = l.validator.Validate(anyConfig)
	if err != nil {
		return l.yamlError.Wrap(err)
	}

	return nil
}

// Load validates and decodes the configuration, applying defaults.
func (l *Loader) Load() (*Config, error) {
	err := l.Validate()
	if err != nil {
		return nil, err
	}

	c := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(l.data))

	err = dec.Decode(c)
	if err != nil {
		return nil, l.yamlError.Wrap(err)
	}

	c.EnsureDefaults()

	err = c.Validate()
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Load reads the configuration at path. When path does not exist and
// optional is set, the default configuration is returned.
func Load(path string, optional bool) (*Config, error) {
	l, err := NewLoaderFromFile(path)
	if optional && errors.Is(err, fs.ErrNotExist) {
		return NewConfig(), nil
	}
	if err != nil {
		return nil, err
	}

	return l.Load()
}

func readConfig(path string) ([]byte, error) {
	pathInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if pathInfo.IsDir() {
		return nil, fmt.Errorf("%s: path is a directory", path)
	}
	if !pathInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: unknown file state", path)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}
