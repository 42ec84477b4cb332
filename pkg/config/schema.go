package config

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/dandye/mcp-security/pkg/yaml"
)

const (
	// SchemaFileName is written next to the configuration file.
	SchemaFileName = "server.v1.json"

	schemaID = "https://github.com/dandye/mcp-security/secopsctl/" + SchemaFileName
)

var (
	schemaOnce   sync.Once
	schemaBytes  []byte
	validator    *yaml.Validator
	validatorErr error
)

// Schema reflects the JSON schema of [Config].
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	s := r.Reflect(&Config{})
	s.ID = schemaID
	s.Title = "secopsctl server configuration"

	return s
}

func buildSchema() {
	schemaBytes, validatorErr = json.MarshalIndent(Schema(), "", "  ")
	if validatorErr != nil {
		return
	}

	validator, validatorErr = yaml.NewValidator(schemaID, schemaBytes)
}

func schemaJSON() []byte {
	schemaOnce.Do(buildSchema)

	return schemaBytes
}

// DefaultValidator returns the validator for [Config] documents.
// It panics if the reflected schema does not compile.
func DefaultValidator() *yaml.Validator {
	schemaOnce.Do(buildSchema)

	if validatorErr != nil {
		panic(validatorErr)
	}

	return validator
}
