// Package config loads, validates and writes the resource server
// configuration.
//
// The configuration is a YAML document decoded with
// [github.com/goccy/go-yaml]. It is validated against a JSON schema reflected
// from [Config] by [github.com/invopop/jsonschema] before decoding, so errors
// point at the offending line.
package config

//go:generate go run ../../internal/schemagen -o server.v1.json
