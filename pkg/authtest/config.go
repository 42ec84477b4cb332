// Package authtest runs authentication smoke tests against Google Cloud and
// the Chronicle API.
package authtest

import (
	"os"

	"github.com/dandye/mcp-security/pkg/bucket"
	"github.com/dandye/mcp-security/pkg/chronicle"
	"github.com/dandye/mcp-security/pkg/envfile"
	"github.com/dandye/mcp-security/pkg/gcpauth"
	"github.com/dandye/mcp-security/pkg/ui/status"
)

// ConfigKeys are the variables loaded by [LoadConfiguration], in display order.
var ConfigKeys = []string{
	chronicle.EnvProjectID,
	chronicle.EnvCustomerID,
	chronicle.EnvRegion,
	bucket.EnvProject,
}

// Configuration holds the values used by the tests.
type Configuration struct {
	Chronicle          chronicle.Config
	GoogleCloudProject string
}

// LoadConfiguration exports [ConfigKeys] from the env file at path into the
// process environment, leaving variables that are already set untouched,
// and returns the effective configuration. When skip is set the file is
// ignored.
func LoadConfiguration(path string, skip bool, out *status.Printer) Configuration {
	switch {
	case skip:
		out.Println("Skipping .env file loading (--no-env-file specified)")

	default:
		f, err := envfile.Load(path)
		if err != nil {
			out.Warning("Warning: Could not load %s: %v", path, err)

			break
		}
		if len(f.Keys()) == 0 {
			break
		}

		f.Apply(ConfigKeys...)

		out.Printf("Loaded configuration from %s", path)

		for _, k := range ConfigKeys {
			if v := os.Getenv(k); v != "" {
				out.Detail("%s: %s", k, gcpauth.Mask(v))
			}
		}
	}

	return Configuration{
		Chronicle:          chronicle.ConfigFromEnv(),
		GoogleCloudProject: os.Getenv(bucket.EnvProject),
	}
}
