package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dandye/mcp-security/pkg/authtest"
	"github.com/dandye/mcp-security/pkg/gcpauth"
	"github.com/dandye/mcp-security/pkg/ui/status"
)

const (
	authTestExamples = `  # Test with user ADC (default):
  secopsctl auth test --auth-mode=adc

  # Test with service account impersonation:
  secopsctl auth test --auth-mode=impersonation \
    --service-account=chronicle-mcp-sa@my-project.iam.gserviceaccount.com

  # Test with a service account key file:
  secopsctl auth test --auth-mode=service-account --key-file=/path/to/key.json

  # Test in container mode:
  secopsctl auth test --auth-mode=container

  # Test with manual environment variables (no .env file):
  export CHRONICLE_PROJECT_ID=my-project
  export CHRONICLE_CUSTOMER_ID=my-customer
  secopsctl auth test --auth-mode=adc --no-env-file`
)

type AuthArgs struct {
	*RootArgs

	EnvFile        string
	ServiceAccount string
	KeyFile        string
	Mode           gcpauth.Mode
	NoEnvFile      bool
	Verbose        bool
	Container      bool

	// testerOpts are appended to the defaults; used by tests.
	testerOpts []authtest.TesterOpt
}

func NewAuthArgs(rootArgs *RootArgs) *AuthArgs {
	return &AuthArgs{
		RootArgs: rootArgs,
		Mode:     gcpauth.ModeADC,
	}
}

func (aa *AuthArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&aa.EnvFile, "env-file", defaultEnvFile, "Path to .env file for configuration")
	cmd.PersistentFlags().BoolVar(&aa.NoEnvFile, "no-env-file", false, "Skip loading configuration from .env file")
	cmd.PersistentFlags().BoolVarP(&aa.Verbose, "verbose", "v", false, "Enable verbose output")

	err := cmd.MarkPersistentFlagFilename("env-file", "env")
	if err != nil {
		panic(fmt.Errorf("mark env-file flag: %w", err))
	}
}

func NewAuthCmd(rootArgs *RootArgs) *cobra.Command {
	return newAuthCmd(NewAuthArgs(rootArgs))
}

func newAuthCmd(aa *AuthArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Test Chronicle authentication and API access",
		Long: `Test Chronicle authentication and API access.

Environment Variables:
  CHRONICLE_PROJECT_ID   - Required: Chronicle project ID
  CHRONICLE_CUSTOMER_ID  - Required: Chronicle customer ID
  CHRONICLE_REGION       - Optional: Chronicle region (default: us)`,
	}
	aa.AddFlags(cmd)

	testCmd := &cobra.Command{
		Use:     "test",
		Short:   "Run the full authentication test suite",
		Example: authTestExamples,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuthTest(cmd, aa)
		},
	}

	testCmd.Flags().Var(&aa.Mode, "auth-mode", "Authentication mode to test, one of: "+gcpauth.ModeNames())
	testCmd.Flags().StringVar(&aa.ServiceAccount, "service-account", "", "Service account email for impersonation mode")
	testCmd.Flags().StringVar(&aa.KeyFile, "key-file", "", "Path to service account key file for service-account mode")
	testCmd.Flags().BoolVarP(&aa.Container, "container", "c", false, "DEPRECATED: Use --auth-mode=container instead")

	err := testCmd.RegisterFlagCompletionFunc("auth-mode", func(
		*cobra.Command, []string, string,
	) ([]cobra.Completion, cobra.ShellCompDirective) {
		completions := make([]cobra.Completion, 0, len(gcpauth.AllModes))
		for _, m := range gcpauth.AllModes {
			completions = append(completions, string(m))
		}

		return completions, cobra.ShellCompDirectiveNoFileComp
	})
	if err != nil {
		panic(err)
	}

	err = testCmd.MarkFlagFilename("key-file", "json")
	if err != nil {
		panic(fmt.Errorf("mark key-file flag: %w", err))
	}

	quickCmd := &cobra.Command{
		Use:   "quick",
		Short: "Quickly check Google authentication and Chronicle client creation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := status.NewPrinter(cmd.OutOrStdout())
			authtest.LoadConfiguration(aa.EnvFile, aa.NoEnvFile, out)

			return aa.newTester(out).Quick(cmd.Context())
		},
	}

	cmd.AddCommand(testCmd, quickCmd)

	return cmd
}

func runAuthTest(cmd *cobra.Command, aa *AuthArgs) error {
	out := status.NewPrinter(cmd.OutOrStdout())

	if aa.Container {
		out.Warning("Warning: --container flag is deprecated. Using --auth-mode=container")

		aa.Mode = gcpauth.ModeContainer
	}

	authtest.LoadConfiguration(aa.EnvFile, aa.NoEnvFile, out)

	err := gcpauth.Setup(aa.Mode, gcpauth.Options{
		ServiceAccount: aa.ServiceAccount,
		KeyFile:        aa.KeyFile,
	}, out)
	if err != nil {
		out.Println()
		out.Failure("Authentication setup failed. Exiting.")

		return fmt.Errorf("set up authentication: %w", err)
	}

	out.Println()
	out.Printf("Running tests with authentication mode: %s", aa.Mode)

	_, err = aa.newTester(out).Run(cmd.Context())

	return err
}

func (aa *AuthArgs) newTester(out *status.Printer) *authtest.Tester {
	opts := []authtest.TesterOpt{
		authtest.WithVerbose(aa.Verbose),
		authtest.WithContainerMode(aa.Mode == gcpauth.ModeContainer),
	}

	return authtest.NewTester(out, append(opts, aa.testerOpts...)...)
}
