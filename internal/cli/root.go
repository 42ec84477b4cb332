package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dandye/mcp-security/pkg/log"
)

const (
	cmdName = "secopsctl"
	cmdDesc = `Operational tooling for Google Security Operations: staging buckets, authentication checks and the agent resource MCP server.`

	// envPrefix prefixes the environment variables bound to flags.
	envPrefix = "secops"

	// defaultEnvFile is the agent configuration file shared by all commands.
	defaultEnvFile = "agents/google_mcp_security_agent/.env"

	cmdExamples = `  # Verify the deployment staging bucket, creating it if needed:
  secopsctl bucket verify

  # Test Chronicle authentication with service account impersonation:
  secopsctl auth test --auth-mode=impersonation \
    --service-account=chronicle-mcp-sa@my-project.iam.gserviceaccount.com

  # Serve personas, runbooks and reports over stdio:
  secopsctl serve --base-path ~/Projects/agentic_runbooks

  # Serve over streamable HTTP and pick up new reports automatically:
  secopsctl serve --address localhost:8080 --watch`
)

type RootArgs struct {
	LogLevel  string
	LogFormat string
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVar(&ra.LogLevel, "log-level", "info", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.PersistentFlags().
		StringVar(&ra.LogFormat, "log-format", "text", fmt.Sprintf("Log format, one of: %s", log.AllFormats))

	var err error

	err = cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}
}

func NewRootCmd() *cobra.Command {
	args := NewRootArgs()

	cmd := &cobra.Command{
		Use:               cmdName,
		Short:             cmdDesc,
		Example:           cmdExamples,
		PersistentPreRunE: setupLogging(args),
		SilenceUsage:      true,
	}

	args.AddFlags(cmd)
	cmd.AddCommand(
		NewBucketCmd(args),
		NewAuthCmd(args),
		NewServeCmd(NewServeArgs(args)),
		NewVersionCmd(),
	)

	bindEnvVars(cmd)

	return cmd
}

func setupLogging(rc *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), rc.LogLevel, rc.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))

		return nil
	}
}
