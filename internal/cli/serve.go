package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dandye/mcp-security/pkg/chronicle"
	"github.com/dandye/mcp-security/pkg/config"
	"github.com/dandye/mcp-security/pkg/envfile"
	"github.com/dandye/mcp-security/pkg/log"
	"github.com/dandye/mcp-security/pkg/mcp"
	"github.com/dandye/mcp-security/pkg/telemetry"
)

const (
	serveExamples = `  # Serve over stdio using the default configuration:
  secopsctl serve --base-path ~/Projects/agentic_runbooks

  # Serve over streamable HTTP, logging to a file:
  secopsctl serve --address localhost:8080 --log-file secops_mcp.log

  # Write the default configuration and its schema, then exit:
  secopsctl serve --write-config`
)

type ServeArgs struct {
	*RootArgs

	ConfigPath   string
	BasePath     string
	Address      string
	LogFile      string
	EnvFile      string
	OTLPEndpoint string
	NoEnvFile    bool
	OTLPInsecure bool
	Watch        bool
	WriteConfig  bool
}

func NewServeArgs(rootArgs *RootArgs) *ServeArgs {
	return &ServeArgs{
		RootArgs: rootArgs,
	}
}

func (sa *ServeArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sa.ConfigPath, "config", "", "Path to the server configuration file")
	cmd.Flags().StringVar(&sa.BasePath, "base-path", "", "Directory that relative resource paths resolve against")
	cmd.Flags().StringVar(&sa.Address, "address", "", "Serve streamable HTTP at the specified address instead of stdio")
	cmd.Flags().StringVar(&sa.LogFile, "log-file", "", "Append logs to this file instead of stderr")
	cmd.Flags().StringVar(&sa.EnvFile, "env-file", defaultEnvFile, "Path to .env file with Chronicle settings")
	cmd.Flags().BoolVar(&sa.NoEnvFile, "no-env-file", false, "Skip loading Chronicle settings from .env file")
	cmd.Flags().StringVar(&sa.OTLPEndpoint, "otlp-endpoint", "", "Export traces to this OTLP/gRPC endpoint")
	cmd.Flags().BoolVar(&sa.OTLPInsecure, "otlp-insecure", false, "Disable TLS for the OTLP endpoint")
	cmd.Flags().BoolVarP(&sa.Watch, "watch", "w", false, "Watch resource directories and refresh on changes")
	cmd.Flags().BoolVar(&sa.WriteConfig, "write-config", false, "Write the default configuration files and exit")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}

	err = cmd.MarkFlagDirname("base-path")
	if err != nil {
		panic(fmt.Errorf("mark base-path flag: %w", err))
	}
}

func NewServeCmd(sa *ServeArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the agent resource MCP server",
		Example: serveExamples,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, sa)
		},
	}
	sa.AddFlags(cmd)

	return cmd
}

func serve(cmd *cobra.Command, sa *ServeArgs) error {
	ctx := cmd.Context()

	configPath := sa.ConfigPath
	if configPath == "" {
		configPath = config.GetPath()
	}

	if sa.WriteConfig {
		return config.NewConfig().Write(configPath)
	}

	logWriter := cmd.ErrOrStderr()

	if sa.LogFile != "" {
		f, err := log.OpenFile(sa.LogFile)
		if err != nil {
			return err
		}

		defer func() {
			_ = f.Close()
		}()

		logWriter = f

		err = setLogOutput(f, sa.RootArgs)
		if err != nil {
			return err
		}
	}

	if !sa.NoEnvFile {
		env, err := envfile.Load(sa.EnvFile)
		if err != nil {
			return fmt.Errorf("load env file: %w", err)
		}

		applied := env.Apply(chronicle.EnvProjectID, chronicle.EnvCustomerID, chronicle.EnvRegion)
		slog.DebugContext(ctx, "loaded env file",
			slog.String("path", env.Path()),
			slog.Any("applied", applied),
		)
	}

	// The default path is optional; an explicit one must exist.
	cfg, err := config.Load(configPath, sa.ConfigPath == "")
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}

	if sa.BasePath != "" {
		cfg.BasePath = sa.BasePath
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Endpoint: sa.OTLPEndpoint,
		Insecure: sa.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}

	defer func() {
		err := shutdown(context.WithoutCancel(ctx))
		if err != nil {
			slog.WarnContext(ctx, "shut down tracing", slog.Any("err", err))
		}
	}()

	opts := []mcp.ServerOpt{
		mcp.WithAddress(sa.Address),
		mcp.WithChronicle(mcp.NewChronicleFactory(chronicle.ConfigFromEnv())),
		mcp.WithToolsets(mcp.InstanceToolset{}),
	}

	lvl, err := log.GetLevel(sa.LogLevel)
	if err == nil && lvl <= slog.LevelDebug {
		opts = append(opts, mcp.WithProtocolLog(logWriter))
	}

	server, err := mcp.NewServer(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Stop watching once the client disconnects.
		defer cancel()

		return server.Serve(ctx)
	})

	if sa.Watch {
		g.Go(func() error {
			return server.Watch(ctx)
		})
	}

	err = g.Wait()
	if err != nil {
		return fmt.Errorf("MCP server: %w", err)
	}

	return nil
}

func setLogOutput(w io.Writer, ra *RootArgs) error {
	logHandler, err := log.CreateHandlerWithStrings(w, ra.LogLevel, ra.LogFormat)
	if err != nil {
		return fmt.Errorf("create log handler: %w", err)
	}

	slog.SetDefault(slog.New(logHandler))

	return nil
}
