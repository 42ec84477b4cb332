package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dandye/mcp-security/pkg/bucket"
	"github.com/dandye/mcp-security/pkg/envfile"
	"github.com/dandye/mcp-security/pkg/execs"
	"github.com/dandye/mcp-security/pkg/ui/status"
)

type BucketArgs struct {
	*RootArgs

	Bucket        string
	EnvFile       string
	StorageCmd    string
	NoInteractive bool
}

func NewBucketArgs(rootArgs *RootArgs) *BucketArgs {
	return &BucketArgs{
		RootArgs: rootArgs,
	}
}

func (ba *BucketArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&ba.Bucket, "bucket", "", "Bucket name, overrides "+bucket.EnvStagingBucket)
	cmd.PersistentFlags().StringVar(&ba.EnvFile, "env-file", defaultEnvFile, "Path to the environment file")
	cmd.PersistentFlags().StringVar(&ba.StorageCmd, "storage-cmd", bucket.DefaultCommand.String(),
		"Cloud storage tool command line")

	err := cmd.MarkPersistentFlagFilename("env-file", "env")
	if err != nil {
		panic(fmt.Errorf("mark env-file flag: %w", err))
	}
}

func NewBucketCmd(rootArgs *RootArgs) *cobra.Command {
	ba := NewBucketArgs(rootArgs)

	cmd := &cobra.Command{
		Use:   "bucket",
		Short: "Manage the deployment staging bucket",
	}
	ba.AddFlags(cmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether the staging bucket exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := ba.newManager(cmd)
			if err != nil {
				return err
			}

			return m.Check(cmd.Context(), ba.Bucket)
		},
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the staging bucket exists, offering to create it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := ba.newManager(cmd)
			if err != nil {
				return err
			}

			interactive := !ba.NoInteractive && isTerminal(cmd.InOrStdin())

			return m.VerifyOrCreate(cmd.Context(), ba.Bucket, interactive)
		},
	}
	verifyCmd.Flags().BoolVar(&ba.NoInteractive, "no-interactive", false, "Never prompt; print the create command instead")

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create the staging bucket, generating a name if none is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := ba.newManager(cmd)
			if err != nil {
				return err
			}

			return m.Create(cmd.Context(), ba.Bucket)
		},
	}

	cmd.AddCommand(checkCmd, verifyCmd, createCmd)

	return cmd
}

func (ba *BucketArgs) newManager(cmd *cobra.Command) (*bucket.Manager, error) {
	env, err := envfile.Load(ba.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	storage, err := execs.ParseCommand(ba.StorageCmd)
	if err != nil {
		return nil, fmt.Errorf("parse --storage-cmd: %w", err)
	}

	out := status.NewPrinter(cmd.OutOrStdout())

	return bucket.NewManager(env, bucket.NewGSUtil(storage), out,
		bucket.WithPrompter(newConfirmPrompter(cmd.InOrStdin(), cmd.OutOrStdout())),
	), nil
}

func isTerminal(r any) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd())) //nolint:gosec // File descriptors fit in int.
}
