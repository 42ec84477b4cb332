package cli

import (
	"github.com/spf13/cobra"

	"github.com/dandye/mcp-security/pkg/authtest"
)

// NewAuthCmdWithTesterOpts returns the auth command with extra tester options.
func NewAuthCmdWithTesterOpts(opts ...authtest.TesterOpt) *cobra.Command {
	aa := NewAuthArgs(NewRootArgs())
	aa.testerOpts = opts

	return newAuthCmd(aa)
}
