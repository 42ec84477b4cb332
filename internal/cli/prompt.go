package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
)

// confirmPrompter asks yes/no questions with a huh form.
type confirmPrompter struct {
	in  io.Reader
	out io.Writer
}

func newConfirmPrompter(in io.Reader, out io.Writer) *confirmPrompter {
	return &confirmPrompter{in: in, out: out}
}

// Confirm implements [github.com/dandye/mcp-security/pkg/bucket.Prompter].
// Aborting the form counts as "no".
func (p *confirmPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	var ok bool

	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).
		WithInput(p.in).
		WithOutput(p.out).
		WithShowHelp(false)

	err := form.RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}

	return ok, nil
}
