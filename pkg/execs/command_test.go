package execs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandye/mcp-security/pkg/execs"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input string
		want  execs.Command
		err   error
	}{
		"single word": {
			input: "gsutil",
			want:  execs.Command{Command: "gsutil", Args: []string{}},
		},
		"interpreter and script": {
			input: "python3 /opt/gsutil/gsutil",
			want:  execs.Command{Command: "python3", Args: []string{"/opt/gsutil/gsutil"}},
		},
		"quoted argument": {
			input: `docker run --rm "google/cloud-sdk:slim" gsutil`,
			want: execs.Command{
				Command: "docker",
				Args:    []string{"run", "--rm", "google/cloud-sdk:slim", "gsutil"},
			},
		},
		"empty": {
			input: "   ",
			err:   execs.ErrEmptyCommand,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := execs.ParseCommand(tc.input)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want.Command, got.Command)
			assert.ElementsMatch(t, tc.want.Args, got.Args)
		})
	}
}

func TestCommand_With(t *testing.T) {
	t.Parallel()

	base := execs.Command{Command: "gsutil", Args: []string{"-q"}}
	ls := base.With("ls", "gs://bucket")

	assert.Equal(t, "gsutil -q ls gs://bucket", ls.String())
	// The original is unchanged.
	assert.Equal(t, "gsutil -q", base.String())
}

func TestCommand_GetEnv(t *testing.T) {
	t.Setenv("SECOPS_EXECS_TEST", "caller")

	cmd := execs.Command{Command: "env", Env: []string{"EXTRA=1"}}
	env := cmd.GetEnv()

	assert.Contains(t, env, "SECOPS_EXECS_TEST=caller")
	assert.Equal(t, "EXTRA=1", env[len(env)-1])
}
