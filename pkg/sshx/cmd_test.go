package sshx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCmd_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  Cmd
		want string
	}{
		{
			name: "plain",
			cmd:  Cmd{Cmd: "echo A"},
			want: "echo A",
		},
		{
			name: "shell",
			cmd:  Cmd{Cmd: "echo A && echo B", Shell: true},
			want: "sh -c 'echo A && echo B'",
		},
		{
			name: "shell with single quotes",
			cmd:  Cmd{Cmd: "echo 'A'", Shell: true},
			want: `sh -c 'echo '\''A'\'''`,
		},
		{
			name: "env is sorted and implies shell",
			cmd:  Cmd{Cmd: "env", Env: map[string]string{"B": "2", "A": "1"}},
			want: "env A='1' B='2' sh -c 'env'",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}
