package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd(&bytes.Buffer{})

	for _, name := range []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck} {
		t.Run(string(name), func(t *testing.T) {
			cmd, _, err := root.Find([]string{string(name)})
			require.NoError(t, err)
			assert.Equal(t, string(name), cmd.Name())
		})
	}
}

func TestNewRootCmd_SilencesUsageOnError(t *testing.T) {
	root := NewRootCmd(&bytes.Buffer{})

	assert.True(t, root.SilenceUsage)
	assert.True(t, root.SilenceErrors)
	assert.NotNil(t, root.RunE, "root command should run serve by default")
}

func TestHealthcheckCmd_HasPortFlag(t *testing.T) {
	root := NewRootCmd(&bytes.Buffer{})
	cmd, _, err := root.Find([]string{"healthcheck"})
	require.NoError(t, err)

	flag := cmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestMigrateCmd_HasStepsFlag(t *testing.T) {
	root := NewRootCmd(&bytes.Buffer{})
	cmd, _, err := root.Find([]string{"migrate"})
	require.NoError(t, err)

	flag := cmd.Flags().Lookup("steps")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestHealthcheckPort(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{name: "flag wins", flag: "9000", env: "9100", want: "9000"},
		{name: "env fallback", flag: "", env: "9100", want: "9100"},
		{name: "default", flag: "", env: "", want: "8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SERVER_PORT", tt.env)
			assert.Equal(t, tt.want, healthcheckPort(tt.flag))
		})
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{CommandServe, "serve"},
		{CommandWorker, "worker"},
		{CommandMigrate, "migrate"},
		{CommandHealthcheck, "healthcheck"},
	}

	for _, tt := range tests {
		if got := string(tt.cmd); got != tt.want {
			t.Errorf("Command(%q) string = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}
