package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "cryptoverse", cmd.Use)
	assert.Contains(t, cmd.Long, "star log ledger")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"sync", "show", "rules"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestShowCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	showCmd, _, err := cmd.Find([]string{"show"})
	require.NoError(t, err)

	for _, name := range []string{"hash", "height", "highest", "latest", "backend", "db", "redis"} {
		assert.NotNil(t, showCmd.Flags().Lookup(name), "flag --%s", name)
	}
}

func TestRulesCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	rulesCmd, _, err := cmd.Find([]string{"rules"})
	require.NoError(t, err)

	remoteFlag := rulesCmd.Flags().Lookup("remote")
	require.NotNil(t, remoteFlag)
	assert.Equal(t, "false", remoteFlag.DefValue)
	assert.NotNil(t, rulesCmd.Flags().Lookup("api"))
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.True(t, isValidFormat("yaml"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("JSON"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "sync", "--backend", "memory"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestVerboseEnablesDebugLogs(t *testing.T) {
	db := tempDB(t)

	run := execute(t, "--verbose", "show", "--db", db)
	require.NoError(t, run.err)
	assert.Contains(t, run.stderr.String(), "level=DEBUG")
	assert.Contains(t, run.stderr.String(), "Read 0 star log(s) from sqlite cache")

	run = execute(t, "show", "--db", db)
	require.NoError(t, run.err)
	assert.NotContains(t, run.stderr.String(), "level=DEBUG")
}
