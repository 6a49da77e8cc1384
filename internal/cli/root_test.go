package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hackrun/internal/config"
	"github.com/roach88/hackrun/internal/ir"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "hackrun", cmd.Use)
	assert.Contains(t, cmd.Long, "test scripts")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "test", "history", "replay", "check", "asm"}

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

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"test", "max-steps", "animate", "db"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "100000", runCmd.Flags().Lookup("max-steps").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "check", "Add.tst")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestVerboseLogsToStderr(t *testing.T) {
	image := addProject(t)

	stdout, stderr, err := execute(t, "--verbose", "--format", "json", "run", image)
	require.NoError(t, err)
	assert.Contains(t, stderr, "level=DEBUG")
	assert.NotContains(t, stdout, "level=")
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		cfg, err := loadConfig(&RootOptions{})
		require.NoError(t, err)
		assert.Equal(t, config.Defaults(), cfg)
	})

	t.Run("yaml overlay", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hackrun.yaml")
		require.NoError(t, os.WriteFile(path, []byte("ramFormat: hex\ntestSpeed: 4\n"), 0644))

		cfg, err := loadConfig(&RootOptions{Config: path})
		require.NoError(t, err)
		assert.Equal(t, ir.FormatHex, cfg.RAMFormat)
		assert.Equal(t, 4, cfg.TestSpeed)
		assert.Equal(t, config.Defaults().ROMFormat, cfg.ROMFormat)
	})

	t.Run("out of range", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hackrun.yaml")
		require.NoError(t, os.WriteFile(path, []byte("speed: 9\n"), 0644))

		_, err := loadConfig(&RootOptions{Config: path})
		require.Error(t, err)
		assert.True(t, config.IsValidationError(err))
	})
}
