package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_Short(t *testing.T) {
	assert.Equal(t, "Search indexed notes", searchCmd.Short)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"search"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasModeFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("mode")
	require.NotNil(t, flag, "mode flag should exist")
	assert.Equal(t, "m", flag.Shorthand)
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
}

func TestSearchCmd_HasFilterFlags(t *testing.T) {
	assert.NotNil(t, searchCmd.Flags().Lookup("folder"))
	assert.NotNil(t, searchCmd.Flags().Lookup("tag"))
	assert.NotNil(t, searchCmd.Flags().Lookup("rerank"))
	assert.NotNil(t, searchCmd.Flags().Lookup("json"))
}

func TestFindCmd_Use(t *testing.T) {
	assert.Equal(t, "find [glob]", findCmd.Use)
}

func TestFindCmd_HasFilterFlags(t *testing.T) {
	assert.NotNil(t, findCmd.Flags().Lookup("tag"))
	assert.NotNil(t, findCmd.Flags().Lookup("property"))
	assert.NotNil(t, findCmd.Flags().Lookup("json"))
}

func TestFindCmd_AcceptsAtMostOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"find", "a", "b"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("vault"))

	verbose := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}
