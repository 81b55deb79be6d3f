package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("positional pipeline path", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse([]string{"pipeline.hcl"}, &out)
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "pipeline.hcl", cfg.PipelinePath)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("flag beats positional", func(t *testing.T) {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{"-pipeline", "a.hcl", "b.hcl"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "a.hcl", cfg.PipelinePath)
	})

	t.Run("shorthand flag", func(t *testing.T) {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{"-p", "a.hcl"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "a.hcl", cfg.PipelinePath)
	})

	t.Run("no path prints usage and exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse(nil, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("invalid log format", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-log-format", "xml", "a.hcl"}, &out)
		require.Error(t, err)
		exitErr, ok := err.(*ExitError)
		require.True(t, ok)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("invalid log level", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-log-level", "loud", "a.hcl"}, &out)
		require.Error(t, err)
	})

	t.Run("log options pass through", func(t *testing.T) {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{"-log-format", "JSON", "-log-level", "DEBUG", "a.hcl"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, "debug", cfg.LogLevel)
	})
}
