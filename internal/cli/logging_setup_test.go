package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectRunLogs(t *testing.T) {
	var stderr, original bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetErr(&stderr)

	base := zerolog.New(&original).Level(zerolog.WarnLevel)
	ctx := base.WithContext(context.Background())
	path := filepath.Join(t.TempDir(), "logs", "graphbatch.log")

	ctx, result := redirectRunLogs(ctx, cmd, path)
	require.NotNil(t, result)
	t.Cleanup(func() { _ = result.Close() })
	require.True(t, result.UsingFile)
	assert.Contains(t, stderr.String(), path)

	l := zerolog.Ctx(ctx)
	assert.Equal(t, zerolog.WarnLevel, l.GetLevel(), "level is carried over")
	l.Info().Msg("dropped")
	l.Error().Msg("parse failed")
	require.NoError(t, result.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"parse failed"`)
	assert.Contains(t, string(data), `"component":"cli"`)
	assert.NotContains(t, string(data), "dropped")
	assert.Empty(t, original.String(), "nothing reaches the terminal logger")
}

func TestRedirectRunLogs_FallsBackWhenFileUnavailable(t *testing.T) {
	var stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetErr(&stderr)

	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	ctx := context.Background()
	got, result := redirectRunLogs(ctx, cmd, filepath.Join(blocker, "graphbatch.log"))
	require.NotNil(t, result)
	assert.False(t, result.UsingFile)
	assert.Equal(t, ctx, got)
	assert.Contains(t, stderr.String(), "file logging unavailable")
}
