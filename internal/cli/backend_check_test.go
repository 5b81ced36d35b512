package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/graphbatch/internal/backend"
	"github.com/rshade/graphbatch/internal/cli"
	"github.com/rshade/graphbatch/internal/config"
)

func TestBackendCheck_ReportsVersion(t *testing.T) {
	setupCLITest(t)
	// Any binary present in PATH will do; the stub answers the version query.
	t.Setenv(config.EnvBackendCommand, "sh")
	useParserStub(t, &parserStub{version: "Joern v2.0.448"})

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("backend:\n  version_constraint: \"^2.0\"\n"), 0o600))

	output, err := executeRoot(t, "--config", configPath, "backend", "check")
	require.NoError(t, err)
	assert.Contains(t, output, "Version: 2.0.448")
	assert.Contains(t, output, "Constraint: ^2.0 (satisfied)")
}

func TestBackendCheck_Failures(t *testing.T) {
	tests := []struct {
		name    string
		command string
		version string
		wantErr error
	}{
		{name: "not installed", command: "graphbatch-no-such-parser", wantErr: backend.ErrBackendNotFound},
		{name: "unparseable version", command: "sh", version: "usage: parser [options]", wantErr: backend.ErrVersionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupCLITest(t)
			t.Setenv(config.EnvBackendCommand, tt.command)
			useParserStub(t, &parserStub{version: tt.version})

			_, err := executeRoot(t, "backend", "check")
			requireExitCode(t, err, cli.ExitDispatch)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
