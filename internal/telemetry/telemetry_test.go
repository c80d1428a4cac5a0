package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowturn/config"
)

func TestInit_Disabled(t *testing.T) {
	t.Parallel()
	providers, err := Init(config.TelemetryConfig{Enabled: false}, nil)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestShutdown_NilSafe(t *testing.T) {
	t.Parallel()
	var providers *Providers
	assert.NoError(t, providers.Shutdown(context.Background()))
}
