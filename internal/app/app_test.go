package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/waabox/deviceauth/internal/app"
	"github.com/waabox/deviceauth/internal/config"
	"github.com/waabox/deviceauth/internal/domain"
	"github.com/waabox/deviceauth/internal/secret"
	"github.com/waabox/deviceauth/internal/session"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Defaults()
	require.NoError(t, err)
	cfg.Store.Backend = "memory"
	return cfg
}

func TestNew_OpensConfiguredBackend(t *testing.T) {
	a, err := app.New(testConfig(t), app.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &secret.Memory{}, a.Secrets)
	assert.NotNil(t, a.Sessions)
	assert.NotNil(t, a.Auth)
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "floppy"

	_, err := app.New(cfg, app.Options{Logger: zaptest.NewLogger(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floppy")
}

func TestNew_SignInWithoutConfigFailsLazily(t *testing.T) {
	a, err := app.New(testConfig(t), app.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	_, err = a.Auth.SignIn(context.Background())
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Missing, "domain")
}

func TestNew_MetricsAreRegistered(t *testing.T) {
	a, err := app.New(testConfig(t), app.Options{Logger: zaptest.NewLogger(t), Secrets: secret.NewMemory()})
	require.NoError(t, err)

	_, err = a.Sessions.GetSessions(context.Background(), session.Filter{})
	require.NoError(t, err)
	a.Metrics.Refresh("refreshed")

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "deviceauth_refresh_total")
}

func TestClose_WritesMetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deviceauth.prom")
	a, err := app.New(testConfig(t), app.Options{Logger: zaptest.NewLogger(t), MetricsFile: path})
	require.NoError(t, err)

	a.Metrics.Pruned(2)
	a.Close()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "deviceauth_sessions_pruned_total 2")
}
