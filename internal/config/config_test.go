package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/socpowerhintd/internal/config"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"socpowerhintd"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestLoadDefaults(t *testing.T) {
	withArgs(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.False(t, cfg.SendHint)
	assert.False(t, cfg.SendGfxHint)
	assert.Equal(t, config.DefaultSocHint, cfg.SocHint)
	assert.Equal(t, 0, cfg.NotificationDelay)
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	withArgs(t, "--sendHint", "--socHint=swlt", "--notification-delay=50")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.SendHint)
	assert.Equal(t, "swlt", cfg.SocHint)
	assert.Equal(t, 50, cfg.NotificationDelay)
}

func TestLoadRejectsUnknownSocHint(t *testing.T) {
	withArgs(t, "--socHint=bogus")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadRejectsNegativeNotificationDelay(t *testing.T) {
	withArgs(t, "--notification-delay=-1")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadRejectsNotificationDelayUnderHfi(t *testing.T) {
	withArgs(t, "--socHint=hfi", "--notification-delay=50")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadAllowsDefaultDelayUnderHfi(t *testing.T) {
	withArgs(t, "--socHint=hfi")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "hfi", cfg.SocHint)
}

