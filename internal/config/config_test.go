package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonsigner/tonsigner/internal/chain"
	"github.com/tonsigner/tonsigner/internal/testutil"
)

func TestLoad_Defaults(t *testing.T) {
	testutil.SetEnv(t, "HOME", testutil.TempDir(t))
	testutil.UnsetEnv(t, "TONSIGNER_NETWORK")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, chain.Mainnet, cfg.Network.Name)
	assert.Equal(t, "https://tonapi.io", cfg.TonAPI.BaseURL)
	assert.Equal(t, "wss://tonapi.io/v2/websocket", cfg.TonAPI.StreamURL)
	assert.Equal(t, "tonkeeper://publish", cfg.Signer.ReturnURI)
	assert.Equal(t, 3*time.Second, cfg.Signer.WatchdogTimeout)
	assert.Zero(t, cfg.Signer.SettleDelay)
	assert.Equal(t, 400, cfg.Keystone.FragmentSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Keystone.FrameInterval)
	assert.Equal(t, 1000, cfg.History.CacheSize)
	assert.Empty(t, cfg.Callback.AllowedOrigins)
	assert.Equal(t, ".tonsigner", filepath.Base(cfg.DataDir))
}

func TestLoad_Env(t *testing.T) {
	testutil.SetEnv(t, "TONSIGNER_NETWORK", "testnet")
	testutil.SetEnv(t, "TONSIGNER_DATA_DIR", "/tmp/ts")
	testutil.SetEnv(t, "TONSIGNER_TONAPI_TOKEN", "secret")
	testutil.SetEnv(t, "TONSIGNER_SIGNER_SETTLE_DELAY", "1s")
	testutil.SetEnv(t, "TONSIGNER_CALLBACK_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.True(t, cfg.Network.IsTestnet)
	assert.Equal(t, "https://testnet.tonapi.io", cfg.TonAPI.BaseURL)
	assert.Equal(t, "/tmp/ts", cfg.DataDir)
	assert.Equal(t, "secret", cfg.TonAPI.Token)
	assert.Equal(t, time.Second, cfg.Signer.SettleDelay)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Callback.AllowedOrigins)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "config.yaml")
	content := `
network: testnet
data_dir: /data
tonapi:
  base_url: http://localhost:9000
keystone:
  fragment_size: 200
  frame_interval: 250ms
callback:
  allowed_origins:
    - https://app.example
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.TonAPI.BaseURL)
	assert.Equal(t, "wss://testnet.tonapi.io/v2/websocket", cfg.TonAPI.StreamURL)
	assert.Equal(t, 200, cfg.Keystone.FragmentSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Keystone.FrameInterval)
	assert.Equal(t, []string{"https://app.example"}, cfg.Callback.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		wantErr error
	}{
		{"fragment size", KeyKeystoneFragment, 0, ErrInvalidFragmentSize},
		{"interval", KeyKeystoneInterval, "0s", ErrInvalidInterval},
		{"cache size", KeyHistoryCacheSize, -1, ErrInvalidCacheSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(KeyDataDir, "/tmp")
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("unknown network", func(t *testing.T) {
		v := viper.New()
		v.Set(KeyNetwork, "devnet")
		_, err := Load(v)
		assert.Error(t, err)
	})
}
