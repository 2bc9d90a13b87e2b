// Package config turns viper settings into a typed Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tonsigner/tonsigner/internal/chain"
)

// EnvPrefix is the environment prefix, e.g. TONSIGNER_NETWORK.
const EnvPrefix = "TONSIGNER"

const (
	KeyNetwork           = "network"
	KeyDataDir           = "data_dir"
	KeyLogLevel          = "log_level"
	KeyTonAPIBaseURL     = "tonapi.base_url"
	KeyTonAPIStreamURL   = "tonapi.stream_url"
	KeyTonAPIToken       = "tonapi.token"
	KeySignerReturnURI   = "signer.return_uri"
	KeySignerWatchdog    = "signer.watchdog_timeout"
	KeySignerSettleDelay = "signer.settle_delay"
	KeyKeystoneFragment  = "keystone.fragment_size"
	KeyKeystoneInterval  = "keystone.frame_interval"
	KeyKeystoneOrigin    = "keystone.origin"
	KeyCallbackListen    = "callback.listen_address"
	KeyCallbackOrigins   = "callback.allowed_origins"
	KeyHistoryCacheSize  = "history.cache_size"
)

var (
	ErrInvalidFragmentSize = errors.New("keystone fragment size must be positive")
	ErrInvalidInterval     = errors.New("keystone frame interval must be positive")
	ErrInvalidCacheSize    = errors.New("history cache size must be positive")
)

// Config is the resolved runtime configuration.
type Config struct {
	Network  *chain.NetworkConfig
	DataDir  string
	LogLevel string
	TonAPI   TonAPIConfig
	Signer   SignerConfig
	Keystone KeystoneConfig
	Callback CallbackConfig
	History  HistoryConfig
}

type TonAPIConfig struct {
	BaseURL   string
	StreamURL string
	Token     string
}

type SignerConfig struct {
	ReturnURI       string
	WatchdogTimeout time.Duration
	// SettleDelay is waited before a companion result is applied.
	SettleDelay time.Duration
}

type KeystoneConfig struct {
	FragmentSize  int
	FrameInterval time.Duration
	Origin        string
}

type CallbackConfig struct {
	ListenAddress  string
	AllowedOrigins []string
}

type HistoryConfig struct {
	CacheSize int
}

// DefaultDataDir is $HOME/.tonsigner.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".tonsigner"), nil
}

// SetDefaults registers defaults and env binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyNetwork, string(chain.Mainnet))
	v.SetDefault(KeyLogLevel, "*:INFO")
	v.SetDefault(KeySignerReturnURI, "tonkeeper://publish")
	v.SetDefault(KeySignerWatchdog, 3*time.Second)
	v.SetDefault(KeySignerSettleDelay, time.Duration(0))
	v.SetDefault(KeyKeystoneFragment, 400)
	v.SetDefault(KeyKeystoneInterval, 100*time.Millisecond)
	v.SetDefault(KeyKeystoneOrigin, "tonkeeper")
	v.SetDefault(KeyCallbackListen, "127.0.0.1:8787")
	v.SetDefault(KeyCallbackOrigins, []string{})
	v.SetDefault(KeyHistoryCacheSize, 1000)
}

// Load reads v into a Config. Endpoint values left empty fall back to the
// selected network's table entry.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	network, err := chain.LookupNetwork(v.GetString(KeyNetwork))
	if err != nil {
		return nil, err
	}

	dataDir := v.GetString(KeyDataDir)
	if dataDir == "" {
		if dataDir, err = DefaultDataDir(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Network:  network,
		DataDir:  dataDir,
		LogLevel: v.GetString(KeyLogLevel),
		TonAPI: TonAPIConfig{
			BaseURL:   firstNonEmpty(v.GetString(KeyTonAPIBaseURL), network.APIURL),
			StreamURL: firstNonEmpty(v.GetString(KeyTonAPIStreamURL), network.StreamURL),
			Token:     v.GetString(KeyTonAPIToken),
		},
		Signer: SignerConfig{
			ReturnURI:       v.GetString(KeySignerReturnURI),
			WatchdogTimeout: v.GetDuration(KeySignerWatchdog),
			SettleDelay:     v.GetDuration(KeySignerSettleDelay),
		},
		Keystone: KeystoneConfig{
			FragmentSize:  v.GetInt(KeyKeystoneFragment),
			FrameInterval: v.GetDuration(KeyKeystoneInterval),
			Origin:        v.GetString(KeyKeystoneOrigin),
		},
		Callback: CallbackConfig{
			ListenAddress:  v.GetString(KeyCallbackListen),
			AllowedOrigins: splitOrigins(v.GetStringSlice(KeyCallbackOrigins)),
		},
		History: HistoryConfig{
			CacheSize: v.GetInt(KeyHistoryCacheSize),
		},
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch {
	case c.Keystone.FragmentSize <= 0:
		return ErrInvalidFragmentSize
	case c.Keystone.FrameInterval <= 0:
		return ErrInvalidInterval
	case c.History.CacheSize <= 0:
		return ErrInvalidCacheSize
	}
	return nil
}

// splitOrigins accepts both list values and a single comma separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, s := range values {
		if s != "" {
			return s
		}
	}
	return ""
}
