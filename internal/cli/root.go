package cli

import (
	"fmt"
	"os"
	"path/filepath"

	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tonsigner/tonsigner/internal/config"
)

var log = logger.GetOrCreate("cli")

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "tonsigner",
		Short: "TON wallet signer",
		Long: `tonsigner keeps TON wallets and signs for them.

Mnemonic wallets sign locally behind a passcode. Ledger, Keystone and the
Signer companion app sign externally: the message is shown as a deeplink,
a rotating QR code or a device prompt, and the result is pasted back or
delivered to the local callback server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.SetLogLevel(viper.GetString(config.KeyLogLevel))
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tonsigner/config.yaml)")
	flags.String("network", "mainnet", "TON network (mainnet or testnet)")
	flags.String("data-dir", "", "data directory (default is $HOME/.tonsigner)")
	flags.String("log-level", "*:INFO", "log level pattern, e.g. *:DEBUG or signer:TRACE")
	flags.String("wallet", "", "wallet identifier (prompted when several exist)")

	_ = viper.BindPFlag(config.KeyNetwork, flags.Lookup("network"))
	_ = viper.BindPFlag(config.KeyDataDir, flags.Lookup("data-dir"))
	_ = viper.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := config.DefaultDataDir()
		cobra.CheckErr(err)

		if err := os.MkdirAll(dir, 0700); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config directory: %v\n", err)
		}

		viper.AddConfigPath(dir)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	config.SetDefaults(viper.GetViper())

	// Silently ignore missing config file - it's optional
	if err := viper.ReadInConfig(); err == nil {
		log.Debug("using config file", "path", filepath.Clean(viper.ConfigFileUsed()))
	}
}
