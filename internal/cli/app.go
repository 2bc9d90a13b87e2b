package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tonsigner/tonsigner/internal/callback"
	"github.com/tonsigner/tonsigner/internal/config"
	"github.com/tonsigner/tonsigner/internal/proof"
	"github.com/tonsigner/tonsigner/internal/securestore"
	"github.com/tonsigner/tonsigner/internal/signer"
	"github.com/tonsigner/tonsigner/internal/tonapi"
	"github.com/tonsigner/tonsigner/internal/ui"
	"github.com/tonsigner/tonsigner/internal/wallet"
)

var errSeveralWallets = errors.New("several wallets exist, pass --wallet")

// Terminal hooks, replaced in tests.
var (
	passcodePrompt = ui.TerminalPasscode(os.Stdin, os.Stderr)
	interactive    = ui.IsInteractive
)

var readSecret = func(prompt string) (string, error) {
	return ui.ReadSecret(os.Stdin, os.Stderr, prompt)
}

var launcher signer.Launcher = browserLauncher{}

type browserLauncher struct{}

func (browserLauncher) OpenURL(_ context.Context, url string) error {
	return browser.OpenURL(url)
}

// app is what every command needs once config is resolved.
type app struct {
	cfg     *config.Config
	store   *securestore.Store
	wallets *wallet.Manager
	api     *tonapi.Client
}

func openApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := securestore.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open secure store: %w", err)
	}

	return &app{
		cfg:     cfg,
		store:   store,
		wallets: wallet.NewManager(store, securestore.DefaultKDF),
		api:     tonapi.NewClient(cfg.TonAPI.BaseURL, cfg.TonAPI.Token, nil),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn("closing secure store", "error", err)
	}
}

// credential resolves --wallet, asking the user when it is empty and more
// than one wallet exists.
func (a *app) credential(cmd *cobra.Command) (wallet.Credential, error) {
	ctx := cmd.Context()
	id, _ := cmd.Flags().GetString("wallet")
	if id != "" {
		return a.wallets.Get(ctx, id)
	}

	list, err := a.wallets.List(ctx)
	if err != nil {
		return wallet.Credential{}, err
	}
	if len(list) > 1 && !interactive() {
		return wallet.Credential{}, errSeveralWallets
	}
	id, err = ui.SelectWallet(list, "")
	if err != nil {
		return wallet.Credential{}, err
	}
	return a.wallets.Get(ctx, id)
}

func (a *app) proofManager(cred wallet.Credential) *proof.Manager {
	return proof.NewManager(cred.Identifier, cred.Network, a.api, a.store)
}

// signingSession is a dispatcher plus the screens and callback server that
// feed it external results.
type signingSession struct {
	dispatcher *signer.Dispatcher
	presenter  *signer.ChannelPresenter
	runner     *ui.Runner
	server     *callback.WebServer
}

func (a *app) newSigningSession(cred wallet.Credential, withCallback bool) (*signingSession, error) {
	presenter := signer.NewChannelPresenter(1)
	returnURI := a.cfg.Signer.ReturnURI
	if withCallback {
		returnURI = "http://" + a.cfg.Callback.ListenAddress + "/publish"
	}

	d, err := signer.NewDispatcher(signer.Args{
		Credential:      cred,
		Vault:           signer.NewWalletVault(a.wallets, passcodePrompt),
		Presenter:       presenter,
		Launcher:        launcher,
		ReturnURI:       returnURI,
		WatchdogTimeout: a.cfg.Signer.WatchdogTimeout,
		SettleDelay:     a.cfg.Signer.SettleDelay,
		KeystoneOrigin:  a.cfg.Keystone.Origin,
	})
	if err != nil {
		return nil, err
	}

	s := &signingSession{
		dispatcher: d,
		presenter:  presenter,
		runner: ui.NewRunner(presenter, ui.ConfirmOptions{
			FragmentSize:  a.cfg.Keystone.FragmentSize,
			FrameInterval: a.cfg.Keystone.FrameInterval,
		}),
	}
	if withCallback {
		s.server, err = callback.NewWebServer(callback.ArgsWebServer{
			ListenAddress:  a.cfg.Callback.ListenAddress,
			Sink:           d,
			AllowedOrigins: a.cfg.Callback.AllowedOrigins,
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// start runs the screens (and the callback server) until ctx is done.
func (s *signingSession) start(ctx context.Context) error {
	if s.server != nil {
		if err := s.server.StartHttpServer(); err != nil {
			return fmt.Errorf("failed to start callback server: %w", err)
		}
	}
	go func() {
		if err := s.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("confirm screens stopped", "error", err)
		}
	}()
	return nil
}

func (s *signingSession) close() {
	if s.server != nil {
		_ = s.server.Close()
	}
}
