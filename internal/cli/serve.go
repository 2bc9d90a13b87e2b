package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tonsigner/tonsigner/internal/callback"
	"github.com/tonsigner/tonsigner/internal/signer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the callback server that receives Signer results",
	Long: `Run the local HTTP endpoint the Signer app returns to.

GET /publish?sign=<hex> and POST /signer/result accept a signature and hand
it to the pending request of the selected wallet. Signatures that arrive
while nothing is pending are dropped.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.credential(cmd)
	if err != nil {
		return err
	}
	session, err := a.newSigningSession(cred, false)
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen == "" {
		listen = a.cfg.Callback.ListenAddress
	}
	server, err := callback.NewWebServer(callback.ArgsWebServer{
		ListenAddress:  listen,
		Sink:           session.dispatcher,
		AllowedOrigins: a.cfg.Callback.AllowedOrigins,
	})
	if err != nil {
		return err
	}
	if err := server.StartHttpServer(); err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	defer func() { _ = server.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serveUntilDone(ctx, cmd, server, session.dispatcher)
}

func serveUntilDone(ctx context.Context, cmd *cobra.Command, server *callback.WebServer, d *signer.Dispatcher) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s (wallet %s). Ctrl+C to stop.\n", server.Addr(), d.Credential().Identifier)
	<-ctx.Done()
	log.Info("callback server shutting down", "pending", d.State().String())
	return nil
}
