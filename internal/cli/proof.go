package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tonsigner/tonsigner/internal/redact"
	"github.com/tonsigner/tonsigner/internal/signer"
	"github.com/tonsigner/tonsigner/internal/wallet"
)

var proofCmd = &cobra.Command{
	Use:   "proof",
	Short: "Manage the tonapi proof token of a wallet",
}

var proofObtainCmd = &cobra.Command{
	Use:   "obtain",
	Short: "Sign a ton_proof and exchange it for a token",
	RunE:  runProofObtain,
}

var proofShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored proof token",
	RunE:  runProofShow,
}

func init() {
	rootCmd.AddCommand(proofCmd)
	proofCmd.AddCommand(proofObtainCmd)
	proofCmd.AddCommand(proofShowCmd)

	proofObtainCmd.Flags().Duration("timeout", 5*time.Minute, "How long to wait for the device")
	proofShowCmd.Flags().Bool("reveal", false, "Print the full token")
}

func runProofObtain(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.credential(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	session, err := a.newSigningSession(cred, false)
	if err != nil {
		return err
	}
	defer session.close()

	pm := a.proofManager(cred)
	var (
		token string
		ok    bool
	)
	switch cred.Type {
	case wallet.TypeRegular:
		secret, err := session.dispatcher.Mnemonic(ctx)
		if err != nil {
			return err
		}
		token, ok = pm.ObtainProof(ctx, secret.KeyPair)
	case wallet.TypeKeystone:
		pub, err := cred.PubKey()
		if err != nil {
			return err
		}
		unsigned, created := pm.CreateUnsignedProof(ctx, pub)
		if !created {
			return fmt.Errorf("could not prepare proof: %w", signer.ErrNetworkFailure)
		}
		if err := session.start(ctx); err != nil {
			return err
		}
		sig, err := session.dispatcher.Sign(ctx, signer.SignRequest{Kind: signer.KindProof, Payload: unsigned.BufferToSign})
		if err != nil {
			return fmt.Errorf("signing failed: %w", err)
		}
		token, ok = pm.AcceptSignedProof(ctx, unsigned.Signed(sig))
	default:
		return fmt.Errorf("%w: proof on %s wallet", signer.ErrUnsupportedOperation, cred.Type)
	}

	if !ok {
		return fmt.Errorf("no proof token: %w", signer.ErrNetworkFailure)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Proof token stored for %s (%s).\n", cred.Identifier, redact.Short(token))
	return nil
}

func runProofShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.credential(cmd)
	if err != nil {
		return err
	}

	pm := a.proofManager(cred)
	pm.Rehydrate(cmd.Context())
	token := pm.Token()
	if token == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No proof token. Run 'tonsigner proof obtain'.")
		return nil
	}

	if reveal, _ := cmd.Flags().GetBool("reveal"); !reveal {
		token = redact.Short(token)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
