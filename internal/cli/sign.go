package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tonsigner/tonsigner/internal/signer"
	"github.com/tonsigner/tonsigner/internal/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a message cell with the selected wallet",
	Long: `Sign a BOC-serialized message cell and print the signature as hex.

With --estimate the cell is signed with a throwaway key, which is enough
for fee estimation and never asks the user. With --proof the input is a
ton_proof buffer instead of a BOC.`,
	RunE: runSign,
}

var deeplinkCmd = &cobra.Command{
	Use:   "deeplink",
	Short: "Print the Signer deeplink for a message cell",
	RunE:  runDeeplink,
}

func init() {
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(deeplinkCmd)

	signCmd.Flags().String("boc", "", "Message cell as hex BOC")
	signCmd.Flags().String("proof", "", "ton_proof buffer as hex")
	signCmd.Flags().Bool("estimate", false, "Sign with the fee-estimation key")
	signCmd.Flags().Duration("timeout", 5*time.Minute, "How long to wait for an external signer")

	deeplinkCmd.Flags().String("boc", "", "Message cell as hex BOC")
	deeplinkCmd.Flags().String("return", "", "Return URI (default from config)")
}

func decodeHexFlag(cmd *cobra.Command, name string) ([]byte, error) {
	v, _ := cmd.Flags().GetString(name)
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(v), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return raw, nil
}

func signRequestFromFlags(cmd *cobra.Command) (signer.SignRequest, error) {
	estimate, _ := cmd.Flags().GetBool("estimate")
	bocSet := cmd.Flags().Changed("boc")
	proofSet := cmd.Flags().Changed("proof")

	switch {
	case bocSet == proofSet:
		return signer.SignRequest{}, fmt.Errorf("pass exactly one of --boc and --proof")
	case proofSet && estimate:
		return signer.SignRequest{}, fmt.Errorf("--estimate only applies to --boc")
	case proofSet:
		buf, err := decodeHexFlag(cmd, "proof")
		return signer.SignRequest{Kind: signer.KindProof, Payload: buf}, err
	}

	boc, err := decodeHexFlag(cmd, "boc")
	if err != nil {
		return signer.SignRequest{}, err
	}
	kind := signer.KindTransaction
	if estimate {
		kind = signer.KindEstimate
	}
	return signer.SignRequest{Kind: kind, Payload: boc}, nil
}

func runSign(cmd *cobra.Command, args []string) error {
	req, err := signRequestFromFlags(cmd)
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.credential(cmd)
	if err != nil {
		return err
	}

	session, err := a.newSigningSession(cred, cred.Type == wallet.TypeSignerDeeplink && req.Kind != signer.KindEstimate)
	if err != nil {
		return err
	}
	defer session.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	if req.Kind != signer.KindEstimate {
		if err := session.start(ctx); err != nil {
			return err
		}
	}

	sig, err := session.dispatcher.Sign(ctx, req)
	if err != nil {
		return fmt.Errorf("signing failed: %w", err)
	}
	log.Debug("signed", "wallet", cred.Identifier, "kind", string(req.Kind))
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(sig))
	return nil
}

func runDeeplink(cmd *cobra.Command, args []string) error {
	boc, err := decodeHexFlag(cmd, "boc")
	if err != nil {
		return err
	}
	msg, err := cell.FromBOC(boc)
	if err != nil {
		return fmt.Errorf("invalid --boc: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.credential(cmd)
	if err != nil {
		return err
	}
	if cred.Type != wallet.TypeSigner && cred.Type != wallet.TypeSignerDeeplink {
		return fmt.Errorf("%w: deeplinks are for Signer wallets", signer.ErrUnsupportedOperation)
	}

	returnURI, _ := cmd.Flags().GetString("return")
	if returnURI == "" {
		returnURI = a.cfg.Signer.ReturnURI
	}
	fmt.Fprintln(cmd.OutOrStdout(), signer.BuildDeeplink(cred.PublicKey, cred.VersionTag(), msg.ToBOCWithFlags(false), returnURI))
	return nil
}
