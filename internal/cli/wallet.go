package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tonsigner/tonsigner/internal/keystone"
	"github.com/tonsigner/tonsigner/internal/wallet"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage wallets",
	Long:  `Create, import, pair and remove TON wallets.`,
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new mnemonic wallet",
	RunE:  runWalletCreate,
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a wallet from its 24 words",
	RunE:  runWalletImport,
}

var walletAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a Signer or Ledger wallet by public key",
	RunE:  runWalletAdd,
}

var walletPairKeystoneCmd = &cobra.Command{
	Use:   "pair-keystone",
	Short: "Pair a Keystone device from its crypto-hdkey QR",
	Long: `Paste the ur:crypto-hdkey text the device shows, one frame per line.
Animated codes need every frame.`,
	RunE: runWalletPairKeystone,
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all wallets",
	RunE:  runWalletList,
}

var walletRemoveCmd = &cobra.Command{
	Use:   "remove <wallet-id>",
	Short: "Remove a wallet and its proof token",
	Args:  cobra.ExactArgs(1),
	RunE:  runWalletRemove,
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletCreateCmd)
	walletCmd.AddCommand(walletImportCmd)
	walletCmd.AddCommand(walletAddCmd)
	walletCmd.AddCommand(walletPairKeystoneCmd)
	walletCmd.AddCommand(walletListCmd)
	walletCmd.AddCommand(walletRemoveCmd)

	for _, c := range []*cobra.Command{walletCreateCmd, walletImportCmd, walletAddCmd, walletPairKeystoneCmd} {
		c.Flags().String("name", "Wallet", "Display name")
		c.Flags().String("version", string(wallet.V4R2), "Wallet contract version (v4R2 or v3R2)")
	}
	walletAddCmd.Flags().String("type", string(wallet.TypeSigner), "Wallet type: signer, signer-deeplink or ledger")
	walletAddCmd.Flags().String("pubkey", "", "Public key (hex)")
	walletAddCmd.Flags().String("ledger-device", "", "Ledger device id")
	walletAddCmd.Flags().String("ledger-model", "", "Ledger device model")
	walletAddCmd.Flags().Int("ledger-account", 0, "Ledger account index")
}

func readNewPasscode() (string, error) {
	passcode, err := readSecret("Enter passcode for the wallet: ")
	if err != nil {
		return "", fmt.Errorf("failed to read passcode: %w", err)
	}
	confirm, err := readSecret("Confirm passcode: ")
	if err != nil {
		return "", fmt.Errorf("failed to read passcode confirmation: %w", err)
	}
	if passcode != confirm {
		return "", fmt.Errorf("passcodes do not match")
	}
	return passcode, nil
}

func walletAddress(cred wallet.Credential) string {
	pub, err := cred.PubKey()
	if err != nil {
		return "?"
	}
	contract, err := wallet.NewContract(pub, cred.Version, cred.Network)
	if err != nil {
		return "?"
	}
	return contract.Address.String()
}

func runWalletCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name, _ := cmd.Flags().GetString("name")
	version, _ := cmd.Flags().GetString("version")

	passcode, err := readNewPasscode()
	if err != nil {
		return err
	}

	cred, words, err := a.wallets.CreateMnemonic(cmd.Context(), name, passcode, wallet.Version(version), a.cfg.Network.Name)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nWallet created successfully!")
	fmt.Fprintf(out, "ID:      %s\n", cred.Identifier)
	fmt.Fprintf(out, "Address: %s\n", walletAddress(cred))
	fmt.Fprintln(out, "\nRecovery words (write them down, they are shown once):")
	for i, w := range words {
		fmt.Fprintf(out, "%2d. %s\n", i+1, w)
	}
	return nil
}

func runWalletImport(cmd *cobra.Command, args []string) error {
	fmt.Fprint(cmd.ErrOrStderr(), "Enter the 24 words: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read mnemonic: %w", err)
	}
	words, err := wallet.NormalizeMnemonic(line)
	if err != nil {
		return err
	}
	if err := wallet.ValidateMnemonic(words); err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	passcode, err := readNewPasscode()
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	version, _ := cmd.Flags().GetString("version")
	cred, err := a.wallets.ImportMnemonic(cmd.Context(), name, words, passcode, wallet.Version(version), a.cfg.Network.Name)
	if err != nil {
		return fmt.Errorf("failed to import wallet: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nWallet imported successfully!")
	fmt.Fprintf(cmd.OutOrStdout(), "ID:      %s\nAddress: %s\n", cred.Identifier, walletAddress(cred))
	return nil
}

func runWalletAdd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	name, _ := flags.GetString("name")
	version, _ := flags.GetString("version")
	typ, _ := flags.GetString("type")
	pubkey, _ := flags.GetString("pubkey")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cred := wallet.Credential{
		Name:      name,
		Type:      wallet.WalletType(typ),
		PublicKey: strings.ToLower(strings.TrimPrefix(pubkey, "0x")),
		Version:   wallet.Version(version),
		Network:   a.cfg.Network.Name,
	}
	switch cred.Type {
	case wallet.TypeSigner, wallet.TypeSignerDeeplink:
	case wallet.TypeLedger:
		device, _ := flags.GetString("ledger-device")
		model, _ := flags.GetString("ledger-model")
		account, _ := flags.GetInt("ledger-account")
		cred.Ledger = &wallet.LedgerMeta{DeviceID: device, DeviceModel: model, AccountIndex: account}
	default:
		return fmt.Errorf("%w: %q (use wallet create, import or pair-keystone)", wallet.ErrUnknownWalletType, typ)
	}

	cred, err = a.wallets.AddCredential(cmd.Context(), cred)
	if err != nil {
		return fmt.Errorf("failed to add wallet: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wallet added.\nID:      %s\nAddress: %s\n", cred.Identifier, walletAddress(cred))
	return nil
}

func runWalletPairKeystone(cmd *cobra.Command, args []string) error {
	var account keystone.TonAccount
	session := keystone.NewPairSession(func(acc keystone.TonAccount) { account = acc })
	decoder := keystone.NewDecoder()

	fmt.Fprintln(cmd.ErrOrStderr(), "Paste the ur:crypto-hdkey frames:")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	paired := false
	for !paired && scanner.Scan() {
		text := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if text == "" {
			continue
		}
		if err := decoder.Receive(text); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "invalid qrcode")
			decoder = keystone.NewDecoder()
			continue
		}
		if !decoder.IsComplete() {
			continue
		}
		ur, _ := decoder.Result()
		decoder = keystone.NewDecoder()

		status := session.HandleScan(ur)
		if status.State == keystone.ScanFailed {
			fmt.Fprintln(cmd.ErrOrStderr(), status.ErrorMessage)
			continue
		}
		paired = true
	}
	if !paired {
		return fmt.Errorf("no crypto-hdkey received")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name, _ := cmd.Flags().GetString("name")
	if name == "Wallet" && account.Name != "" {
		name = account.Name
	}
	version, _ := cmd.Flags().GetString("version")
	cred := wallet.Credential{
		Name:      name,
		Type:      wallet.TypeKeystone,
		PublicKey: account.PublicKey,
		Version:   wallet.Version(version),
		Network:   a.cfg.Network.Name,
		Keystone:  &wallet.KeystoneMeta{XFP: account.XFP, Path: account.Path},
	}
	cred, err = a.wallets.AddCredential(cmd.Context(), cred)
	if err != nil {
		return fmt.Errorf("failed to add keystone wallet: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Keystone paired.\nID:      %s\nAddress: %s\n", cred.Identifier, walletAddress(cred))
	return nil
}

func runWalletList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.wallets.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No wallets found.")
		fmt.Fprintln(out, "Use 'tonsigner wallet create' to create a new wallet.")
		return nil
	}

	fmt.Fprintf(out, "Found %d wallet(s):\n\n", len(list))
	for i, c := range list {
		fmt.Fprintf(out, "%d. %s  %s  [%s %s %s]\n   %s\n", i+1, c.Identifier, c.Name, c.Type, c.Version, c.Network, walletAddress(c))
	}
	return nil
}

func runWalletRemove(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	cred, err := a.wallets.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.proofManager(cred).Destroy(ctx); err != nil {
		log.Warn("proof token cleanup failed", "wallet", cred.Identifier, "error", err)
	}
	if err := a.wallets.Remove(ctx, cred.Identifier); err != nil {
		return fmt.Errorf("failed to remove wallet: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", cred.Identifier)
	return nil
}
