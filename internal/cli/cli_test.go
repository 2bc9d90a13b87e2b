package cli

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonsigner/tonsigner/internal/chain"
	"github.com/tonsigner/tonsigner/internal/securestore"
	"github.com/tonsigner/tonsigner/internal/testutil"
	"github.com/tonsigner/tonsigner/internal/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const testPasscode = "1234"

var idLine = regexp.MustCompile(`ID:\s+(\S+)`)

func setupCLI(t *testing.T) string {
	t.Helper()
	home := testutil.TempDir(t)
	dataDir := filepath.Join(home, "data")
	testutil.SetEnv(t, "HOME", home)
	testutil.SetEnv(t, "TONSIGNER_DATA_DIR", dataDir)
	testutil.UnsetEnv(t, "TONSIGNER_NETWORK")

	oldSecret, oldPrompt, oldInteractive := readSecret, passcodePrompt, interactive
	readSecret = func(string) (string, error) { return testPasscode, nil }
	passcodePrompt = func(context.Context, string) (string, error) { return testPasscode, nil }
	interactive = func() bool { return false }
	t.Cleanup(func() {
		readSecret, passcodePrompt, interactive = oldSecret, oldPrompt, oldInteractive
	})
	return dataDir
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	require.NoError(t, err, out)
	return out
}

func testBOC(t *testing.T) (string, *cell.Cell) {
	t.Helper()
	c := cell.BeginCell().MustStoreUInt(0xdeadbeef, 32).EndCell()
	return hex.EncodeToString(c.ToBOCWithFlags(false)), c
}

func loadCredential(t *testing.T, dataDir, id string) wallet.Credential {
	t.Helper()
	store, err := securestore.Open(dataDir)
	require.NoError(t, err)
	defer store.Close()

	cred, err := wallet.NewManager(store, securestore.DefaultKDF).Get(context.Background(), id)
	require.NoError(t, err)
	return cred
}

func TestWalletLifecycle(t *testing.T) {
	dataDir := setupCLI(t)

	out := mustRun(t, "wallet", "list")
	assert.Contains(t, out, "No wallets found.")

	out = mustRun(t, "wallet", "create", "--name", "main")
	assert.Contains(t, out, "Wallet created successfully!")
	assert.Contains(t, out, "24. ")
	m := idLine.FindStringSubmatch(out)
	require.Len(t, m, 2)
	id := m[1]

	out = mustRun(t, "wallet", "list")
	assert.Contains(t, out, "Found 1 wallet(s)")
	assert.Contains(t, out, id)

	bocHex, msg := testBOC(t)
	cred := loadCredential(t, dataDir, id)
	pub, err := cred.PubKey()
	require.NoError(t, err)

	t.Run("sign with vault", func(t *testing.T) {
		out := mustRun(t, "sign", "--boc", bocHex)
		sig, err := hex.DecodeString(strings.TrimSpace(out))
		require.NoError(t, err)
		assert.True(t, ed25519.Verify(pub, msg.Hash(), sig))
	})

	t.Run("estimate", func(t *testing.T) {
		out := mustRun(t, "sign", "--estimate", "--boc", bocHex)
		sig, err := hex.DecodeString(strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Len(t, sig, ed25519.SignatureSize)
		assert.False(t, ed25519.Verify(pub, msg.Hash(), sig))
	})

	t.Run("deeplink refuses regular wallets", func(t *testing.T) {
		_, err := run(t, "", "deeplink", "--boc", bocHex)
		assert.Error(t, err)
	})

	out = mustRun(t, "wallet", "remove", id)
	assert.Contains(t, out, "Removed "+id)
	out = mustRun(t, "wallet", "list")
	assert.Contains(t, out, "No wallets found.")
}

func TestWalletImport(t *testing.T) {
	setupCLI(t)

	words, err := wallet.NewMnemonic()
	require.NoError(t, err)
	key, err := wallet.KeyFromMnemonic(words)
	require.NoError(t, err)
	contract, err := wallet.NewContract(key.Public().(ed25519.PublicKey), wallet.V4R2, chain.Mainnet)
	require.NoError(t, err)

	out, err := run(t, strings.Join(words, " ")+"\n", "wallet", "import", "--name", "imported")
	require.NoError(t, err)
	assert.Contains(t, out, "Wallet imported successfully!")
	assert.Contains(t, out, contract.Address.String())

	_, err = run(t, "too few words\n", "wallet", "import")
	assert.ErrorIs(t, err, wallet.ErrInvalidMnemonic)

	_, err = run(t, strings.Repeat("notaword ", 24)+"\n", "wallet", "import", "--name", "junk")
	assert.ErrorIs(t, err, wallet.ErrInvalidMnemonic)
}

func TestSignerWalletDeeplink(t *testing.T) {
	setupCLI(t)
	pub := strings.Repeat("ab", 32)

	out := mustRun(t, "wallet", "add", "--type", "signer", "--pubkey", pub, "--name", "phone")
	assert.Contains(t, out, "Wallet added.")
	id := idLine.FindStringSubmatch(out)[1]

	bocHex, msg := testBOC(t)
	out = mustRun(t, "deeplink", "--boc", bocHex)
	link := strings.TrimSpace(out)
	assert.Equal(t, "tonsign://v1/?pk="+pub+"&v=v4r2&body="+hex.EncodeToString(msg.ToBOCWithFlags(false))+"&return=tonkeeper://publish", link)

	mustRun(t, "wallet", "add", "--type", "ledger", "--pubkey", strings.Repeat("cd", 32), "--ledger-device", "nano")
	_, err := run(t, "", "deeplink", "--boc", bocHex)
	assert.ErrorIs(t, err, errSeveralWallets)

	out = mustRun(t, "deeplink", "--boc", bocHex, "--wallet", id, "--return", "http://127.0.0.1:1/publish")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "&return=http://127.0.0.1:1/publish"))

	_, err = run(t, "", "wallet", "add", "--type", "keystone", "--pubkey", pub)
	assert.ErrorIs(t, err, wallet.ErrUnknownWalletType)
}

func TestSignFlags(t *testing.T) {
	setupCLI(t)

	_, err := run(t, "", "sign")
	assert.Error(t, err)
	_, err = run(t, "", "sign", "--boc", "00", "--proof", "00")
	assert.Error(t, err)
	_, err = run(t, "", "sign", "--proof", "00", "--estimate")
	assert.Error(t, err)
	_, err = run(t, "", "sign", "--boc", "zz")
	assert.Error(t, err)
}

func TestProofShowWithoutToken(t *testing.T) {
	setupCLI(t)
	mustRun(t, "wallet", "add", "--type", "signer", "--pubkey", strings.Repeat("ab", 32))

	out := mustRun(t, "proof", "show")
	assert.Contains(t, out, "No proof token")

	_, err := run(t, "", "proof", "obtain", "--timeout", "1s")
	assert.Error(t, err)
}
