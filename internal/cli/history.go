package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tonsigner/tonsigner/internal/chain"
	"github.com/tonsigner/tonsigner/internal/history"
	"github.com/tonsigner/tonsigner/internal/tonapi"
	"github.com/tonsigner/tonsigner/internal/wallet"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the wallet's transactions",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int64("before-lt", 0, "Only events older than this logical time")
	historyCmd.Flags().Bool("follow", false, "Keep running and print new transactions as they arrive")
}

func (a *app) historyManager(cred wallet.Credential) (*history.Manager, error) {
	pub, err := cred.PubKey()
	if err != nil {
		return nil, err
	}
	contract, err := wallet.NewContract(pub, cred.Version, cred.Network)
	if err != nil {
		return nil, err
	}
	return history.NewManager(history.Args{
		AccountID: contract.RawAddress(),
		API:       a.api,
		Stream:    tonapi.NewStream(a.cfg.TonAPI.StreamURL, a.cfg.TonAPI.Token),
		CacheSize: a.cfg.History.CacheSize,
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cred, err := a.credential(cmd)
	if err != nil {
		return err
	}
	hm, err := a.historyManager(cred)
	if err != nil {
		return err
	}
	defer hm.Destroy()

	beforeLt, _ := cmd.Flags().GetInt64("before-lt")
	page, err := hm.Fetch(cmd.Context(), beforeLt)
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}

	out := cmd.OutOrStdout()
	txs := history.MapEvents(hm.AccountID(), page.Events)
	if len(txs) == 0 {
		fmt.Fprintln(out, "No transactions.")
	}
	printTransactions(out, txs)
	if page.NextFrom != 0 {
		fmt.Fprintf(out, "\nMore: --before-lt %d\n", page.NextFrom)
	}

	if follow, _ := cmd.Flags().GetBool("follow"); follow {
		return followHistory(cmd.Context(), out, hm)
	}
	return nil
}

func followHistory(ctx context.Context, out io.Writer, hm *history.Manager) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	updates := make(chan []history.Transaction, 1)
	sub := hm.SubscribeUpdates(updates)
	defer sub.Unsubscribe()

	errc := make(chan error, 1)
	go func() { errc <- hm.Listen(ctx) }()

	seen := make(map[string]struct{})
	for {
		select {
		case txs := <-updates:
			var fresh []history.Transaction
			for _, tx := range txs {
				if _, ok := seen[tx.TxID]; !ok {
					seen[tx.TxID] = struct{}{}
					fresh = append(fresh, tx)
				}
			}
			printTransactions(out, fresh)
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func printTransactions(out io.Writer, txs []history.Transaction) {
	for _, tx := range txs {
		ts := time.Unix(tx.Timestamp, 0).UTC().Format(time.RFC3339)
		status := tx.Action.Status
		if tx.InProgress {
			status = "pending"
		}
		fmt.Fprintf(out, "%s  %-4s %-16s %-18s %-8s %s\n", ts, tx.Destination, tx.Action.Type, formatAmount(tx), status, tx.TxID)
		if tx.Action.Comment != "" {
			fmt.Fprintf(out, "    %q\n", tx.Action.Comment)
		}
	}
}

func formatAmount(tx history.Transaction) string {
	if tx.Action.Type == tonapi.ActionTonTransfer {
		var nano int64
		if err := json.Unmarshal(tx.Action.Amount, &nano); err == nil {
			return chain.FormatNano(nano) + " TON"
		}
	}
	return tx.Action.SimplePreview.Value
}
