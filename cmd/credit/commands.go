package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/org/creditledger/internal/records"
	"github.com/org/creditledger/internal/wallet"
	"github.com/org/creditledger/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// --- wallet ---

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "wallet", Short: "Manage the signing wallet"}

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			w, err := wallet.Create(cfg.Wallet, force)
			if err != nil {
				return err
			}
			printWallet(cmd, w)
			return nil
		},
	}
	newCmd.Flags().Bool("force", false, "Replace an existing wallet")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the wallet address",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wallet.Load(cfg.Wallet)
			if err != nil {
				return err
			}
			printWallet(cmd, w)
			return nil
		},
	}

	cmd.AddCommand(newCmd, showCmd)
	return cmd
}

func printWallet(cmd *cobra.Command, w *wallet.Wallet) {
	if outputFormat == "json" {
		printJSON(cmd.OutOrStdout(), map[string]any{
			"address":    w.Address,
			"path":       w.Path,
			"created_at": w.CreatedAt,
		})
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Address: %s\nWallet:  %s\n", w.Address, w.Path)
}

// --- config ---

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Show or change CLI settings"}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			printJSON(cmd.OutOrStdout(), cfg)
			return nil
		},
	}

	setAddrCmd := &cobra.Command{
		Use:   "set-address <url>",
		Short: "Set the ledger server address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := readConfigFile(configPath())
			if err != nil {
				return err
			}
			stored.Address = strings.TrimRight(args[0], "/")
			if err := saveConfig(configPath(), stored); err != nil {
				return err
			}
			cfg.Address = stored.Address
			printSuccess(cmd.OutOrStdout(), "Ledger address saved.")
			return nil
		},
	}

	cmd.AddCommand(showCmd, setAddrCmd)
	return cmd
}

// --- records ---

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "records", Short: "List, submit and verify records"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			mine, _ := cmd.Flags().GetBool("mine")
			a, err := newApp()
			if err != nil {
				return err
			}
			snap, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			viewer := viewerAddress()
			recs := snap.Records()
			if mine {
				if viewer == "" {
					return records.ErrNoSigner
				}
				recs = snap.Owned(viewer)
			}
			printRecords(cmd.OutOrStdout(), recs, viewer)
			return nil
		},
	}
	listCmd.Flags().Bool("mine", false, "Only records owned by this wallet")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record; its contents are decoded for the owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			snap, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			r, ok := snap.Find(args[0])
			if !ok {
				return records.ErrNotFound
			}
			printRecord(cmd.OutOrStdout(), r, viewerAddress())
			return nil
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Count records by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			snap, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), snap.Stats())
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Encrypt and submit a new record",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString("category")
			description, _ := cmd.Flags().GetString("description")
			sensitive, _ := cmd.Flags().GetString("sensitive")

			a, err := newApp()
			if err != nil {
				return err
			}
			s, err := signer()
			if err != nil {
				return err
			}
			rec, snap, err := a.ctrl.Create(cmd.Context(), s, records.NewRecord{
				Category:      parseCategory(category),
				Description:   description,
				SensitiveInfo: sensitive,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSuccess(out, fmt.Sprintf("Record %s submitted.", rec.ID))
			if _, ok := snap.Find(rec.ID); !ok {
				printSuccess(out, "It will appear in the list once the ledger confirms it.")
			}
			return nil
		},
	}
	createCmd.Flags().String("category", "", "One of: "+categoryNames())
	createCmd.Flags().String("description", "", "Short description")
	createCmd.Flags().String("sensitive", "", "The financial data to encrypt")
	createCmd.MarkFlagRequired("category")  //nolint:errcheck
	createCmd.MarkFlagRequired("sensitive") //nolint:errcheck

	cmd.AddCommand(listCmd, showCmd, statsCmd, createCmd,
		transitionCmd("verify", models.StatusVerified),
		transitionCmd("reject", models.StatusRejected),
		watchCmd())
	return cmd
}

func transitionCmd(verb string, target models.Status) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: fmt.Sprintf("Mark a pending record as %s", target),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			a, err := newApp()
			if err != nil {
				return err
			}
			s, err := signer()
			if err != nil {
				return err
			}
			if s != nil {
				if err := requireOwner(cmd.Context(), a, id, s.Address()); err != nil {
					return err
				}
			}

			apply := a.ctrl.Verify
			if target == models.StatusRejected {
				apply = a.ctrl.Reject
			}
			snap, err := apply(cmd.Context(), s, id)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Record %s %s.", id, target)
			if r, ok := snap.Find(id); ok && r.Status != target {
				msg += " The list will reflect it once the ledger confirms it."
			}
			printSuccess(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

// requireOwner refuses to transition a listed record the signer does not
// own. Unlisted ids are left to the controller to report.
func requireOwner(ctx context.Context, a *app, id, addr string) error {
	snap, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	r, ok := snap.Find(id)
	if ok && !r.OwnedBy(addr) {
		return fmt.Errorf("record %s belongs to %s; only its owner can change its status", id, shortAddr(r.Owner))
	}
	return nil
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-list records periodically and when the wallet changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			if interval <= 0 {
				return errors.New("--interval must be positive")
			}
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			identity, err := wallet.Watch(ctx, cfg.Wallet)
			if err != nil {
				log.Warn().Err(err).Msg("not watching wallet for changes")
			}
			viewer := viewerAddress()
			out := cmd.OutOrStdout()

			last := ""
			render := func(force bool) {
				snap, err := a.store.List(ctx)
				if err != nil {
					if ctx.Err() == nil {
						printError(describe(err))
					}
					return
				}
				fp := fingerprint(snap)
				if fp == last && !force {
					return
				}
				last = fp
				fmt.Fprintf(out, "\n%s  records as of %s", faintColor.Sprint("--"), snap.TakenAt.Format("15:04:05"))
				if viewer != "" {
					fmt.Fprintf(out, " (wallet %s)", shortAddr(viewer))
				}
				fmt.Fprintln(out)
				printRecords(out, snap.Records(), viewer)
			}

			render(true)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					render(false)
				case ev, ok := <-identity:
					if !ok {
						identity = nil
						continue
					}
					if ev.Err != nil {
						log.Warn().Err(ev.Err).Msg("wallet changed but could not be loaded")
						continue
					}
					viewer = ev.Address
					if viewer == "" {
						fmt.Fprintln(out, "Wallet disconnected.")
					} else {
						fmt.Fprintf(out, "Wallet switched to %s.\n", viewer)
					}
					render(true)
				}
			}
		},
	}
	cmd.Flags().Duration("interval", 5*time.Second, "How often to re-list")
	return cmd
}

// fingerprint identifies a listing by ids and statuses.
func fingerprint(s records.Snapshot) string {
	var b strings.Builder
	for _, r := range s.Records() {
		b.WriteString(r.ID)
		b.WriteByte(':')
		b.WriteString(string(r.Status))
		b.WriteByte(';')
	}
	return b.String()
}

// parseCategory accepts category names in any case. Unknown names are
// passed through for the controller to refuse.
func parseCategory(s string) models.Category {
	for _, c := range models.Categories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c
		}
	}
	return models.Category(s)
}

func categoryNames() string {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
