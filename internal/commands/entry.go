package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/money"
)

func newEntryCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Post, draft and void journal entries",
	}
	cmd.AddCommand(
		newEntryPostCommand(opts),
		newEntryAddCommand(opts),
		newEntryDraftCommand(opts),
		newEntryDiscardCommand(opts),
		newEntryVoidCommand(opts),
		newEntryListCommand(opts),
		newEntryExportCommand(opts),
		newTrialBalanceCommand(opts),
	)
	return cmd
}

// readEntryFile decodes an entry YAML file; "-" reads stdin.
func readEntryFile(cmd *cobra.Command, path string) (journal.EntryFile, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return journal.EntryFile{}, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	return journal.ReadEntryFile(r)
}

func newEntryPostCommand(opts *options) *cobra.Command {
	var file, key string

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post an entry described by a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ef, err := readEntryFile(cmd, file)
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				d, err := ef.Draft(a.tenant, a.currency(), a.resolveAccount(ctx))
				if err != nil {
					return err
				}
				if key == "" {
					key = uuid.NewString()
				}
				e, err := a.journal.PostEntry(ctx, journal.PostRequest{IdempotencyKey: key, Actor: a.actor, Draft: d})
				if err != nil {
					return err
				}
				printEntry(cmd.OutOrStdout(), "Posted", e, a.currency())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "entry YAML file, - for stdin (required)")
	cmd.Flags().StringVar(&key, "key", "", "idempotency key (default random)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newEntryAddCommand(opts *options) *cobra.Command {
	var date, desc, debit, credit, amount, key string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Post a two-line entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDate(date, time.Now())
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				minor, err := money.ParseMinor(amount, a.currency())
				if err != nil {
					return fmt.Errorf("invalid --amount: %w", err)
				}
				resolve := a.resolveAccount(ctx)
				dr, err := resolve(debit)
				if err != nil {
					return fmt.Errorf("debit account %s: %w", debit, err)
				}
				cr, err := resolve(credit)
				if err != nil {
					return fmt.Errorf("credit account %s: %w", credit, err)
				}
				if key == "" {
					key = uuid.NewString()
				}
				e, err := a.journal.PostDouble(ctx, journal.PostDoubleParams{
					TenantID: a.tenant, IdempotencyKey: key, Actor: a.actor, Date: d,
					Description: desc, DebitAccount: dr, CreditAccount: cr, Amount: minor,
				})
				if err != nil {
					return err
				}
				printEntry(cmd.OutOrStdout(), "Posted", e, a.currency())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "entry date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&desc, "description", "", "entry description")
	cmd.Flags().StringVar(&debit, "debit", "", "account to debit (required)")
	cmd.Flags().StringVar(&credit, "credit", "", "account to credit (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 12.50 (required)")
	cmd.Flags().StringVar(&key, "key", "", "idempotency key (default random)")
	_ = cmd.MarkFlagRequired("debit")
	_ = cmd.MarkFlagRequired("credit")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newEntryDraftCommand(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Save a draft entry from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ef, err := readEntryFile(cmd, file)
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				d, err := ef.Draft(a.tenant, a.currency(), a.resolveAccount(ctx))
				if err != nil {
					return err
				}
				e, err := a.journal.SaveDraft(ctx, d, a.actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved draft %s\n", e.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "entry YAML file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newEntryDiscardCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <draft-id>",
		Short: "Delete a draft entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := a.journal.DiscardDraft(cmd.Context(), a.tenant, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discarded draft %s\n", args[0])
				return nil
			})
		},
	}
}

func newEntryVoidCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "void <entry-id>",
		Short: "Void a posted entry by posting its reversal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				rev, err := a.journal.VoidEntry(cmd.Context(), journal.VoidRequest{
					TenantID: a.tenant, EntryID: args[0], Actor: a.actor,
				})
				if err != nil {
					return err
				}
				printEntry(cmd.OutOrStdout(), "Voided "+args[0]+" with reversal", rev, a.currency())
				return nil
			})
		},
	}
}

func newEntryListCommand(opts *options) *cobra.Command {
	var status, from, to, account string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := journal.Filter{Status: model.EntryStatus(status), Limit: limit}
			var err error
			if from != "" {
				if f.From, err = parseDate(from, time.Time{}); err != nil {
					return err
				}
			}
			if to != "" {
				if f.To, err = parseDate(to, time.Time{}); err != nil {
					return err
				}
			}
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				f.TenantID = a.tenant
				if account != "" {
					if f.AccountID, err = a.resolveAccount(ctx)(account); err != nil {
						return err
					}
				}
				entries, err := a.journal.ListEntries(ctx, f)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNUMBER\tDATE\tSTATUS\tAMOUNT\tDESCRIPTION")
				for _, e := range entries {
					debit, _ := e.Totals()
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Number, e.Date.Format(model.DateFormat),
						e.Status, money.Format(debit, a.currency()), e.Description)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "draft, posted or void")
	cmd.Flags().StringVar(&from, "from", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date YYYY-MM-DD")
	cmd.Flags().StringVar(&account, "account", "", "only entries touching this account")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries")
	return cmd
}

func newEntryExportCommand(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export posted and void entries as journal CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				entries, err := a.journal.ListEntries(ctx, journal.Filter{TenantID: a.tenant})
				if err != nil {
					return err
				}
				accts, err := accountMap(a, cmd)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(projectPath(a.root, output))
					if err != nil {
						return fmt.Errorf("creating %s: %w", output, err)
					}
					defer f.Close()
					w = f
				}
				return journal.ExportCSV(w, entries, accts, a.currency())
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newTrialBalanceCommand(opts *options) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Show per-account totals as of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(asOf, time.Now())
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				tb, err := a.journal.TrialBalance(cmd.Context(), a.tenant, date)
				if err != nil {
					return err
				}
				cur := a.currency()
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NUMBER\tNAME\tDEBIT\tCREDIT")
				for _, r := range tb.Rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Number, r.Name, money.Format(r.Debit, cur), money.Format(r.Credit, cur))
				}
				fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\n", money.Format(tb.TotalDebit, cur), money.Format(tb.TotalCredit, cur))
				if err := tw.Flush(); err != nil {
					return err
				}
				if !tb.Balanced() {
					return fmt.Errorf("trial balance as of %s does not balance", date.Format(model.DateFormat))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "date YYYY-MM-DD (default today)")
	return cmd
}

func printEntry(w io.Writer, verb string, e model.JournalEntry, currency string) {
	debit, _ := e.Totals()
	fmt.Fprintf(w, "%s entry %s (%s) on %s for %s\n", verb, e.Number, e.ID, e.Date.Format(model.DateFormat), money.Format(debit, currency))
}
