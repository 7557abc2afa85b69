package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/reconcile"
	"github.com/cleared-dev/ledger/internal/store"
)

func newReconcileCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match bank transactions to ledger entries",
	}
	cmd.AddCommand(
		newReconcileRunCommand(opts),
		newReconcileMatchesCommand(opts),
		newReconcileReviewCommand(opts),
		newReconcileManualCommand(opts),
		newReconcileSignOffCommand(opts),
		newReconcileStatsCommand(opts),
	)
	return cmd
}

func newReconcileRunCommand(opts *options) *cobra.Command {
	var bankAccount string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score unmatched transactions against ledger candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				res, err := a.matcher.Run(cmd.Context(), a.tenant, bankAccount)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Processed %d transactions\n", len(res.Results))
				outcomes := make([]string, 0, len(res.Counts))
				for o := range res.Counts {
					outcomes = append(outcomes, string(o))
				}
				sort.Strings(outcomes)
				for _, o := range outcomes {
					fmt.Fprintf(out, "  %-14s %d\n", o, res.Counts[reconcile.Outcome(o)])
				}
				for _, r := range res.Results {
					if r.Ambiguous != nil {
						fmt.Fprintf(out, "  %s needs review: %v\n", r.BankTransactionID, r.Ambiguous)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bankAccount, "bank-account", "", "limit the run to one bank account")
	return cmd
}

func newReconcileMatchesCommand(opts *options) *cobra.Command {
	var status, txID string
	var history bool

	cmd := &cobra.Command{
		Use:   "matches",
		Short: "List match rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				list, err := a.matcher.Matches(cmd.Context(), store.MatchFilter{
					TenantID:          a.tenant,
					BankTransactionID: txID,
					Status:            model.MatchStatus(status),
					IncludeSuperseded: history,
				})
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tBANK TX\tENTRY\tLINE\tSCORE\tTYPE\tSTATUS")
				for _, m := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n", m.ID, m.BankTransactionID, m.JournalEntryID,
						m.JournalLineNo, m.ConfidenceScore, m.MatchType, m.Status)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "pending", "pending, confirmed or rejected; empty for all")
	cmd.Flags().StringVar(&txID, "bank-transaction", "", "only matches of this bank transaction")
	cmd.Flags().BoolVar(&history, "history", false, "include superseded rows")
	return cmd
}

func newReconcileReviewCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "review <match-id> confirm|reject",
		Short:     "Confirm or reject a pending match",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(reconcile.Confirm), string(reconcile.Reject)},
		RunE: func(cmd *cobra.Command, args []string) error {
			decision := reconcile.Decision(args[1])
			if decision != reconcile.Confirm && decision != reconcile.Reject {
				return fmt.Errorf("decision must be confirm or reject, got %q", args[1])
			}
			return withApp(opts, func(a *app) error {
				m, err := a.matcher.ReviewMatch(cmd.Context(), a.tenant, args[0], decision, a.actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Match %s %s\n", m.SupersedesID, m.Status)
				return nil
			})
		},
	}
}

func newReconcileManualCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "manual <bank-transaction-id> <entry-id>",
		Short: "Link a bank transaction to an entry by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				m, err := a.matcher.ManualMatch(cmd.Context(), a.tenant, args[0], args[1], a.actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Matched %s to entry %s line %d (%s)\n",
					m.BankTransactionID, m.JournalEntryID, m.JournalLineNo, m.ID)
				return nil
			})
		},
	}
}

func newReconcileSignOffCommand(opts *options) *cobra.Command {
	var bankAccount, through string

	cmd := &cobra.Command{
		Use:   "sign-off",
		Short: "Mark matched transactions up to a date as reconciled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(through, time.Now())
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				ids, err := a.matcher.ReconcileMatched(cmd.Context(), a.tenant, bankAccount, date, a.actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %d transactions through %s\n", len(ids), date.Format(model.DateFormat))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bankAccount, "bank-account", "checking", "bank account to sign off")
	cmd.Flags().StringVar(&through, "through", "", "last date YYYY-MM-DD (default today)")
	return cmd
}

func newReconcileStatsCommand(opts *options) *cobra.Command {
	var bankAccount string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show reconciliation progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				st, err := a.matcher.Stats(cmd.Context(), a.tenant, bankAccount)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Unmatched:     %d\n", st.Unmatched)
				fmt.Fprintf(out, "Matched:       %d\n", st.Matched)
				fmt.Fprintf(out, "Reconciled:    %d\n", st.Reconciled)
				fmt.Fprintf(out, "Pending:       %d\n", st.PendingMatches)
				fmt.Fprintf(out, "Confirmed:     %d (avg score %d)\n", st.ConfirmedMatches, st.AverageConfirmScore)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bankAccount, "bank-account", "", "limit to one bank account")
	return cmd
}
