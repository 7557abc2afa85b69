package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/money"
)

func newAccountCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(
		newAccountListCommand(opts),
		newAccountAddCommand(opts),
		newAccountBalanceCommand(opts),
		newAccountSyncCommand(opts),
		newAccountRebuildCommand(opts),
	)
	return cmd
}

func newAccountListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with their cached balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				list, err := a.accounts.List(cmd.Context(), a.tenant)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NUMBER\tNAME\tTYPE\tBANK\tACTIVE\tBALANCE")
				for _, acct := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n", acct.Number, acct.Name, acct.Type, acct.BankAccountID,
						acct.IsActive, money.Format(acct.NaturalBalance(acct.CurrentBalance), a.currency()))
				}
				return tw.Flush()
			})
		},
	}
}

func newAccountAddCommand(opts *options) *cobra.Command {
	var p accounts.CreateAccountParams
	var typ, parent string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				p.TenantID, p.Actor, p.Type = a.tenant, a.actor, model.AccountType(typ)
				if parent != "" {
					pa, err := a.accounts.Resolve(ctx, a.tenant, parent)
					if err != nil {
						return fmt.Errorf("parent %s: %w", parent, err)
					}
					p.ParentID = pa.ID
				}
				acct, err := a.accounts.CreateAccount(ctx, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created account %s %s (%s)\n", acct.Number, acct.Name, acct.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&p.Number, "number", "", "account number (required)")
	cmd.Flags().StringVar(&p.Name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&typ, "type", "", "asset, liability, equity, revenue or expense (required)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent account number")
	cmd.Flags().StringVar(&p.BankAccountID, "bank-account", "", "bank account this account clears")
	_ = cmd.MarkFlagRequired("number")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newAccountBalanceCommand(opts *options) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "balance <account>",
		Short: "Show an account balance computed from postings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(asOf, time.Now())
			if err != nil {
				return err
			}
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				acct, err := a.accounts.Resolve(ctx, a.tenant, args[0])
				if err != nil {
					return err
				}
				bal, err := a.accounts.GetBalance(ctx, a.tenant, acct.ID, date)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s as of %s: %s %s\n",
					acct.Number, acct.Name, date.Format(model.DateFormat), money.Format(bal, a.currency()), a.currency())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "date YYYY-MM-DD (default today)")
	return cmd
}

func newAccountSyncCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Create accounts from the project chart file that the tenant lacks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				rows, err := accounts.LoadChart(a.root)
				if err != nil {
					return err
				}
				n, err := a.accounts.ImportChart(cmd.Context(), a.tenant, rows, a.actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d accounts\n", n)
				return nil
			})
		},
	}
}

func newAccountRebuildCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-balances",
		Short: "Recompute cached balances from postings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				n, err := a.accounts.RebuildBalances(cmd.Context(), a.tenant, a.actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt balances of %d accounts\n", n)
				return nil
			})
		},
	}
}

// parseDate parses YYYY-MM-DD; "" yields def as a civil day.
func parseDate(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return model.Day(def), nil
	}
	d, err := model.ParseDay(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}
