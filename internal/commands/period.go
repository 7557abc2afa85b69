package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/gitops"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/money"
	"github.com/cleared-dev/ledger/internal/periods"
)

func newPeriodCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Manage accounting periods",
	}
	cmd.AddCommand(
		newPeriodCreateCommand(opts),
		newPeriodListCommand(opts),
		newPeriodCheckCommand(opts),
		newPeriodCloseCommand(opts),
	)
	return cmd
}

func newPeriodCreateCommand(opts *options) *cobra.Command {
	var name, start, end string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a period to the calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := model.ParseDay(start)
			if err != nil {
				return fmt.Errorf("invalid --start %q: %w", start, err)
			}
			e, err := model.ParseDay(end)
			if err != nil {
				return fmt.Errorf("invalid --end %q: %w", end, err)
			}
			return withApp(opts, func(a *app) error {
				p, err := a.periods.CreatePeriod(cmd.Context(), periods.CreatePeriodParams{
					TenantID: a.tenant, Name: name, Start: s, End: e, Actor: a.actor,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created period %s %s..%s (%s)\n", p.Name,
					p.StartDate.Format(model.DateFormat), p.EndDate.Format(model.DateFormat), p.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "period name, e.g. 2025-01")
	cmd.Flags().StringVar(&start, "start", "", "first day YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&end, "end", "", "last day YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newPeriodListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List periods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				list, err := a.periods.List(cmd.Context(), a.tenant)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSTART\tEND\tSTATUS")
				for _, p := range list {
					status := "open"
					if p.IsClosed {
						status = "closed by " + p.ClosedBy
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name,
						p.StartDate.Format(model.DateFormat), p.EndDate.Format(model.DateFormat), status)
				}
				return tw.Flush()
			})
		},
	}
}

// findPeriod accepts a period id or name.
func findPeriod(a *app, cmd *cobra.Command, ref string) (model.AccountingPeriod, error) {
	list, err := a.periods.List(cmd.Context(), a.tenant)
	if err != nil {
		return model.AccountingPeriod{}, err
	}
	for _, p := range list {
		if p.ID == ref || p.Name == ref {
			return p, nil
		}
	}
	return model.AccountingPeriod{}, model.NotFound("accounting_period", ref)
}

func newPeriodCheckCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <period>",
		Short: "Report whether a period can be closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				p, err := findPeriod(a, cmd, args[0])
				if err != nil {
					return err
				}
				rep, err := a.periods.CheckClosure(cmd.Context(), a.tenant, p.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Period %s: %d posted, %d void, %d drafts\n", p.Name, rep.PostedCount, rep.VoidCount, len(rep.DraftIDs))
				fmt.Fprintf(out, "Debits %s, credits %s, balanced: %t\n",
					money.Format(rep.TotalDebit, a.currency()), money.Format(rep.TotalCredit, a.currency()), rep.Balanced)
				fmt.Fprintf(out, "Ready to close: %t\n", rep.Ready)
				return nil
			})
		},
	}
}

func newPeriodCloseCommand(opts *options) *cobra.Command {
	var snapshot bool

	cmd := &cobra.Command{
		Use:   "close <period>",
		Short: "Close a period to further postings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				p, err := findPeriod(a, cmd, args[0])
				if err != nil {
					return err
				}
				closed, err := a.periods.ClosePeriod(ctx, a.tenant, p.ID, a.actor)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Closed period %s\n", closed.Name)
				if !snapshot {
					return nil
				}

				path, err := exportPeriod(a, cmd, closed)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Exported %s\n", path)
				if !gitops.IsRepo(a.root) {
					return nil
				}
				hash, err := gitops.Snapshot(ctx, a.root, "period "+closed.Name+" closed",
					gitops.Author{Name: a.cfg.Git.AuthorName, Email: a.cfg.Git.AuthorEmail})
				if err != nil {
					return err
				}
				if hash != "" {
					fmt.Fprintf(out, "Committed snapshot %s\n", hash)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "export the period journal and commit the project if it is a git repo")
	return cmd
}

// exportPeriod writes the period's journal to exports/journal-<name>.csv.
func exportPeriod(a *app, cmd *cobra.Command, p model.AccountingPeriod) (string, error) {
	ctx := cmd.Context()
	entries, err := a.journal.ListEntries(ctx, journal.Filter{TenantID: a.tenant, From: p.StartDate, To: p.EndDate})
	if err != nil {
		return "", err
	}
	accts, err := accountMap(a, cmd)
	if err != nil {
		return "", err
	}
	name := p.Name
	if name == "" {
		name = p.StartDate.Format("2006-01")
	}
	path := filepath.Join(a.root, "exports", "journal-"+name+".csv")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating exports dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export: %w", err)
	}
	defer f.Close()
	if err := journal.ExportCSV(f, entries, accts, a.currency()); err != nil {
		return "", err
	}
	return path, nil
}

func accountMap(a *app, cmd *cobra.Command) (map[string]model.Account, error) {
	list, err := a.accounts.List(cmd.Context(), a.tenant)
	if err != nil {
		return nil, err
	}
	m := make(map[string]model.Account, len(list))
	for _, acct := range list {
		m[acct.ID] = acct
	}
	return m, nil
}
