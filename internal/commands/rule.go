package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/rules"
)

func newRuleCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage reconciliation rules",
	}
	cmd.AddCommand(
		newRuleImportCommand(opts),
		newRuleListCommand(opts),
		newRuleToggleCommand(opts, "enable", true),
		newRuleToggleCommand(opts, "disable", false),
	)
	return cmd
}

func newRuleImportCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Create the rules of " + rules.RulesFile + " the tenant does not have yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				f, err := rules.LoadFile(a.root)
				if err != nil {
					return err
				}
				rs, err := f.Rules(a.tenant, a.currency(), a.resolveAccount(ctx))
				if err != nil {
					return err
				}
				n, err := a.rules.Import(ctx, a.tenant, rs, a.actor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d rules, %d already present\n", n, len(rs)-n)
				return nil
			})
		},
	}
}

func newRuleListCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				list, err := a.rules.List(cmd.Context(), a.tenant)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tPRIORITY\tACTIVE\tCONDITIONS\tDELTA")
				for _, r := range rules.Sort(list) {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%d\t%+d\n", r.ID, r.Name, r.Priority, r.IsActive, len(r.Conditions), r.Action.ScoreDelta)
				}
				return tw.Flush()
			})
		},
	}
}

func newRuleToggleCommand(opts *options, verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <rule>",
		Short: verb + " a rule by id or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				list, err := a.rules.List(ctx, a.tenant)
				if err != nil {
					return err
				}
				for _, r := range list {
					if r.ID != args[0] && r.Name != args[0] {
						continue
					}
					if err := a.rules.SetActive(ctx, a.tenant, r.ID, active); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Rule %s active: %t\n", r.Name, active)
					return nil
				}
				return model.NotFound("reconciliation_rule", args[0])
			})
		},
	}
}
