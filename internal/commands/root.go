package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "ledger",
		Short:   "Double-entry ledger with bank reconciliation",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dir, "dir", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&opts.tenant, "tenant", defaultTenant(), "tenant id")
	rootCmd.PersistentFlags().StringVar(&opts.actor, "actor", defaultActor(), "actor recorded in the audit log")

	rootCmd.AddCommand(
		newInitCommand(opts),
		newAccountCommand(opts),
		newPeriodCommand(opts),
		newEntryCommand(opts),
		newImportCommand(opts),
		newRuleCommand(opts),
		newReconcileCommand(opts),
		newServeCommand(opts),
		newAuditCommand(opts),
	)

	return rootCmd
}

// withApp opens the project for the duration of fn.
func withApp(opts *options, fn func(a *app) error) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
