package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/importer"
)

func newImportCommand(opts *options) *cobra.Command {
	var format, bankAccount, currency string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a bank statement CSV",
		Long: `Import bank transactions from a statement file. Without a file argument every
CSV in the project's import/ directory is imported and moved to import/processed/.
Rows whose reference was already imported are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				req := importer.ImportRequest{
					TenantID:      a.tenant,
					BankAccountID: bankAccount,
					Currency:      currency,
					Actor:         a.actor,
				}
				if req.Currency == "" {
					req.Currency = a.currency()
				}

				var res importer.ImportResult
				var err error
				if len(args) == 1 {
					res, err = a.importer.ImportFile(ctx, args[0], format, req)
				} else {
					res, err = a.importer.ImportPending(ctx, a.root, format, req)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d transactions, skipped %d already imported\n",
					len(res.Inserted), len(res.Skipped))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "chase", "statement format")
	cmd.Flags().StringVar(&bankAccount, "bank-account", "checking", "bank account the statement belongs to")
	cmd.Flags().StringVar(&currency, "currency", "", "statement currency (default the tenant base currency)")

	return cmd
}
