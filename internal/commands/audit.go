package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuditCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Redeliver audit records parked in the outbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				n, err := a.recorder.Flush(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d audit records\n", n)
				return err
			})
		},
	})
	return cmd
}
