package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/api"
	"github.com/cleared-dev/ledger/internal/scheduler"
)

func newServeCommand(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				if every := a.cfg.Server.ReconcileEveryMinutes; every > 0 {
					go scheduler.New(a.matcher, a.recorder, every, a.log).Run(ctx)
				}

				srv := &http.Server{
					Addr:              addr,
					Handler:           api.NewServer(a.services(), a.log).Router(),
					ReadHeaderTimeout: 10 * time.Second,
				}
				errCh := make(chan error, 1)
				go func() {
					a.log.WithField("addr", addr).Info("listening")
					errCh <- srv.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				case <-ctx.Done():
				}

				a.log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr from the config)")
	return cmd
}
