package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/gitops"
	"github.com/cleared-dev/ledger/internal/rules"
)

type initOptions struct {
	entityType  string
	bankAccount string
	currency    string
	git         bool
}

func newInitCommand(opts *options) *cobra.Command {
	var iopts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledger project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.dir = args[0]
			}
			absDir, err := filepath.Abs(opts.dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			opts.dir = absDir
			return runInit(cmd, opts, iopts)
		},
	}

	cmd.Flags().StringVar(&iopts.entityType, "entity-type", "llc_single_member", "entity type of the default chart")
	cmd.Flags().StringVar(&iopts.bankAccount, "bank-account", "checking", "bank account linked to the checking account")
	cmd.Flags().StringVar(&iopts.currency, "currency", "EUR", "base currency of the tenant")
	cmd.Flags().BoolVar(&iopts.git, "git", false, "track the project directory in git")

	return cmd
}

func runInit(cmd *cobra.Command, opts *options, iopts initOptions) error {
	dir := opts.dir
	if _, err := os.Stat(filepath.Join(dir, ConfigFile)); err == nil {
		return fmt.Errorf("%s already exists in %s", ConfigFile, dir)
	}

	// Create directory structure.
	for _, d := range []string{"accounts", "rules", "entries", "exports", "logs", filepath.Join("import", "processed")} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfg := config.Default()
	cfg.Tenants = map[string]config.TenantConfig{opts.tenant: {BaseCurrency: iopts.currency}}
	if err := config.Save(filepath.Join(dir, ConfigFile), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	chart := accounts.DefaultChart(iopts.entityType, iopts.bankAccount)
	if err := accounts.SaveChart(dir, chart); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(dir, rules.RulesFile), []byte("rules: []\n"), 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}

	gitignore := "ledger.db*\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	var created int
	err := withApp(opts, func(a *app) error {
		var err error
		created, err = a.accounts.ImportChart(cmd.Context(), a.tenant, chart, a.actor)
		return err
	})
	if err != nil {
		return fmt.Errorf("loading chart of accounts: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized ledger project at %s (tenant %s, %d accounts)\n", dir, opts.tenant, created)

	if iopts.git {
		ctx := cmd.Context()
		if err := gitops.Init(ctx, dir); err != nil {
			return err
		}
		author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
		hash, err := gitops.Snapshot(ctx, dir, "init: ledger project for "+opts.tenant, author)
		if err != nil {
			return fmt.Errorf("initial commit: %w", err)
		}
		fmt.Fprintf(out, "Committed project snapshot %s\n", hash)
	}
	return nil
}
