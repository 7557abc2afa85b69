package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/api"
	"github.com/cleared-dev/ledger/internal/audit"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/importer"
	"github.com/cleared-dev/ledger/internal/journal"
	"github.com/cleared-dev/ledger/internal/logging"
	"github.com/cleared-dev/ledger/internal/periods"
	"github.com/cleared-dev/ledger/internal/reconcile"
	"github.com/cleared-dev/ledger/internal/rules"
	"github.com/cleared-dev/ledger/internal/store"
)

// ConfigFile is the project configuration file name.
const ConfigFile = "ledger.yaml"

// options are the persistent flags shared by every command.
type options struct {
	dir    string
	tenant string
	actor  string
}

// app is a fully wired ledger opened from a project directory.
type app struct {
	root   string
	tenant string
	actor  string

	cfg      *config.Config
	log      *logrus.Logger
	store    *store.Store
	recorder *audit.Recorder

	accounts *accounts.Service
	periods  *periods.Manager
	journal  *journal.Service
	rules    *rules.Service
	matcher  *reconcile.Matcher
	importer *importer.Service
}

// openApp loads the project configuration, applies the .env overlay and opens
// the database.
func openApp(opts *options) (*app, error) {
	root, err := filepath.Abs(opts.dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(filepath.Join(root, ConfigFile))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(filepath.Join(root, ".env")); err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(projectPath(root, cfg.Database.Path))
	if err != nil {
		return nil, err
	}

	sinks := audit.MultiSink{audit.NewCSVSink(projectPath(root, cfg.Audit.File))}
	if cfg.Audit.Log {
		sinks = append(sinks, audit.NewLogSink(log))
	}
	rec := audit.NewRecorder(sinks, st, log)

	a := &app{
		root:     root,
		tenant:   opts.tenant,
		actor:    opts.actor,
		cfg:      cfg,
		log:      log,
		store:    st,
		recorder: rec,
		accounts: accounts.NewService(st, rec, log),
		periods:  periods.NewManager(st, rec, log),
		rules:    rules.NewService(st, rec, log),
		importer: importer.NewService(st, rec, log),
	}
	a.journal = journal.NewService(st, a.periods, rec, log)
	a.matcher = reconcile.NewMatcher(st, a.rules, cfg, rec, log)
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) currency() string {
	return a.cfg.BaseCurrency(a.tenant)
}

// resolveAccount maps an account number or id to an id.
func (a *app) resolveAccount(ctx context.Context) func(string) (string, error) {
	return func(ref string) (string, error) {
		acct, err := a.accounts.Resolve(ctx, a.tenant, ref)
		if err != nil {
			return "", err
		}
		return acct.ID, nil
	}
}

func (a *app) services() api.Services {
	return api.Services{
		Config:   a.cfg,
		Accounts: a.accounts,
		Periods:  a.periods,
		Journal:  a.journal,
		Rules:    a.rules,
		Matcher:  a.matcher,
		Importer: a.importer,
	}
}

// projectPath resolves p against the project root unless it is absolute.
func projectPath(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func defaultActor() string {
	if u := os.Getenv("LEDGER_ACTOR"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func defaultTenant() string {
	if t := os.Getenv("LEDGER_TENANT"); t != "" {
		return t
	}
	return "default"
}
