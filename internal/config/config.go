package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level ledger.yaml configuration.
type Config struct {
	Database       DatabaseConfig          `yaml:"database"`
	Server         ServerConfig            `yaml:"server"`
	Log            LogConfig               `yaml:"log"`
	Audit          AuditConfig             `yaml:"audit"`
	Reconciliation PolicyConfig            `yaml:"reconciliation"`
	Git            GitConfig               `yaml:"git"`
	Tenants        map[string]TenantConfig `yaml:"tenants,omitempty"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// ReconcileEveryMinutes schedules a matcher batch over all tenants; 0 disables it.
	ReconcileEveryMinutes int `yaml:"reconcile_every_minutes"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// AuditConfig controls where audit records are delivered.
type AuditConfig struct {
	File string `yaml:"file"`
	Log  bool   `yaml:"log"`
}

// GitConfig sets the author of project snapshot commits.
type GitConfig struct {
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Weights is the scoring policy table. Values are percentages summing to 100.
type Weights struct {
	Amount      int `yaml:"amount"`
	Date        int `yaml:"date"`
	Description int `yaml:"description"`
}

// PolicyConfig is the reconciliation policy, either the global default or a
// fully resolved per-tenant policy.
type PolicyConfig struct {
	AutoConfirmThreshold int     `yaml:"auto_confirm_threshold"`
	CandidateWindowDays  int     `yaml:"candidate_window_days"`
	AmountTolerance      int64   `yaml:"amount_tolerance"`
	MinScore             int     `yaml:"min_score"`
	Weights              Weights `yaml:"weights"`
}

// PolicyOverrides holds per-tenant deviations from the default policy.
// Nil fields inherit the default.
type PolicyOverrides struct {
	AutoConfirmThreshold *int     `yaml:"auto_confirm_threshold,omitempty"`
	CandidateWindowDays  *int     `yaml:"candidate_window_days,omitempty"`
	AmountTolerance      *int64   `yaml:"amount_tolerance,omitempty"`
	MinScore             *int     `yaml:"min_score,omitempty"`
	Weights              *Weights `yaml:"weights,omitempty"`
}

// TenantConfig holds per-tenant settings.
type TenantConfig struct {
	BaseCurrency   string          `yaml:"base_currency"`
	Reconciliation PolicyOverrides `yaml:"reconciliation,omitempty"`
}

// Load reads a ledger.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Reconciliation.Validate(); err != nil {
		return nil, fmt.Errorf("reconciliation policy: %w", err)
	}
	if err := cfg.validateTenants(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateTenants checks every tenant's resolved policy, in tenant order.
func (c *Config) validateTenants() error {
	ids := make([]string, 0, len(c.Tenants))
	for id := range c.Tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := c.Policy(id).Validate(); err != nil {
			return fmt.Errorf("reconciliation policy of tenant %s: %w", id, err)
		}
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "ledger.db"},
		Server:   ServerConfig{Addr: ":8080"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Audit:    AuditConfig{File: "logs/audit-log.csv"},
		Git:      GitConfig{AuthorName: "Ledger", AuthorEmail: "ledger@localhost"},
		Reconciliation: PolicyConfig{
			AutoConfirmThreshold: 90,
			CandidateWindowDays:  5,
			AmountTolerance:      0,
			MinScore:             40,
			Weights:              Weights{Amount: 50, Date: 30, Description: 20},
		},
	}
}

// Validate checks that a policy is internally consistent.
func (p PolicyConfig) Validate() error {
	if p.Weights.Amount < 0 || p.Weights.Date < 0 || p.Weights.Description < 0 {
		return fmt.Errorf("weights must not be negative")
	}
	if sum := p.Weights.Amount + p.Weights.Date + p.Weights.Description; sum != 100 {
		return fmt.Errorf("weights must sum to 100, got %d", sum)
	}
	if p.AutoConfirmThreshold < 0 || p.AutoConfirmThreshold > 100 {
		return fmt.Errorf("auto_confirm_threshold %d out of range 0..100", p.AutoConfirmThreshold)
	}
	if p.MinScore < 0 || p.MinScore > 100 {
		return fmt.Errorf("min_score %d out of range 0..100", p.MinScore)
	}
	if p.CandidateWindowDays < 0 {
		return fmt.Errorf("candidate_window_days must not be negative")
	}
	if p.AmountTolerance < 0 {
		return fmt.Errorf("amount_tolerance must not be negative")
	}
	return nil
}

// Policy resolves the reconciliation policy of a tenant.
func (c *Config) Policy(tenantID string) PolicyConfig {
	p := c.Reconciliation
	t, ok := c.Tenants[tenantID]
	if !ok {
		return p
	}
	o := t.Reconciliation
	if o.AutoConfirmThreshold != nil {
		p.AutoConfirmThreshold = *o.AutoConfirmThreshold
	}
	if o.CandidateWindowDays != nil {
		p.CandidateWindowDays = *o.CandidateWindowDays
	}
	if o.AmountTolerance != nil {
		p.AmountTolerance = *o.AmountTolerance
	}
	if o.MinScore != nil {
		p.MinScore = *o.MinScore
	}
	if o.Weights != nil {
		p.Weights = *o.Weights
	}
	return p
}

// BaseCurrency returns the tenant's ledger currency, "EUR" if unset.
func (c *Config) BaseCurrency(tenantID string) string {
	if t, ok := c.Tenants[tenantID]; ok && t.BaseCurrency != "" {
		return t.BaseCurrency
	}
	return "EUR"
}

// ApplyEnv overlays LEDGER_* environment variables, loading envFile first
// when it exists. A missing envFile is not an error.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("loading %s: %w", envFile, err)
			}
		}
	}

	if v := os.Getenv("LEDGER_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("LEDGER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LEDGER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LEDGER_AUDIT_FILE"); v != "" {
		c.Audit.File = v
	}
	if v := os.Getenv("LEDGER_RECONCILE_EVERY_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_RECONCILE_EVERY_MINUTES: %w", err)
		}
		c.Server.ReconcileEveryMinutes = n
	}
	return nil
}
