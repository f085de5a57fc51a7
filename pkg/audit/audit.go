package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Config struct {
	DSN     string        `envconfig:"DSN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// ActionRecord is one executed action as stored in Postgres.
type ActionRecord struct {
	bun.BaseModel `bun:"table:action_audit,alias:aa"`

	ID        int64          `bun:"id,pk,autoincrement"`
	Domain    string         `bun:"domain,notnull"`
	Action    string         `bun:"action,notnull"`
	CallID    string         `bun:"call_id"`
	Args      map[string]any `bun:"args,type:jsonb"`
	Failed    bool           `bun:"failed,notnull"`
	Error     string         `bun:"error"`
	CreatedAt time.Time      `bun:"created_at,notnull,default:current_timestamp"`
}

// Store writes action records with bun. It implements contract.ActionRecorder.
type Store struct {
	db      *bun.DB
	timeout time.Duration
	now     func() time.Time
}

var _ contractx.ActionRecorder = (*Store)(nil)

// Open connects to Postgres and creates the audit table when missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: audit dsn is required", contractx.ErrValidation)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(strings.TrimSpace(cfg.DSN)),
		pgdriver.WithTimeout(timeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	s := &Store{db: db, timeout: timeout, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.NewCreateTable().Model((*ActionRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*ActionRecord)(nil)).
		Index("action_audit_domain_created_idx").
		IfNotExists().
		Column("domain", "created_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("create audit index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordAction(ctx context.Context, domain contractx.Domain, req contractx.ActionRequest, res contractx.ActionResult) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec := newRecord(domain, req, res, s.now().UTC())
	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Recent returns the latest records of domain, newest first. An empty domain
// returns records of every domain.
func (s *Store) Recent(ctx context.Context, domain contractx.Domain, limit int) ([]ActionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []ActionRecord
	q := s.db.NewSelect().Model(&out).Order("created_at DESC", "id DESC").Limit(limit)
	if domain != "" {
		q = q.Where("domain = ?", domain.String())
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select audit records: %w", err)
	}
	return out, nil
}

func newRecord(domain contractx.Domain, req contractx.ActionRequest, res contractx.ActionResult, at time.Time) *ActionRecord {
	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	return &ActionRecord{
		Domain:    domain.String(),
		Action:    req.Name,
		CallID:    req.CallID,
		Args:      args,
		Failed:    res.Failed(),
		Error:     res.Error,
		CreatedAt: at,
	}
}
