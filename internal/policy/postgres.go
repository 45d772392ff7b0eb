package policy

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

func marshalRules(rules []Rule) (string, error) {
	b, err := json.Marshal(rules)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PostgresMirror shadow-writes policy version history to Postgres. The
// in-memory Store remains authoritative for Evaluate; this only supplies
// durable history for audit/forensics across restarts.
type PostgresMirror struct {
	db *sql.DB
}

// NewPostgresMirror opens (but does not require) a Postgres connection
// for policy history. Callers that don't set POLICY_POSTGRES_DSN simply never
// construct one, and Store.mirror stays nil.
func NewPostgresMirror(dsn string) (*PostgresMirror, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("policy: open postgres mirror: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("policy: ping postgres mirror: %w", err)
	}
	m := &PostgresMirror{db: db}
	if err := m.ensureSchema(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PostgresMirror) ensureSchema() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS policy_version_history (
			policy_id   TEXT NOT NULL,
			version     INTEGER NOT NULL,
			name        TEXT NOT NULL,
			hash        TEXT NOT NULL,
			rules_json  TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (policy_id, version)
		)
	`)
	return err
}

func (m *PostgresMirror) RecordVersion(p *Policy) error {
	rulesJSON, err := marshalRules(p.Rules)
	if err != nil {
		return err
	}
	_, err = m.db.Exec(`
		INSERT INTO policy_version_history (policy_id, version, name, hash, rules_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (policy_id, version) DO NOTHING
	`, p.ID, p.Version, p.Name, p.Hash, rulesJSON, p.CreatedAt, p.UpdatedAt)
	return err
}

func (m *PostgresMirror) Close() error { return m.db.Close() }
