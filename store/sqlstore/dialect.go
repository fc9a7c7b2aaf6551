package sqlstore

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect names a database/sql driver this store knows how to talk to.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// ParseDialect accepts the driver names used in configuration.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// snapshotOptions are the options of a View transaction.
//
// SQLite takes its WAL snapshot at the first read of a deferred transaction
// and writers are excluded by the store's lock, so nil is enough.
func (d Dialect) snapshotOptions() *sql.TxOptions {
	if d == Postgres {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

// queryOptions are the options of an ad hoc query transaction.
func (d Dialect) queryOptions() *sql.TxOptions {
	if d == Postgres {
		return &sql.TxOptions{ReadOnly: true}
	}
	return nil
}

// schema returns the DDL with dialect column types substituted.
func (d Dialect) schema() string {
	money := "TEXT"
	if d == Postgres {
		money = "NUMERIC"
	}
	return strings.ReplaceAll(schemaTemplate, "{{num}}", money)
}

// Amounts are TEXT in SQLite so decimals round-trip exactly.
const schemaTemplate = `
	CREATE TABLE IF NOT EXISTS contracts (
		project_id TEXT PRIMARY KEY,
		project_name TEXT NOT NULL,
		original_contract_value {{num}} NOT NULL,
		gc_name TEXT NOT NULL DEFAULT '',
		substantial_completion_date DATE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sov (
		project_id TEXT NOT NULL,
		sov_line_id TEXT NOT NULL,
		line_number INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		scheduled_value {{num}} NOT NULL,
		PRIMARY KEY (project_id, sov_line_id)
	);

	CREATE TABLE IF NOT EXISTS sov_budget (
		project_id TEXT NOT NULL,
		sov_line_id TEXT NOT NULL,
		estimated_labor_hours {{num}} NOT NULL,
		estimated_labor_cost {{num}} NOT NULL,
		estimated_material_cost {{num}} NOT NULL,
		estimated_equipment_cost {{num}} NOT NULL,
		estimated_sub_cost {{num}} NOT NULL,
		PRIMARY KEY (project_id, sov_line_id)
	);

	CREATE TABLE IF NOT EXISTS labor_logs (
		log_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		sov_line_id TEXT NOT NULL,
		date DATE NOT NULL,
		hours_st {{num}} NOT NULL,
		hours_ot {{num}} NOT NULL,
		hourly_rate {{num}} NOT NULL,
		burden_multiplier {{num}} NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_labor_logs_project ON labor_logs(project_id, sov_line_id);

	CREATE TABLE IF NOT EXISTS material_deliveries (
		delivery_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		sov_line_id TEXT NOT NULL,
		date DATE NOT NULL,
		total_cost {{num}} NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_material_deliveries_project ON material_deliveries(project_id, sov_line_id);

	CREATE TABLE IF NOT EXISTS change_orders (
		project_id TEXT NOT NULL,
		co_number TEXT NOT NULL,
		date_submitted DATE NOT NULL,
		reason_category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		amount {{num}} NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (project_id, co_number)
	);

	CREATE TABLE IF NOT EXISTS billing_history (
		project_id TEXT NOT NULL,
		application_number INTEGER NOT NULL,
		period_end DATE NOT NULL,
		cumulative_billed {{num}} NOT NULL,
		retention_held {{num}} NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (project_id, application_number)
	);

	CREATE TABLE IF NOT EXISTS billing_line_items (
		project_id TEXT NOT NULL,
		application_number INTEGER NOT NULL,
		sov_line_id TEXT NOT NULL,
		pct_complete {{num}} NOT NULL,
		total_billed {{num}} NOT NULL,
		PRIMARY KEY (project_id, application_number, sov_line_id)
	);

	CREATE TABLE IF NOT EXISTS scope_creep_candidates (
		scope_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		sov_line_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		responsibility TEXT NOT NULL,
		co_status TEXT NOT NULL,
		estimated_labor_hours {{num}} NOT NULL,
		estimated_material_cost {{num}} NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scope_creep_project ON scope_creep_candidates(project_id);
`

// tables in delete order for Replace.
var tables = []string{
	"scope_creep_candidates",
	"billing_line_items",
	"billing_history",
	"change_orders",
	"material_deliveries",
	"labor_logs",
	"sov_budget",
	"sov",
	"contracts",
}
