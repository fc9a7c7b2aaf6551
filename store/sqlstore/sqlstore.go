/*
Package sqlstore provides a SQL-backed margin.Store for SQLite and PostgreSQL.

PURPOSE:
  Holds the nine project record collections in relational tables and serves
  them to the margin engine through consistent snapshot reads. Also runs raw
  read-only queries for the ad hoc query capability.

DIALECTS:
  SQLite (github.com/mattn/go-sqlite3): default, used by tests and demos.
  PostgreSQL (github.com/lib/pq): production.
  Differences are confined to dialect.go: placeholders, amount column type,
  transaction options.

KEY TABLES:
  contracts, sov, sov_budget, labor_logs, material_deliveries,
  change_orders, billing_history, billing_line_items, scope_creep_candidates

SNAPSHOTS:
  View runs its callback inside one read transaction.
  - SQLite: a deferred transaction under the store's read lock. Writes take
    the write lock, so no write can land between reads of one View.
  - PostgreSQL: REPEATABLE READ, READ ONLY. Every statement sees the
    snapshot taken at the first read.

AD HOC QUERIES:
  Query executes inside a transaction that is always rolled back. SQLite
  connections additionally run with PRAGMA query_only for the duration. The
  caller validates the statement first (margin.ValidateReadOnly).

USAGE:
  store, err := sqlstore.Open(sqlstore.SQLite, "./data/margin.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := margin.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on Open(). For production, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - margin/store.go: interface definitions
  - margin/store/memory.go: in-memory implementation for testing
*/
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/margin-engine/margin"
)

// Store implements margin.Store and margin.Writer.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.RWMutex
}

// New creates a SQLite store at dbPath. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(SQLite, dbPath)
}

// Open connects with the given dialect and migrates the schema.
func Open(dialect Dialect, dsn string) (*Store, error) {
	switch dialect {
	case SQLite:
		dsn = sqliteDSN(dsn)
	case Postgres:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite && strings.HasPrefix(dsn, ":memory:") {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, dialect: dialect}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the driver the store was opened with.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema. Both drivers accept the
// multi-statement string in a single Exec.
func (s *Store) migrate() error {
	_, err := s.db.Exec(s.dialect.schema())
	return err
}

// =============================================================================
// SNAPSHOT READS (margin.Store)
// =============================================================================

// View runs fn against one read transaction.
func (s *Store) View(ctx context.Context, fn func(margin.Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, s.dialect.snapshotOptions())
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&reader{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	return tx.Commit()
}

// Query runs a raw read and returns every row. It never commits.
func (s *Store) Query(ctx context.Context, query string) (margin.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return margin.QueryResult{}, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if s.dialect == SQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			return margin.QueryResult{}, fmt.Errorf("failed to enable query_only: %w", err)
		}
		defer conn.ExecContext(context.Background(), "PRAGMA query_only = OFF")
	}

	tx, err := conn.BeginTx(ctx, s.dialect.queryOptions())
	if err != nil {
		return margin.QueryResult{}, fmt.Errorf("failed to begin query transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return margin.QueryResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return margin.QueryResult{}, fmt.Errorf("failed to read columns: %w", err)
	}

	res := margin.QueryResult{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return margin.QueryResult{}, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return margin.QueryResult{}, fmt.Errorf("failed to read rows: %w", err)
	}
	res.RowCount = len(res.Rows)
	return res, nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	}
	return v
}

// =============================================================================
// WRITES (margin.Writer)
// =============================================================================

// Replace deletes every record and inserts recs in one transaction.
func (s *Store) Replace(ctx context.Context, recs margin.Records) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := s.insertAll(ctx, tx, recs); err != nil {
		return err
	}
	return tx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	return s.Replace(ctx, margin.Records{})
}

// insert prepares one statement and executes it once per row.
func insert[T any](ctx context.Context, tx *sql.Tx, d Dialect, table string, cols []string, rows []T, args func(T) []any) error {
	if len(rows) == 0 {
		return nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks)

	stmt, err := tx.PrepareContext(ctx, d.rebind(q))
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, args(r)...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) insertAll(ctx context.Context, tx *sql.Tx, recs margin.Records) error {
	d := s.dialect
	if err := insert(ctx, tx, d, "contracts",
		[]string{"project_id", "project_name", "original_contract_value", "gc_name", "substantial_completion_date"},
		recs.Contracts, func(c margin.Contract) []any {
			return []any{string(c.ProjectID), c.ProjectName, c.ContractValue, c.GCName, c.CompletionDate}
		}); err != nil {
		return err
	}
	if err := insert(ctx, tx, d, "sov",
		[]string{"project_id", "sov_line_id", "line_number", "description", "scheduled_value"},
		recs.ScheduleLines, func(l margin.ScheduleLine) []any {
			return []any{string(l.ProjectID), string(l.LineID), l.LineNumber, l.Description, l.ScheduledValue}
		}); err != nil {
		return err
	}
	if err := insert(ctx, tx, d, "sov_budget",
		[]string{"project_id", "sov_line_id", "estimated_labor_hours", "estimated_labor_cost",
			"estimated_material_cost", "estimated_equipment_cost", "estimated_sub_cost"},
		recs.LineBudgets, func(b margin.LineBudget) []any {
			return []any{string(b.ProjectID), string(b.LineID), b.LaborHours, b.LaborCost,
				b.MaterialCost, b.EquipmentCost, b.SubCost}
		}); err != nil {
		return err
	}
	if err := insert(ctx, tx, d, "labor_logs",
		[]string{"log_id", "project_id", "sov_line_id", "date", "hours_st", "hours_ot", "hourly_rate", "burden_multiplier"},
		recs.LaborEntries, func(e margin.LaborEntry) []any {
			return []any{e.LogID, string(e.ProjectID), string(e.LineID), e.Date,
				e.StraightHours, e.OvertimeHours, e.HourlyRate, e.BurdenMultiplier}
		}); err != nil {
		return err
	}
	if err := insert(ctx, tx, d, "material_deliveries",
		[]string{"delivery_id", "project_id", "sov_line_id", "date", "total_cost"},
		recs.MaterialDeliveries, func(m margin.MaterialDelivery) []any {
			return []any{m.DeliveryID, string(m.ProjectID), string(m.LineID), m.Date, m.TotalCost}
		}); err != nil {
		return err
	}
	if err := insert(ctx, tx, d, "change_orders",
		[]string{"project_id", "co_number", "date_submitted", "reason_category", "description", "amount", "status"},
		recs.ChangeOrders, func(co margin.ChangeOrder) []any {
			return []any{string(co.ProjectID), co.Number, co.DateSubmitted, string(co.Reason),
				co.Description, co.Amount, string(co.Status)}
		}); err != nil {
		return err
	}
	if err := insert(ctx, tx, d, "billing_history",
		[]string{"project_id", "application_number", "period_end", "cumulative_billed", "retention_held", "status"},
		recs.BillingApplications, func(a margin.BillingApplication) []any {
			return []any{string(a.ProjectID), a.ApplicationNumber, a.PeriodEnd, a.CumulativeBilled, a.RetentionHeld, a.Status}
		}); err != nil {
		return err
	}
	if err := insert(ctx, tx, d, "billing_line_items",
		[]string{"project_id", "application_number", "sov_line_id", "pct_complete", "total_billed"},
		recs.BillingLineItems, func(it margin.BillingLineItem) []any {
			return []any{string(it.ProjectID), it.ApplicationNumber, string(it.LineID), it.PercentComplete, it.CumulativeBilled}
		}); err != nil {
		return err
	}
	return insert(ctx, tx, d, "scope_creep_candidates",
		[]string{"scope_id", "project_id", "sov_line_id", "description", "responsibility", "co_status",
			"estimated_labor_hours", "estimated_material_cost"},
		recs.ScopeCreepCandidates, func(c margin.ScopeCreepCandidate) []any {
			return []any{c.ScopeID, string(c.ProjectID), string(c.LineID), c.Description,
				string(c.Responsibility), string(c.COStatus), c.EstimatedLaborHours, c.EstimatedMaterialCost}
		})
}
