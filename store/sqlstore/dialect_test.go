package sqlstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := "SELECT * FROM sov WHERE project_id = ? AND sov_line_id = ?"

	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, "SELECT * FROM sov WHERE project_id = $1 AND sov_line_id = $2", Postgres.rebind(q))
}

func TestSchema_AmountColumnTypes(t *testing.T) {
	assert.Contains(t, SQLite.schema(), "scheduled_value TEXT NOT NULL")
	assert.Contains(t, Postgres.schema(), "scheduled_value NUMERIC NOT NULL")
	assert.False(t, strings.Contains(Postgres.schema(), "{{num}}"))
}

func TestTxOptions(t *testing.T) {
	assert.Nil(t, SQLite.snapshotOptions())
	assert.True(t, Postgres.snapshotOptions().ReadOnly)
	assert.True(t, Postgres.queryOptions().ReadOnly)
}
