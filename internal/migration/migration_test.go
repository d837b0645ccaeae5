package migration

import (
	"testing"

	"github.com/smallbiznis/usagelens/pkg/db"
	"github.com/smallbiznis/usagelens/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSQLiteCreatesTables(t *testing.T) {
	conn := dbtest.New(t)

	require.NoError(t, Run(conn, db.TypeSQLite))
	for _, table := range []string{"metrics_data", "metadata", "manager_data", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}

	// second run is a no-op
	require.NoError(t, Run(conn, db.TypeSQLite))
}

func TestRunSQLiteEnforcesNaturalKey(t *testing.T) {
	conn := dbtest.New(t)
	require.NoError(t, Run(conn, db.TypeSQLite))

	insert := `INSERT INTO metrics_data (date, email, display_email, is_active, subscription_included_reqs, created_at, updated_at)
		VALUES ('2024-01-01', 'a@x.com', 'A@x.com', 1, 3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`
	require.NoError(t, conn.Exec(insert).Error)
	assert.Error(t, conn.Exec(insert).Error)
}

func TestRunRejectsUnknownDialect(t *testing.T) {
	assert.Error(t, Run(dbtest.New(t), "oracle"))
	assert.Error(t, Run(nil, db.TypeSQLite))
}
