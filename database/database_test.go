package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteConnectMigratesTables(t *testing.T) {
	db, err := SQLiteConnect(":memory:")
	require.NoError(t, err)

	for _, table := range []string{"users", "conversations", "messages", "push_subscriptions", "products", "categories", "orders"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestCasbinAdminPolicy(t *testing.T) {
	db, err := SQLiteConnect(":memory:")
	require.NoError(t, err)

	e, err := Casbin(db)
	require.NoError(t, err)

	_, err = e.AddGroupingPolicy("1", RoleAdmin)
	require.NoError(t, err)
	_, err = e.AddGroupingPolicy("2", RoleUser)
	require.NoError(t, err)

	ok, err := e.Enforce("1", "/api/admin/categories", "POST")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Enforce("2", "/api/admin/categories", "POST")
	require.NoError(t, err)
	assert.False(t, ok)
}
