package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"unimarket/database"
	"unimarket/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.SQLiteConnect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	u := &model.User{Email: fmt.Sprintf("%s@uni.test", name), Name: name, Password: "x", Role: "user"}
	require.NoError(t, db.Create(u).Error)
	return u
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

var ctx = context.Background()
