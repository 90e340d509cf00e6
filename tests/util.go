// Package testutil builds the fixtures shared by the command, API and storage tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/user"
	"github.com/trezcool/askante/storage/database"
)

// PrepareDB opens the TEST database, migrates it and empties every table, before and after the test.
// The test is skipped when the database is unreachable.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()

	db, err := database.Open(conf)
	if err != nil {
		t.Skipf("opening test database: %v", err)
	}
	if err = database.Ping(db); err != nil {
		_ = db.Close()
		t.Skipf("test database unreachable: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("PrepareDB() failed: %v", err)
	}

	truncate(t, db)
	t.Cleanup(func() {
		truncate(t, db)
		_ = db.Close()
	})
	return db
}

func truncate(t *testing.T, db *sqlx.DB) {
	t.Helper()
	var tables []string
	err := db.Select(&tables,
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename <> 'goose_db_version'`,
	)
	if err != nil {
		t.Fatalf("listing tables: %v", err)
	}
	if len(tables) == 0 {
		return
	}
	if _, err = db.Exec(fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))); err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}

// CreateUser inserts a user with role and password pwd (when set), unscoped.
func CreateUser(t *testing.T, repo user.Repository, uname, email, pwd, role string, isActive bool) user.User {
	t.Helper()
	usr := user.User{
		Username: uname,
		Email:    email,
		Role:     role,
		IsActive: isActive,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	if err := repo.Create(context.Background(), query.Global(), &usr); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
