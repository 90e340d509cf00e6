package main

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/askante/core/query"
	"github.com/trezcool/askante/core/user"
	inmemdb "github.com/trezcool/askante/storage/database/inmem"
	testutil "github.com/trezcool/askante/tests"
)

var today = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type invoiceRun struct {
	created int
	err     error
	called  time.Time
}

func (r *invoiceRun) GenerateInvoices(_ context.Context, day time.Time) (int, error) {
	r.called = day
	return r.created, r.err
}

func setup(t *testing.T) (*commandLine, *inmemdb.UserRepository, *invoiceRun) {
	t.Helper()
	repo := inmemdb.NewUserRepository()
	run := new(invoiceRun)
	return &commandLine{
		usrRepo:  repo,
		invoices: run,
		now:      func() time.Time { return today },
	}, repo, run
}

func withPassword(t *testing.T, pwd string) {
	t.Helper()
	old := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = old })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	old := migrateFunc
	t.Cleanup(func() { migrateFunc = old })
	migrateFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, repo, _ := setup(t)
	usr := testutil.CreateUser(t, repo, "awe", "awe@test.cd", "mdr", user.RoleAdmin, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", "AWE"}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			var pwd string
			if e, ok := tt.extra.(extra); ok {
				pwd = e.pwd
			}
			withPassword(t, pwd)

			err := cli.run(args)
			checkErr(t, tt, err)
			if err == nil {
				refreshed, err := repo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshed.CheckPassword(pwd), "password not updated")
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, repo, _ := setup(t)
	testutil.CreateUser(t, repo, "awe", "awe@test.cd", "mdr", user.RoleTeacher, false)

	tests := []struct {
		cliTest
		pwd           string
		wantID        int
		wantSuperuser bool
	}{
		{cliTest: cliTest{name: "no args", args: []string{"adduser"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "no password", args: []string{"adduser", "-username", "new"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErrStr: "flag provided but not defined: -lol"}, pwd: "pwd"},
		{
			cliTest: cliTest{name: "email taken", args: []string{"adduser", "-username", "other", "-email", "awe@test.cd"}, wantErr: user.ErrEmailExists},
			pwd:     "pwd",
		},
		{
			cliTest: cliTest{name: "create superuser", args: []string{"adduser", "-username", " Root ", "-email", "root@test.cd", "-superuser"}},
			pwd:     "s3cret", wantID: 2, wantSuperuser: true,
		},
		{
			cliTest: cliTest{name: "activate existing", args: []string{"adduser", "-username", "awe"}},
			pwd:     "n3w", wantID: 1,
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			withPassword(t, tt.pwd)

			err := cli.run(args)
			checkErr(t, tt.cliTest, err)
			if err != nil {
				return
			}
			usr, err := repo.Get(context.Background(), query.Global(), tt.wantID)
			require.NoError(t, err)
			assert.True(t, usr.IsActive)
			assert.Equal(t, tt.wantSuperuser, usr.IsSuperuser)
			assert.NoError(t, usr.CheckPassword(tt.pwd))
		})
	}

	root, err := repo.GetUser(context.Background(), user.GetFilter{Username: "root"})
	require.NoError(t, err)
	assert.Equal(t, "root@test.cd", root.Email)
}

func Test_commandLine_generateInvoices(t *testing.T) {
	cli, _, run := setup(t)

	run.created = 3
	require.NoError(t, cli.run([]string{"admin", "generateinvoices"}))
	assert.Equal(t, today, run.called)

	run.err = errors.New("boom")
	assert.EqualError(t, cli.run([]string{"admin", "generateinvoices"}), "boom")
}
