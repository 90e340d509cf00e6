package user

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/askante/core"
)

func testUser() User {
	now := time.Now()
	usr := User{
		Model:     core.Model{ID: 1, CreatedAt: now, UpdatedAt: now},
		Username:  "tester",
		Email:     "t@test.test",
		IsActive:  true,
		LastLogin: null.TimeFrom(now),
	}
	_ = usr.SetPassword("pwd")
	return usr
}

func TestMakeVerifyToken(t *testing.T) {
	gen := newTokenGenerator(&core.Config{SecretKey: "secret", PasswordResetTimeoutDelta: 3 * 24 * time.Hour})
	usr := testUser()

	validToken := gen.makeToken(usr)

	// generate an expired token
	dayLate := gen.timeout + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := gen.makeToken(usr)
	nowFunc = time.Now // reset

	// logging in again invalidates the token
	relogged := usr
	relogged.LastLogin = null.TimeFrom(usr.LastLogin.Time.Add(time.Hour))

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "user logged in since", usr: relogged, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := gen.verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTokenGenerator_perService(t *testing.T) {
	usr := testUser()
	a := NewService(nil, nil, nil, nil, &core.Config{SecretKey: "a", PasswordResetTimeoutDelta: 24 * time.Hour}).(*service)
	b := NewService(nil, nil, nil, nil, &core.Config{SecretKey: "b", PasswordResetTimeoutDelta: 7 * 24 * time.Hour}).(*service)

	// a second service keeps its own secret
	token := a.tokens.makeToken(usr)
	if err := a.tokens.verifyToken(usr, token); err != nil {
		t.Errorf("verifyToken() error = %v, want nil", err)
	}
	if err := b.tokens.verifyToken(usr, token); err != errInvalidToken {
		t.Errorf("verifyToken() error = %v, wantErr %v", err, errInvalidToken)
	}

	// and its own timeout
	nowFunc = func() time.Time { return time.Now().Add(-3 * 24 * time.Hour) }
	old := b.tokens.makeToken(usr)
	nowFunc = time.Now // reset
	if err := b.tokens.verifyToken(usr, old); err != nil {
		t.Errorf("verifyToken() error = %v, want nil", err)
	}
	oldA := a.tokens.makeTokenWithTimestamp(usr, numDaysSince2001(time.Now().Add(-3*24*time.Hour)))
	if err := a.tokens.verifyToken(usr, oldA); err != errTokenExpired {
		t.Errorf("verifyToken() error = %v, wantErr %v", err, errTokenExpired)
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{Model: core.Model{ID: 42}}
	id, err := decodeUID(EncodeUID(usr))
	if err != nil || id != 42 {
		t.Errorf("decodeUID() = %d, %v; want 42", id, err)
	}
	if _, err = decodeUID("%%%"); err == nil {
		t.Error("decodeUID() should fail on garbage")
	}
}
