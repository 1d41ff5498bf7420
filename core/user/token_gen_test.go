package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMakeVerifyToken(t *testing.T) {
	gen := newTokenGenerator([]byte("secret"), 3*24*time.Hour)

	now := time.Now()
	usr := User{
		ID:        "6f1c1a3e-5d1b-4b8e-9d55-1f1b2e3c4d5e",
		Name:      "T",
		Username:  "t",
		Email:     "t@test.test",
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken, err := gen.makeToken(usr)
	assert.NoError(t, err)

	// generate an expired token
	dayLate := gen.timeout + (24 * time.Hour)
	gen.nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := gen.makeToken(usr)
	assert.NoError(t, err)
	gen.nowFunc = time.Now // reset

	otherGen := newTokenGenerator([]byte("other secret"), gen.timeout)
	forgedToken, err := otherGen.makeToken(usr)
	assert.NoError(t, err)

	loggedIn := usr
	loggedIn.LastLogin = now.Add(time.Minute)

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
		{name: "forged token", usr: usr, token: forgedToken, wantErr: errInvalidToken},
		{name: "logged in since", usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, gen.verifyToken(tt.usr, tt.token))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "6f1c1a3e-5d1b-4b8e-9d55-1f1b2e3c4d5e"}
	id, err := decodeUID(EncodeUID(usr))
	assert.NoError(t, err)
	assert.Equal(t, usr.ID, id)

	_, err = decodeUID("!!")
	assert.Error(t, err)
}
