package server

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginOpenMode(t *testing.T) {
	a := newAuthenticator(nil, time.Minute)

	token, err := a.Login("alice", "anything")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	user, err := a.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	_, err = a.Login("", "anything")
	assert.Equal(t, db.RetCUnauthorized, db.CodeOf(err))
}

func TestLoginWithUsers(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)
	a := newAuthenticator(map[string]string{"alice": hash}, time.Minute)

	tests := []struct {
		name     string
		user     string
		password string
		wantCode db.RetCode
	}{
		{"valid", "alice", "secret", db.RetCSuccess},
		{"wrong password", "alice", "guess", db.RetCUnauthorized},
		{"unknown user", "mallory", "secret", db.RetCUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := a.Login(tt.user, tt.password)
			assert.Equal(t, tt.wantCode, db.CodeOf(err))
			if tt.wantCode == db.RetCSuccess {
				assert.NotEmpty(t, token)
			} else {
				assert.Empty(t, token)
			}
		})
	}
}

func TestAuthenticateInvalidToken(t *testing.T) {
	a := newAuthenticator(nil, time.Minute)

	for _, token := range []string{"", "not-a-session"} {
		_, err := a.Authenticate(token)
		assert.Equal(t, db.RetCUnauthorized, db.CodeOf(err), "token %q", token)
	}
}

func TestSessionExpires(t *testing.T) {
	a := newAuthenticator(nil, 50*time.Millisecond)

	token, err := a.Login("alice", "")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	_, err = a.Authenticate(token)
	assert.Equal(t, db.RetCUnauthorized, db.CodeOf(err))
}
