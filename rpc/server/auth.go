package server

import (
	"errors"
	"time"

	"github.com/ValentinKolb/dCheck/lib/db"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

var authLog = logger.GetLogger("auth")

// DefaultSessionTTL is used if the config does not set a session ttl
const DefaultSessionTTL = 30 * time.Minute

// HashPassword creates the bcrypt hash of a password as expected in ServerConfig.Users
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// authenticator checks credentials and keeps the session tokens.
// Sessions expire after ttl without requests.
type authenticator struct {
	users     map[string]string // user -> bcrypt hash
	sessions  *cache.Cache      // token -> user
	dummyHash []byte            // compared for unknown users
}

func newAuthenticator(users map[string]string, ttl time.Duration) *authenticator {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	a := &authenticator{
		users:    users,
		sessions: cache.New(ttl, 2*ttl),
	}
	if len(users) == 0 {
		authLog.Warningf("No users configured, every login is accepted")
	} else {
		a.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	}
	return a
}

// Login checks the credentials and creates a new session
func (a *authenticator) Login(user, password string) (token string, err error) {
	if user == "" {
		return "", db.NewError(db.RetCUnauthorized, "missing user name")
	}

	if len(a.users) > 0 {
		hash, ok := a.users[user]
		if !ok {
			// compare anyway, unknown and known users take the same time
			hash = string(a.dummyHash)
		}
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if !ok || err != nil {
			if ok && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				authLog.Errorf("Invalid password hash for user %s: %v", user, err)
			}
			authLog.Infof("Rejected login of %s", user)
			return "", db.NewError(db.RetCUnauthorized, "invalid user name or password")
		}
	}

	token = uuid.NewString()
	a.sessions.SetDefault(token, user)
	authLog.Debugf("User %s logged in", user)
	return token, nil
}

// Authenticate returns the user of a session and extends the session
func (a *authenticator) Authenticate(token string) (user string, err error) {
	if token == "" {
		return "", db.NewError(db.RetCUnauthorized, "missing session token, login first")
	}
	v, found := a.sessions.Get(token)
	if !found {
		return "", db.NewError(db.RetCUnauthorized, "invalid or expired session, login again")
	}
	user = v.(string)
	a.sessions.SetDefault(token, user)
	return user, nil
}
