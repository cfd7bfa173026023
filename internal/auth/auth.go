package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/blake2b"
)

// IdentityKey is the gin context key holding the verified username.
const IdentityKey = "auth.identity"

// Realm is advertised in the Basic challenge.
const Realm = "chatgate"

var (
	ErrCredentialsRequired = errors.New("auth: username and password must be configured")
	// ErrUnauthorized is the only failure Verify returns, whichever field
	// was wrong.
	ErrUnauthorized = errors.New("unauthorized")
)

// Verifier checks a Basic-style username/password pair against the single
// configured pair. It holds digests only, never the plain secret.
type Verifier struct {
	username [blake2b.Size256]byte
	password [blake2b.Size256]byte
}

func NewVerifier(username, password string) (*Verifier, error) {
	if username == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	return &Verifier{
		username: blake2b.Sum256([]byte(username)),
		password: blake2b.Sum256([]byte(password)),
	}, nil
}

// Verify returns the identity (the username) on success. Both inputs are
// reduced to fixed-size digests before comparison, so the running time does
// not depend on their length or on where they first differ. Both fields are
// always compared.
func (v *Verifier) Verify(username, password string) (string, error) {
	gotUser := blake2b.Sum256([]byte(username))
	gotPass := blake2b.Sum256([]byte(password))

	userOK := subtle.ConstantTimeCompare(gotUser[:], v.username[:])
	passOK := subtle.ConstantTimeCompare(gotPass[:], v.password[:])

	if userOK&passOK != 1 {
		return "", ErrUnauthorized
	}

	return username, nil
}

// BasicAuth rejects requests without valid credentials. A missing or
// malformed Authorization header is treated the same as a wrong password.
func BasicAuth(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			Challenge(c)
			return
		}

		identity, err := v.Verify(username, password)
		if err != nil {
			Challenge(c)
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// Challenge aborts with 401 and asks the client to resend Basic credentials.
func Challenge(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="`+Realm+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   ErrUnauthorized.Error(),
		"details": "invalid credentials",
	})
}

func Identity(c *gin.Context) (string, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return "", false
	}
	identity, ok := v.(string)
	return identity, ok && identity != ""
}
