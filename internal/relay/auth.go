// File: internal/relay/auth.go
package relay

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/smartdevs17/helmetgate/pkg/utils"
)

// Authenticator decides whether a stream upgrade request may proceed
type Authenticator interface {
	Authenticate(r *http.Request) error
}

// AllowAll accepts every request
type AllowAll struct{}

// Authenticate implements Authenticator
func (AllowAll) Authenticate(*http.Request) error { return nil }

// StaticToken accepts requests carrying one of a fixed set of bearer tokens,
// either in the Authorization header or the "token" query parameter
type StaticToken struct {
	tokens [][]byte
}

// NewStaticToken creates a token authenticator; blank tokens are ignored
func NewStaticToken(tokens []string) *StaticToken {
	st := &StaticToken{}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			st.tokens = append(st.tokens, []byte(t))
		}
	}
	return st
}

// NewAuthenticator returns StaticToken when tokens are configured, AllowAll otherwise
func NewAuthenticator(tokens []string) Authenticator {
	st := NewStaticToken(tokens)
	if len(st.tokens) == 0 {
		return AllowAll{}
	}
	return st
}

// Authenticate implements Authenticator
func (s *StaticToken) Authenticate(r *http.Request) error {
	presented := requestToken(r)
	if presented == "" {
		return utils.NewAppError(utils.ErrCodeUnauthorized, "Missing token", "")
	}

	for _, token := range s.tokens {
		if subtle.ConstantTimeCompare(token, []byte(presented)) == 1 {
			return nil
		}
	}
	return utils.NewAppError(utils.ErrCodeUnauthorized, "Invalid token", "")
}

func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		const prefix = "bearer "
		if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
			return strings.TrimSpace(header[len(prefix):])
		}
	}
	return r.URL.Query().Get("token")
}
