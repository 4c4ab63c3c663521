package provider

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/server/auth"
	"github.com/google/uuid"
)

const (
	nonceCookieName = "texbridge_oauth_nonce"
	stateTTL        = 10 * time.Minute
)

var (
	ErrStateMismatch = errors.New("state does not match this browser")
	ErrUnknownFlow   = errors.New("unknown flow")
)

// StateCodec protects the handshake against CSRF and remembers whether it
// was started from the register or the login page. The signed state travels
// through the provider; its nonce is also pinned in a browser cookie.
type StateCodec struct {
	secret []byte
	secure bool
}

func NewStateCodec(secret []byte, secureCookie bool) *StateCodec {
	return &StateCodec{secret: secret, secure: secureCookie}
}

// Begin issues a state for flow and sets the nonce cookie.
func (c *StateCodec) Begin(w http.ResponseWriter, flow string) (string, error) {
	if flow != common.FlowRegister && flow != common.FlowLogin {
		return "", ErrUnknownFlow
	}
	nonce := uuid.NewString()
	state, err := auth.GenerateStateToken(flow, nonce, c.secret, stateTTL)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookieName,
		Value:    nonce,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// Verify checks the state returned by the provider and yields its flow. The
// nonce cookie is cleared whatever the outcome.
func (c *StateCodec) Verify(w http.ResponseWriter, r *http.Request, state string) (string, error) {
	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})

	claims, err := auth.ParseStateToken(state, c.secret)
	if err != nil {
		return "", err
	}
	cookie, err := r.Cookie(nonceCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != claims.Nonce {
		return "", ErrStateMismatch
	}
	if claims.Flow != common.FlowRegister && claims.Flow != common.FlowLogin {
		return "", ErrUnknownFlow
	}
	return claims.Flow, nil
}
