package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/server/session"
	"github.com/go-chi/chi/v5"
)

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// decodeCredentials accepts JSON bodies and url-encoded forms.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var c credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		err := json.NewDecoder(r.Body).Decode(&c)
		return c, err
	}
	if err := r.ParseForm(); err != nil {
		return c, err
	}
	c.Username = r.PostForm.Get("username")
	c.Email = r.PostForm.Get("email")
	c.Password = r.PostForm.Get("password")
	return c, nil
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := a.deps.Accounts.Register(r.Context(), c.Username, c.Email, c.Password)
	if err != nil {
		var verr *common.ValidationError
		switch {
		case errors.As(err, &verr):
			writeErrorWith(w, r, http.StatusBadRequest, "All fields required", map[string]any{"fields": verr.Fields})
		case errors.Is(err, common.ErrDuplicateAccount):
			writeError(w, r, http.StatusBadRequest, "Username or email already exists")
		default:
			a.log.Error(r.Context(), "register failed", "error", err)
			writeError(w, r, http.StatusInternalServerError, "Server error")
		}
		return
	}

	a.log.Info(r.Context(), "account registered", "account_id", account.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Registration successful",
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	identifier := c.Username
	if identifier == "" {
		identifier = c.Email
	}

	account, err := a.deps.Accounts.Authenticate(r.Context(), identifier, c.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrValidation):
			a.loginAttempt("password", "invalid")
			writeError(w, r, http.StatusBadRequest, "Username/Email and password required")
		case errors.Is(err, common.ErrInvalidCredentials):
			a.loginAttempt("password", "rejected")
			writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
		default:
			a.loginAttempt("password", "error")
			a.log.Error(r.Context(), "login failed", "error", err)
			writeError(w, r, http.StatusInternalServerError, "Server error")
		}
		return
	}

	if err := a.deps.Sessions.Establish(w, session.FromContext(r.Context()), account.ID); err != nil {
		a.loginAttempt("password", "error")
		a.log.Error(r.Context(), "session establish failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	a.loginAttempt("password", "success")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
	})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	a.deps.Sessions.Terminate(w, session.FromContext(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out",
	})
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	account, err := a.deps.Sessions.Current(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		a.log.Error(r.Context(), "status lookup failed", "error", err)
	}
	if account == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          account.Public(),
	})
}

func (a *API) providerBegin(w http.ResponseWriter, r *http.Request) {
	a.providerBeginFlow(chi.URLParam(r, "flow"))(w, r)
}

func (a *API) providerBeginFlow(flow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.deps.Provider == nil || a.deps.State == nil {
			a.redirectFailure(w, r, "provider_disabled")
			return
		}
		state, err := a.deps.State.Begin(w, flow)
		if err != nil {
			writeError(w, r, http.StatusNotFound, "Unknown flow")
			return
		}
		http.Redirect(w, r, a.deps.Provider.AuthCodeURL(state), http.StatusFound)
	}
}

func (a *API) providerCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if a.deps.Provider == nil || a.deps.State == nil {
		a.redirectFailure(w, r, "provider_disabled")
		return
	}

	q := r.URL.Query()
	flow, err := a.deps.State.Verify(w, r, q.Get("state"))
	if err != nil {
		a.log.Warn(ctx, "provider state rejected", "error", err)
		a.loginAttempt("provider", "rejected")
		a.redirectFailure(w, r, "state")
		return
	}
	if e := q.Get("error"); e != "" {
		a.log.Info(ctx, "provider denied consent", "error", e)
		a.loginAttempt("provider", "rejected")
		a.redirectFailure(w, r, "denied")
		return
	}

	identity, err := a.deps.Provider.Exchange(ctx, q.Get("code"))
	if err != nil {
		a.log.Warn(ctx, "provider exchange failed", "error", err)
		a.loginAttempt("provider", "error")
		a.redirectFailure(w, r, "exchange")
		return
	}

	account, err := a.deps.Resolver.Resolve(ctx, identity.SubjectID, identity.Email, identity.DisplayName, identity.AvatarURL)
	if err != nil {
		reason := "error"
		if errors.Is(err, common.ErrProviderResolution) {
			reason = "conflict"
		}
		a.log.Warn(ctx, "provider identity not resolved", "error", err)
		a.loginAttempt("provider", reason)
		a.redirectFailure(w, r, reason)
		return
	}

	if err := a.deps.Sessions.Establish(w, session.FromContext(ctx), account.ID); err != nil {
		a.log.Error(ctx, "session establish failed", "error", err)
		a.loginAttempt("provider", "error")
		a.redirectFailure(w, r, "error")
		return
	}

	a.loginAttempt("provider", "success")
	target := a.opts.PostLoginURL
	if flow == common.FlowRegister {
		target = a.opts.PostRegisterURL
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// failure forwards to the frontend's failure page, keeping the reason.
func (a *API) failure(w http.ResponseWriter, r *http.Request) {
	target := a.opts.FailureURL
	if reason := r.URL.Query().Get("reason"); reason != "" {
		target = withQuery(target, "reason", reason)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *API) redirectFailure(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, "/auth/failure?reason="+url.QueryEscape(reason), http.StatusFound)
}

func (a *API) loginAttempt(method, outcome string) {
	if a.deps.Observer != nil {
		a.deps.Observer.LoginAttempt(method, outcome)
	}
}

func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
