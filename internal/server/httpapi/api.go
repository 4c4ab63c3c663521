// Package httpapi is the JSON/HTTP surface of texbridge: password and
// delegated login, session status, donation submission and public reads.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/logging"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
	"github.com/dmitrijs2005/texbridge/internal/server/provider"
	"github.com/dmitrijs2005/texbridge/internal/server/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// multipartOverhead is allowed on top of the photo budget for form fields
// and multipart framing.
const multipartOverhead = 1 << 20

type Accounts interface {
	Register(ctx context.Context, username, email, password string) (*models.Account, error)
	Authenticate(ctx context.Context, identifier, password string) (*models.Account, error)
}

type Resolver interface {
	Resolve(ctx context.Context, subjectID, emailHint, displayNameHint, avatarHint string) (*models.Account, error)
}

type Donations interface {
	Submit(ctx context.Context, ownerID int64, form models.DonationForm, attachments []models.Attachment) (*models.Donation, error)
	Get(ctx context.Context, id int64) (*models.Donation, error)
	List(ctx context.Context, ownerID *int64) ([]*models.Donation, error)
}

// Pinger reports backend readiness for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Observer receives per-request events; metrics.Metrics implements it.
type Observer interface {
	Instrument(next http.Handler) http.Handler
	Handler() http.Handler
	LoginAttempt(method, outcome string)
}

type Options struct {
	CORSOrigins     []string
	MaxUploadBytes  int64
	PostRegisterURL string
	PostLoginURL    string
	FailureURL      string
}

// Deps are the collaborators of the API. Provider and State may be nil when
// delegated identity is not configured; Observer and Pinger are optional.
type Deps struct {
	Accounts  Accounts
	Resolver  Resolver
	Donations Donations
	Sessions  *session.Manager
	Provider  provider.Provider
	State     *provider.StateCodec
	Observer  Observer
	Pinger    Pinger
	Log       logging.Logger
}

type API struct {
	deps Deps
	opts Options
	log  logging.Logger
}

func New(deps Deps, opts Options) *API {
	if deps.Log == nil {
		deps.Log = logging.Nop{}
	}
	return &API{deps: deps, opts: opts, log: deps.Log.With("module", "httpapi")}
}

// Handler builds the router.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(a.log))
	r.Use(middleware.Recoverer)
	if a.deps.Observer != nil {
		r.Use(a.deps.Observer.Instrument)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(a.deps.Sessions.Middleware)

	r.Get("/", a.root)
	r.Get("/healthz", a.healthz)
	if a.deps.Observer != nil {
		r.Method(http.MethodGet, "/metrics", a.deps.Observer.Handler())
	}

	r.Post("/register", a.register)
	r.Post("/login", a.login)
	r.Post("/logout", a.logout)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/status", a.status)
		r.Get("/failure", a.failure)
		r.Get("/provider/callback", a.providerCallback)
		r.Get("/provider/{flow}", a.providerBegin)
		// legacy paths of the first frontend
		r.Get("/google", a.providerBeginFlow(common.FlowLogin))
		r.Get("/google/callback", a.providerCallback)
	})

	r.Route("/api/donations", func(r chi.Router) {
		r.Post("/", a.submitDonation)
		r.Get("/", a.listDonations)
		r.Get("/{id}", a.getDonation)
	})

	return r
}

func (a *API) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "texbridge API is running"})
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	if a.deps.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.deps.Pinger.PingContext(ctx); err != nil {
			a.log.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
