package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/logging"
	"github.com/dmitrijs2005/texbridge/internal/server/metrics"
	"github.com/dmitrijs2005/texbridge/internal/server/models"
	"github.com/dmitrijs2005/texbridge/internal/server/provider"
	"github.com/dmitrijs2005/texbridge/internal/server/session"
)

type fakeAccounts struct {
	mu       sync.Mutex
	byID     map[int64]*models.Account
	password map[string]string
	regErr   error
	authErr  error
	lastAuth string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		byID: map[int64]*models.Account{
			7: {ID: 7, Username: "alice", Email: "alice@x.com"},
		},
		password: map[string]string{"alice": "pw123", "alice@x.com": "pw123"},
	}
}

func (f *fakeAccounts) FindByID(_ context.Context, id int64) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}

func (f *fakeAccounts) Register(_ context.Context, username, email, password string) (*models.Account, error) {
	if f.regErr != nil {
		return nil, f.regErr
	}
	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if err := common.NewValidationError(missing...); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &models.Account{ID: int64(len(f.byID) + 100), Username: username, Email: email}
	f.byID[a.ID] = a
	return a, nil
}

func (f *fakeAccounts) Authenticate(_ context.Context, identifier, password string) (*models.Account, error) {
	f.mu.Lock()
	f.lastAuth = identifier
	f.mu.Unlock()
	if f.authErr != nil {
		return nil, f.authErr
	}
	if identifier == "" || password == "" {
		return nil, common.NewValidationError("username", "password")
	}
	if f.password[identifier] != password {
		return nil, common.ErrInvalidCredentials
	}
	return f.byID[7], nil
}

type fakeResolver struct {
	account *models.Account
	err     error
	subject string
}

func (f *fakeResolver) Resolve(_ context.Context, subjectID, _, _, _ string) (*models.Account, error) {
	f.subject = subjectID
	return f.account, f.err
}

type fakeProvider struct {
	identity *provider.Identity
	err      error
	code     string
}

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*provider.Identity, error) {
	f.code = code
	return f.identity, f.err
}

type fakeDonations struct {
	mu          sync.Mutex
	submitted   *models.DonationForm
	photos      []string
	submitErr   error
	donations   map[int64]*models.Donation
	listOwner   *int64
	listErr     error
	nextID      int64
	photoBodies []string
}

func newFakeDonations() *fakeDonations {
	return &fakeDonations{donations: map[int64]*models.Donation{}, nextID: 1}
}

func (f *fakeDonations) Submit(_ context.Context, ownerID int64, form models.DonationForm, attachments []models.Attachment) (*models.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = &form
	d := &models.Donation{ID: f.nextID, OwnerID: ownerID, Quantity: form.Quantity}
	for _, a := range attachments {
		b, err := io.ReadAll(a.Content)
		if err != nil {
			return nil, err
		}
		f.photos = append(f.photos, a.OriginalName+":"+a.ContentType)
		f.photoBodies = append(f.photoBodies, string(b))
		d.PhotoPaths = append(d.PhotoPaths, a.OriginalName)
	}
	f.donations[d.ID] = d
	f.nextID++
	return d, nil
}

func (f *fakeDonations) Get(_ context.Context, id int64) (*models.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.donations[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return d, nil
}

func (f *fakeDonations) List(_ context.Context, ownerID *int64) ([]*models.Donation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listOwner = ownerID
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []*models.Donation{}
	for _, d := range f.donations {
		if ownerID == nil || d.OwnerID == *ownerID {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

var errBoom = errors.New("boom")

type testEnv struct {
	api       *API
	handler   http.Handler
	accounts  *fakeAccounts
	resolver  *fakeResolver
	provider  *fakeProvider
	donations *fakeDonations
	metrics   *metrics.Metrics
}

func testOptions() Options {
	return Options{
		CORSOrigins:     []string{"http://localhost:5500"},
		MaxUploadBytes:  1 << 20,
		PostRegisterURL: "http://front.test/registered.html",
		PostLoginURL:    "http://front.test/home.html",
		FailureURL:      "http://front.test/Frontend/reglogin.html",
	}
}

func newTestEnv(t *testing.T, mutate ...func(*Deps, *Options)) *testEnv {
	t.Helper()
	env := &testEnv{
		accounts:  newFakeAccounts(),
		resolver:  &fakeResolver{},
		provider:  &fakeProvider{},
		donations: newFakeDonations(),
		metrics:   metrics.New(),
	}
	secret := []byte("test-secret")
	sessions := session.NewManager(session.NewMemoryStore(time.Hour, time.Minute), env.accounts, secret,
		session.Options{TTL: time.Hour}, logging.Nop{})

	deps := Deps{
		Accounts:  env.accounts,
		Resolver:  env.resolver,
		Donations: env.donations,
		Sessions:  sessions,
		Provider:  env.provider,
		State:     provider.NewStateCodec(secret, false),
		Observer:  env.metrics,
		Log:       logging.Nop{},
	}
	opts := testOptions()
	for _, m := range mutate {
		m(&deps, &opts)
	}
	env.api = New(deps, opts)
	env.handler = env.api.Handler()
	return env
}

// serve runs r through the router, replaying cookies from earlier responses.
func (e *testEnv) serve(r *http.Request, from ...*httptest.ResponseRecorder) *httptest.ResponseRecorder {
	for _, prev := range from {
		for _, c := range prev.Result().Cookies() {
			if c.MaxAge >= 0 && c.Value != "" {
				r.AddCookie(c)
			}
		}
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)
	return rec
}
