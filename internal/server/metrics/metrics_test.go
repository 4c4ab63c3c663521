package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument_UsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/api/donations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/donations/"+id, nil))
	}

	got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/donations/{id}", "404"))
	assert.Equal(t, 3.0, got)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestRecorderCounters(t *testing.T) {
	m := New()
	m.DonationSubmitted(3)
	m.DonationSubmitted(1)
	m.SubmissionRejected("unsupported_media")
	m.OrphansRemoved(5)
	m.LoginAttempt("password", "invalid")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.donationsSubmitted))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.photosStored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissionsRejected.WithLabelValues("unsupported_media")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.orphansRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("password", "invalid")))
}

func TestHandler_Exposes(t *testing.T) {
	m := New()
	m.DonationSubmitted(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "texbridge_donations_submitted_total 1"))
}

func TestStatusWriter_FirstCodeWins(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, code: http.StatusOK}
	_, _ = sw.Write([]byte("x"))
	sw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusOK, sw.code)
}
