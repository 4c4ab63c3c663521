package provider

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/texbridge/internal/common"
	"github.com/dmitrijs2005/texbridge/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callbackRequest(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/auth/provider/callback", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestStateCodec_RoundTrip(t *testing.T) {
	c := NewStateCodec([]byte("k"), false)

	for _, flow := range []string{common.FlowRegister, common.FlowLogin} {
		rec := httptest.NewRecorder()
		state, err := c.Begin(rec, flow)
		require.NoError(t, err)

		out := httptest.NewRecorder()
		got, err := c.Verify(out, callbackRequest(rec), state)
		require.NoError(t, err)
		assert.Equal(t, flow, got)
		require.Len(t, out.Result().Cookies(), 1)
		assert.Equal(t, -1, out.Result().Cookies()[0].MaxAge)
	}
}

func TestStateCodec_UnknownFlow(t *testing.T) {
	c := NewStateCodec([]byte("k"), false)
	_, err := c.Begin(httptest.NewRecorder(), "admin")
	assert.ErrorIs(t, err, ErrUnknownFlow)
}

func TestStateCodec_MissingNonceCookie(t *testing.T) {
	c := NewStateCodec([]byte("k"), false)
	state, err := c.Begin(httptest.NewRecorder(), common.FlowLogin)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/auth/provider/callback", nil)
	_, err = c.Verify(httptest.NewRecorder(), r, state)
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestStateCodec_StateFromAnotherBrowser(t *testing.T) {
	c := NewStateCodec([]byte("k"), false)

	victim := httptest.NewRecorder()
	_, err := c.Begin(victim, common.FlowLogin)
	require.NoError(t, err)

	attackerState, err := c.Begin(httptest.NewRecorder(), common.FlowLogin)
	require.NoError(t, err)

	_, err = c.Verify(httptest.NewRecorder(), callbackRequest(victim), attackerState)
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestStateCodec_TamperedState(t *testing.T) {
	c := NewStateCodec([]byte("k"), false)
	rec := httptest.NewRecorder()
	_, err := c.Begin(rec, common.FlowLogin)
	require.NoError(t, err)

	_, err = c.Verify(httptest.NewRecorder(), callbackRequest(rec), "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
