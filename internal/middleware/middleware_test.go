package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkhosravi/venue-scheduler/internal/utils"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string, seed func(echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if seed != nil {
		seed(c)
	}
	err := mw(okHandler)(c)
	require.NoError(t, err)
	return rec
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	const secret = "mw-secret"
	at, err := utils.NewAccessToken(secret, 7, "ORGANIZER", 15)
	require.NoError(t, err)

	var gotUser interface{}
	var gotRole interface{}
	capture := func(c echo.Context) error {
		gotUser = c.Get(CtxUserID)
		gotRole = c.Get(CtxRole)
		return c.String(http.StatusOK, "ok")
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+at.Token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, JWTAuth(secret)(capture)(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(7), gotUser)
	assert.Equal(t, "ORGANIZER", gotRole)
}

func TestJWTAuthRejectsMissingAndBadTokens(t *testing.T) {
	rec := doRequest(t, JWTAuth("s"), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, JWTAuth("s"), "Bearer garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Token signed with a different secret.
	at, err := utils.NewAccessToken("other", 7, "VIEWER", 15)
	require.NoError(t, err)
	rec = doRequest(t, JWTAuth("s"), "Bearer "+at.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole("ORGANIZER")

	rec := doRequest(t, mw, "", func(c echo.Context) { c.Set(CtxRole, "ORGANIZER") })
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, mw, "", func(c echo.Context) { c.Set(CtxRole, "VIEWER") })
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, mw, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	body := []byte(`{"slots":[]}`)

	packed, err := packEntry(http.StatusOK, hdr, body)
	require.NoError(t, err)

	status, gotHdr, gotBody, ok := unpackEntry(packed)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, body, gotBody)
}

func TestUnpackEntryRejectsTruncated(t *testing.T) {
	_, _, _, ok := unpackEntry([]byte{1, 2, 3})
	assert.False(t, ok)

	// Header length pointing past the buffer.
	bad := make([]byte, 8)
	bad[7] = 0xFF
	_, _, _, ok = unpackEntry(bad)
	assert.False(t, ok)
}
