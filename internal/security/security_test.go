package security

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func TestHeadersMiddlewareSetsSecurityHeaders(t *testing.T) {
	mw := Headers{Enable: true, EnableHSTS: true, HSTSMaxAge: 31536000, HSTSIncludeSubdomains: true}
	handler := mw.Middleware(okHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "https://milsabores.cl/", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	headers := rr.Result().Header
	require.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	require.Contains(t, headers.Get("Strict-Transport-Security"), "includeSubDomains")
}

func TestHeadersMiddlewareDisabled(t *testing.T) {
	mw := Headers{Enable: false, EnableHSTS: true}
	handler := mw.Middleware(okHandler(http.StatusOK))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://milsabores.cl/", nil))
	require.Empty(t, rr.Header().Get("X-Content-Type-Options"))
}

func TestBodyLimitAllowsWithinLimit(t *testing.T) {
	limiter := BodyLimit{Max: 10}
	var captured string
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		captured = string(data)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader("hola")))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "hola", captured)
}

func TestBodyLimitRejectsOversized(t *testing.T) {
	limiter := BodyLimit{Max: 5}
	handler := limiter.Middleware(okHandler(http.StatusOK))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader("demasiado grande")))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")
}

func TestBodyLimitRejectsDeclaredContentLength(t *testing.T) {
	limiter := BodyLimit{Max: 5}
	handler := limiter.Middleware(okHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodPost, "/payload", strings.NewReader("abc"))
	req.ContentLength = 100
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestCSRFMiddlewareBlocksMissingToken(t *testing.T) {
	csrf := CSRF{}
	handler := csrf.Middleware(okHandler(http.StatusOK))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cart/items", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Contains(t, rr.Body.String(), "CSRF_REJECTED")
}

func TestCSRFMiddlewareAllowsMatchingTokenAndCookie(t *testing.T) {
	csrf := CSRF{Header: "X-CSRF-Token"}
	handler := csrf.Middleware(okHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
	req.Header.Set("X-CSRF-Token", "token-abc")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "token-abc"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCSRFMiddlewareSkipsBearerAndSafeMethods(t *testing.T) {
	csrf := CSRF{}
	handler := csrf.Middleware(okHandler(http.StatusAccepted))

	req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
}
