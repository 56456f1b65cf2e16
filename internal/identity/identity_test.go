package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareIssuesVisitorCookie(t *testing.T) {
	var visitor, session string
	h := Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		visitor = VisitorIDFromContext(r.Context())
		session = SessionIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, isValidVisitorID(visitor))
	assert.Equal(t, visitor, session)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, VisitorCookieName, cookies[0].Name)
	assert.Equal(t, visitor, cookies[0].Value)
}

func TestMiddlewareReusesCookieAndHeader(t *testing.T) {
	const id = "visitor_0123456789abcdef0123456789abcdef"
	var visitor, session string
	h := Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		visitor = VisitorIDFromContext(r.Context())
		session = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookieName, Value: id})
	req.Header.Set(SessionHeaderName, "tab-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, id, visitor)
	assert.Equal(t, "tab-42", session)
}

func TestSanitizeSessionID(t *testing.T) {
	assert.Equal(t, "abc-123", SanitizeSessionID(" abc-123 "))
	assert.Empty(t, SanitizeSessionID("bad id with spaces"))
	assert.Empty(t, SanitizeSessionID(""))
}
