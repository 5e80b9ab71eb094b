package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/farellandr/showticket/internal/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func adminEngine() *gin.Engine {
	r := gin.New()
	r.GET("/admin", JWTAuthMiddleware(secret), RequireRole("admin"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})
	return r
}

func call(r *gin.Engine, method, path, auth string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := adminEngine()
	userID := uuid.New()

	token, err := IssueToken(secret, userID, "admin", time.Hour)
	require.NoError(t, err)
	w := call(r, http.MethodGet, "/admin", "Bearer "+token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/admin", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/admin", "Bearer nope", "").Code)

	forged, err := IssueToken("other-secret", userID, "admin", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/admin", "Bearer "+forged, "").Code)

	expired, err := IssueToken(secret, userID, "admin", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/admin", "Bearer "+expired, "").Code)
}

func TestRequireRole(t *testing.T) {
	r := adminEngine()

	token, err := IssueToken(secret, uuid.New(), "viewer", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/admin", "Bearer "+token, "").Code)
}

func TestCorrelationID(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationID(), RequestLogger())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, log.CorrelationIDFromContext(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(CorrelationIDHeader))

	w = call(r, http.MethodGet, "/ping", "", "")
	assert.True(t, strings.HasPrefix(w.Body.String(), "gen_"))
}

func TestRawBody(t *testing.T) {
	r := gin.New()
	r.POST("/hook", RawBody(16), func(c *gin.Context) {
		c.String(http.StatusOK, string(GetRawBody(c)))
	})

	w := call(r, http.MethodPost, "/hook", "", `{"a":1}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"a":1}`, w.Body.String())

	w = call(r, http.MethodPost, "/hook", "", strings.Repeat("x", 17))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
