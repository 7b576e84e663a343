package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(a *Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	whoami := func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.String(http.StatusOK, "anon")
			return
		}
		c.String(http.StatusOK, claims.Subject)
	}
	r.GET("/required", a.Require(), whoami)
	r.GET("/optional", a.Optional(), whoami)
	return r
}

func do(r http.Handler, path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	tokens := NewTokens("studynotion", "secret", time.Hour, time.Hour)
	revocations := NewMemoryRevocations()
	r := newTestRouter(NewAuthenticator(tokens, revocations))

	pair, err := tokens.Issue("user-1", "", "s1")
	require.NoError(t, err)

	w := do(r, "/required", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/required", "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())

	w = do(r, "/required", "Bearer "+pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/optional", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anon", w.Body.String())

	w = do(r, "/optional", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/optional", "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/optional", "bearer "+pair.AccessToken)
	assert.Equal(t, "user-1", w.Body.String())
}

func TestRevokedTokenRejected(t *testing.T) {
	tokens := NewTokens("studynotion", "secret", time.Hour, time.Hour)
	revocations := NewMemoryRevocations()
	r := newTestRouter(NewAuthenticator(tokens, revocations))

	pair, err := tokens.Issue("user-1", "", "s1")
	require.NoError(t, err)
	claims, err := tokens.Parse(pair.AccessToken, KindAccess)
	require.NoError(t, err)

	require.NoError(t, revocations.Revoke(context.Background(), claims.ID, pair.AccessExp))

	assert.Equal(t, http.StatusUnauthorized, do(r, "/required", "Bearer "+pair.AccessToken).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/optional", "Bearer "+pair.AccessToken).Code)
}

func TestMemoryRevocationsExpire(t *testing.T) {
	m := NewMemoryRevocations()
	base := time.Now()
	m.now = func() time.Time { return base }
	ctx := context.Background()

	require.NoError(t, m.Revoke(ctx, "a", base.Add(time.Minute)))
	revoked, err := m.Revoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	revoked, err = m.Revoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, m.Revoke(ctx, "b", base.Add(time.Hour)))
	assert.NotContains(t, m.until, "a")
}
