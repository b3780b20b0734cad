package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicrelay/pkg/errs"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(TokenConfig{Secret: "test-secret", AdminUser: "admin", TTL: time.Hour})
	require.NoError(t, err)
	return tm
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{})
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestTokenRoundTrip(t *testing.T) {
	tm := newManager(t)

	raw, err := tm.GenerateToken("alice", "cloud-tok")
	require.NoError(t, err)

	identity, err := tm.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.UserID)
	assert.Equal(t, "cloud-tok", identity.CloudToken)
	assert.False(t, identity.Admin)
	assert.WithinDuration(t, time.Now().Add(time.Hour), identity.ExpiresAt, 5*time.Second)

	raw, err = tm.GenerateToken("admin", "internal")
	require.NoError(t, err)
	identity, err = tm.ValidateToken(raw)
	require.NoError(t, err)
	assert.True(t, identity.Admin)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	tm := newManager(t)

	other, err := NewTokenManager(TokenConfig{Secret: "other-secret"})
	require.NoError(t, err)
	foreign, err := other.GenerateToken("alice", "x")
	require.NoError(t, err)

	_, err = tm.ValidateToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{CloudToken: "x"}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = tm.ValidateToken(anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	tm := newManager(t)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, err := tm.GenerateToken("alice", "x")
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ValidateToken(raw)
	assert.True(t, errors.Is(err, ErrTokenExpired))
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	tok, ok = BearerToken("bearer  xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Bearer", "Bearer ", "Basic abc", "abc"} {
		_, ok := BearerToken(h)
		assert.False(t, ok, h)
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tm := newManager(t)

	var rejected error
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		if last := c.Errors.Last(); last != nil {
			rejected = last.Err
		}
	})
	r.Use(Authenticate(tm, zap.NewNop()))
	r.GET("/user", RequireIdentity(), func(c *gin.Context) {
		identity, _ := GetIdentity(c)
		c.String(http.StatusOK, identity.UserID)
	})
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	userTok, err := tm.GenerateToken("alice", "c")
	require.NoError(t, err)
	adminTok, err := tm.GenerateToken("admin", "c")
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
		want   error
	}{
		{"anonymous user route", "/user", "", http.StatusUnauthorized, errs.Unauthenticated},
		{"garbage token", "/user", "garbage", http.StatusUnauthorized, errs.Unauthenticated},
		{"user route", "/user", userTok, http.StatusOK, nil},
		{"anonymous admin route", "/admin", "", http.StatusUnauthorized, errs.Unauthenticated},
		{"non-admin", "/admin", userTok, http.StatusForbidden, errs.Forbidden},
		{"admin", "/admin", adminTok, http.StatusOK, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejected = nil
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.want == nil {
				assert.NoError(t, rejected)
				return
			}
			assert.ErrorIs(t, rejected, tt.want)
		})
	}
}
