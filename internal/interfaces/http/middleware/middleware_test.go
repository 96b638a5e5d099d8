package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
	"github.com/your-org/storefront-backend/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func protectedRouter(t *testing.T, role auth.Role) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.GET("/secret", AuthMiddleware(testutil.Config()), RequireRole(role), func(c *gin.Context) {
		id, _ := GetPrincipalIDFromContext(c)
		role, _ := GetRoleFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})
	return r
}

func bearer(t *testing.T, id uint, role auth.Role) http.Header {
	t.Helper()
	token, err := auth.NewJWTManager(testutil.Config()).GenerateAccessToken(id, "p@example.com", role)
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestAuthMiddleware(t *testing.T) {
	r := protectedRouter(t, auth.RoleUser)

	w := perform(r, http.MethodGet, "/secret", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodGet, "/secret", http.Header{"Authorization": {"Token abc"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodGet, "/secret", http.Header{"Authorization": {"Bearer garbage"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	refresh, err := auth.NewJWTManager(testutil.Config()).GenerateRefreshToken(5, "p@example.com", auth.RoleUser)
	require.NoError(t, err)
	w = perform(r, http.MethodGet, "/secret", http.Header{"Authorization": {"Bearer " + refresh}})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "refresh tokens are not accepted as access tokens")

	w = perform(r, http.MethodGet, "/secret", bearer(t, 5, auth.RoleUser))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":5,"role":"USER"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	adminOnly := protectedRouter(t, auth.RoleAdmin)

	w := perform(adminOnly, http.MethodGet, "/secret", bearer(t, 5, auth.RoleUser))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(adminOnly, http.MethodGet, "/secret", bearer(t, 1, auth.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)

	userOnly := protectedRouter(t, auth.RoleUser)
	w = perform(userOnly, http.MethodGet, "/secret", bearer(t, 1, auth.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, w.Code, "admins do not act as shoppers")

	bare := gin.New()
	bare.GET("/secret", RequireRole(auth.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	w = perform(bare, http.MethodGet, "/secret", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testutil.Config()
	cfg.Security.RateLimitPerMinute = 2

	r := gin.New()
	r.Use(RateLimit(cfg, client, logger.Discard()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	w = perform(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = perform(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	mr.FastForward(time.Minute + time.Second)
	w = perform(r, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code, "window resets")
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	cfg := testutil.Config()
	cfg.Security.RateLimitPerMinute = 1

	r := gin.New()
	r.Use(RateLimit(cfg, client, logger.Discard()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := perform(r, http.MethodGet, "/ping", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	r = gin.New()
	r.Use(RateLimit(cfg, nil, logger.Discard()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ping", nil).Code)
}

func TestCORS(t *testing.T) {
	cfg := testutil.Config()
	cfg.Security.CORSAllowedOrigins = []string{"http://localhost:3000", "*.example.com"}

	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodOptions, "/ping", http.Header{"Origin": {"https://shop.example.com"}})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodGet, "/ping", http.Header{"Origin": {"https://evil.test"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimit(8))
	r.POST("/echo", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("this body is too long"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("short"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDAndSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), SecurityHeaders(), Timeout(time.Second))
	r.GET("/ping", func(c *gin.Context) {
		_, hasDeadline := c.Request.Context().Deadline()
		assert.True(t, hasDeadline)
		c.Status(http.StatusOK)
	})

	w := perform(r, http.MethodGet, "/ping", http.Header{"X-Request-Id": {"req-123"}})
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = perform(r, http.MethodGet, "/ping", nil)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestFlowControlRejectsOverThreshold(t *testing.T) {
	cfg := testutil.Config()
	cfg.Flow.Enabled = true
	cfg.Flow.CheckoutQPS = 1
	cfg.Flow.ResourceName = "checkout-flow-test"
	require.NoError(t, InitFlowControl(cfg))

	r := gin.New()
	r.POST("/checkout", FlowControl(cfg.Flow.ResourceName), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, perform(r, http.MethodPost, "/checkout", nil).Code)
	}

	assert.Equal(t, http.StatusCreated, codes[0])
	assert.Contains(t, codes[1:], http.StatusTooManyRequests)
}
