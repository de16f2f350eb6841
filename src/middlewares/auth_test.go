package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fundi/src/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	headers := []string{"", "Bearer", "Bearer ", "Token abc"}
	for _, header := range headers {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		ctx.Request = httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		if header != "" {
			ctx.Request.Header.Set("Authorization", header)
		}

		AuthMiddleware(ctx)

		assert.True(t, ctx.IsAborted(), "header %q should abort", header)
		assert.Equal(t, 401, w.Code, "header %q", header)
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Set("role", string(types.ROLE_CLIENT))
	RequireAdmin(ctx)
	assert.True(t, ctx.IsAborted())
	assert.Equal(t, 403, w.Code)

	w = httptest.NewRecorder()
	ctx, _ = gin.CreateTestContext(w)
	ctx.Set("role", string(types.ROLE_ADMIN))
	RequireAdmin(ctx)
	assert.False(t, ctx.IsAborted())
}

func TestRequireProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Set("role", string(types.ROLE_CLIENT))
	RequireProvider(ctx)
	assert.True(t, ctx.IsAborted())
	assert.Equal(t, 403, w.Code)

	w = httptest.NewRecorder()
	ctx, _ = gin.CreateTestContext(w)
	ctx.Set("role", string(types.ROLE_PROVIDER))
	RequireProvider(ctx)
	assert.False(t, ctx.IsAborted())
}
