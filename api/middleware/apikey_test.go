package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/customeros/mailbackup/internal/utils"
)

func newRouter(validKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(APIKeyConfig{ValidAPIKey: validKey}))
	r.GET("/accounts/:id", CustomContextMiddleware("test"), func(c *gin.Context) {
		c.String(http.StatusOK, utils.GetAccountIDFromContext(c.Request.Context()))
	})
	return r
}

func request(r *gin.Engine, key string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/accounts/eacc_1", nil)
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyMiddleware(t *testing.T) {
	r := newRouter("secret")

	assert.Equal(t, http.StatusUnauthorized, request(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "wrong").Code)

	w := request(r, " secret ")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "eacc_1", w.Body.String())
}

func TestAPIKeyMiddleware_UnconfiguredKeyRejectsAll(t *testing.T) {
	r := newRouter("")

	assert.Equal(t, http.StatusUnauthorized, request(r, "anything").Code)
}
