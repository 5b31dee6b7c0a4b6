package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/customeros/mailbackup/internal/utils"
)

// CustomContextMiddleware stamps the request context with the app source and, when the
// route has one, the account id.
func CustomContextMiddleware(appSource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := utils.WithCustomContext(c.Request.Context(), &utils.CustomContext{
			AppSource: appSource,
			AccountID: c.Param("id"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
