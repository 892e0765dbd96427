package middleware

import (
  "github.com/gin-gonic/gin"

  "github.com/danlsims/AIChatbot/internal/errordata"
)

// AttachErrorData seeds every request context with an ErrorData slot so the
// layers below can record a degradation notice for the handler to surface.
func AttachErrorData() gin.HandlerFunc {
  return func(c *gin.Context) {
    ctx := errordata.WithErrorData(c.Request.Context())
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}
