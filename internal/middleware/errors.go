package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/powerpulse/internal/domain/dto"
	"github.com/guttosm/powerpulse/internal/logger"
)

// ErrorHandler converts errors attached to the Gin context by handlers into a
// single standardized 500 response. Handlers that already wrote a response are
// left alone.
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}
	err := c.Errors.Last().Err
	logger.L().Error().Err(err).Str("path", c.Request.URL.Path).Msg("handler error")
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("Internal server error", err))
}

// AbortWithError writes a standardized error response with the given status
// and stops the handler chain.
func AbortWithError(c *gin.Context, status int, message string, err error) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(message, err))
}
