package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

type errorStruct struct {
	Succeed bool     `json:"success"`
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Code    []string `json:"code,omitempty"`
}

// ErrorHandler turns errors attached to the gin context into a JSON error
// body. The last error decides the status, stop codes are collected from all.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := GetErrorStatus(err)

		level := slog.LevelWarn
		if status >= 500 {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "Request failed",
			"error", err,
			"status", status,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)

		if c.Writer.Written() {
			return
		}

		var codes []string
		for _, e := range c.Errors {
			codes = append(codes, GetErrorInfo(e.Err).StopCodes...)
		}

		c.AbortWithStatusJSON(status, errorStruct{
			Succeed: false,
			Status:  "error",
			Message: GetErrorInfo(err).Message,
			Code:    codes,
		})
	}
}

// AbortWithError adds err to the gin error chain for ErrorHandler.
func AbortWithError(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}

func AbortWithHTTPError(c *gin.Context, statusCode int, err error, message string, stopCodes ...string) {
	AbortWithError(c, NewHTTPError(statusCode, err, message, stopCodes...))
}
