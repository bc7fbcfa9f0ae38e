package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"volunteer-attendance/internal/utils"
)

// SchemaVersioner reports the record store schema version.
type SchemaVersioner interface {
	GetSchemaVersion(ctx context.Context) (int, error)
}

func Health(r *gin.RouterGroup, store SchemaVersioner) {
	r.GET("/health", func(c *gin.Context) {
		msg := c.Query("ping")
		if msg == "" {
			msg = "pong"
		}

		version, err := store.GetSchemaVersion(c.Request.Context())
		if err != nil {
			AbortWithHTTPError(c, http.StatusServiceUnavailable, err, "Record store is unavailable", "STORE_UNAVAILABLE")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":        msg,
			"version":        utils.GetVersion(),
			"schema_version": version,
		})
	})
}
