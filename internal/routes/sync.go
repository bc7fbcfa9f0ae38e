package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runContext detaches a sync run from the request so that a client
// disconnecting does not abort the run half way.
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// SyncApi registers the sync endpoints.
func SyncApi(r *gin.RouterGroup, syncer Syncer) {
	r.POST("", func(c *gin.Context) {
		res, err := syncer.RunCombinedSync(runContext(c))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	r.POST("/events", func(c *gin.Context) {
		res, err := syncer.RunEventDiscovery(runContext(c))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	r.POST("/attendees", func(c *gin.Context) {
		res, err := syncer.RunAttendeeSync(runContext(c))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	r.GET("/unmatched", func(c *gin.Context) {
		events, err := syncer.ListUnmatchedEvents(c.Request.Context())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unmatchedEvents": events})
	})
}

// Metrics exposes the gatherer in the Prometheus text format.
func Metrics(r *gin.RouterGroup, gatherer prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
