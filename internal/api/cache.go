package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// initCacheRoutes registers the upstream cache administration routes.
func (c *Controller) initCacheRoutes() {
	c.Group.GET("/cache/stats", c.CacheStats)
	c.Group.DELETE("/cache/clear", c.ClearCache)
}

// CacheStats handles GET /api/v1/cache/stats
func (c *Controller) CacheStats(ctx echo.Context) error {
	items, ttl := c.INat.CacheStats()
	metrics := c.INat.Metrics()

	return ctx.JSON(http.StatusOK, map[string]any{
		"total_items": items,
		"ttl_seconds": ttl.Seconds(),
		"metrics":     metrics,
	})
}

// ClearCache handles DELETE /api/v1/cache/clear
func (c *Controller) ClearCache(ctx echo.Context) error {
	c.INat.ClearCache()
	return ctx.JSON(http.StatusOK, map[string]any{
		"status": "cleared",
	})
}
