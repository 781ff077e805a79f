package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"
)

// initCatalogRoutes registers the reference catalog routes.
func (c *Controller) initCatalogRoutes() {
	c.Group.GET("/catalogs/:name", c.GetCatalog)
}

// GetCatalog handles GET /api/v1/catalogs/:name. Catalog rows change rarely
// so responses are held in a handler-level cache.
func (c *Controller) GetCatalog(ctx echo.Context) error {
	name := ctx.Param("name")
	cacheKey := "catalog:" + name

	if cached, found := c.catalogCache.Get(cacheKey); found {
		if rows, ok := cached.([]map[string]any); ok {
			return ctx.JSON(http.StatusOK, rows)
		}
	}

	rows, err := c.DS.GetCatalog(ctx.Request().Context(), name)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to fetch catalog")
	}

	c.catalogCache.Set(cacheKey, rows, gocache.DefaultExpiration)
	return ctx.JSON(http.StatusOK, rows)
}
