package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 200
	defaultRadius  = 10
)

// initInsectRoutes registers the upstream taxonomy lookups.
func (c *Controller) initInsectRoutes() {
	c.Group.GET("/insects/search", c.SearchInsects)
	c.Group.GET("/insects/nearby", c.NearbyInsects)
	c.Group.GET("/insects/:id", c.GetInsect)
}

// SearchInsects handles GET /api/v1/insects/search
func (c *Controller) SearchInsects(ctx echo.Context) error {
	query := ctx.QueryParam("q")
	if query == "" {
		return c.HandleError(ctx, nil, "Missing required query parameter: q", http.StatusBadRequest)
	}

	page := intQueryParam(ctx, "page", defaultPage)
	perPage := intQueryParam(ctx, "per_page", defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	result, err := c.INat.Search(ctx.Request().Context(), query, ctx.QueryParam("locale"), page, perPage)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to search species")
	}
	return ctx.JSON(http.StatusOK, result)
}

// GetInsect handles GET /api/v1/insects/:id
func (c *Controller) GetInsect(ctx echo.Context) error {
	taxonID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid taxon ID", http.StatusBadRequest)
	}

	result, err := c.INat.SpeciesInfo(ctx.Request().Context(), taxonID, ctx.QueryParam("locale"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to fetch species details")
	}
	return ctx.JSON(http.StatusOK, result)
}

// NearbyInsects handles GET /api/v1/insects/nearby
func (c *Controller) NearbyInsects(ctx echo.Context) error {
	lat, err := strconv.ParseFloat(ctx.QueryParam("lat"), 64)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid or missing query parameter: lat", http.StatusBadRequest)
	}
	lng, err := strconv.ParseFloat(ctx.QueryParam("lng"), 64)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid or missing query parameter: lng", http.StatusBadRequest)
	}

	radius := intQueryParam(ctx, "radius", defaultRadius)
	page := intQueryParam(ctx, "page", defaultPage)
	perPage := intQueryParam(ctx, "per_page", defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	result, err := c.INat.ObservationsByLocation(ctx.Request().Context(),
		lat, lng, radius, ctx.QueryParam("locale"), page, perPage)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to fetch nearby observations")
	}
	return ctx.JSON(http.StatusOK, result)
}

// intQueryParam parses an integer query parameter, falling back to the
// default on absence or garbage.
func intQueryParam(ctx echo.Context, name string, defaultValue int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return defaultValue
	}
	return value
}
