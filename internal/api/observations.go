package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/insectos/insectos-go/internal/observation"
)

// initObservationRoutes registers the observation CRUD routes.
func (c *Controller) initObservationRoutes() {
	c.Group.POST("/observations", c.CreateObservation)
	c.Group.GET("/observations/:id", c.GetObservation)
	c.Group.PUT("/observations/:id", c.UpdateObservation)
	c.Group.DELETE("/observations/:id", c.DeleteObservation)
	c.Group.GET("/observations/user/:id", c.ListUserObservations)
}

// CreateObservation handles POST /api/v1/observations. The request body is
// the wire shape, unknown fields ride along untouched through the mapper.
func (c *Controller) CreateObservation(ctx echo.Context) error {
	var payload map[string]any
	if err := ctx.Bind(&payload); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	userID, _ := payload["user_id"].(string)
	if userID == "" {
		return c.HandleError(ctx, nil, "Missing required field: user_id", http.StatusBadRequest)
	}

	record, err := observation.ToStorage(payload)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid observation payload")
	}

	stored, err := c.DS.CreateObservation(ctx.Request().Context(), record)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to create observation")
	}
	return ctx.JSON(http.StatusCreated, observation.ToExternal(stored))
}

// GetObservation handles GET /api/v1/observations/:id
func (c *Controller) GetObservation(ctx echo.Context) error {
	stored, err := c.DS.GetObservation(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to fetch observation")
	}
	return ctx.JSON(http.StatusOK, observation.ToExternal(stored))
}

// UpdateObservation handles PUT /api/v1/observations/:id. Only fields
// present in the body change.
func (c *Controller) UpdateObservation(ctx echo.Context) error {
	var payload map[string]any
	if err := ctx.Bind(&payload); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	fields, err := observation.ToStorage(payload)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Invalid observation payload")
	}

	stored, err := c.DS.UpdateObservation(ctx.Request().Context(), ctx.Param("id"), fields)
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to update observation")
	}
	return ctx.JSON(http.StatusOK, observation.ToExternal(stored))
}

// DeleteObservation handles DELETE /api/v1/observations/:id
func (c *Controller) DeleteObservation(ctx echo.Context) error {
	if err := c.DS.DeleteObservation(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return c.HandleServiceError(ctx, err, "Failed to delete observation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ListUserObservations handles GET /api/v1/observations/user/:id
func (c *Controller) ListUserObservations(ctx echo.Context) error {
	records, err := c.DS.ListObservationsByUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list observations")
	}

	external := make([]map[string]any, 0, len(records))
	for _, record := range records {
		external = append(external, observation.ToExternal(record))
	}
	return ctx.JSON(http.StatusOK, external)
}
