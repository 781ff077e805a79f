package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/insectos/insectos-go/internal/observation"
)

// initPhotoRoutes registers the photo management routes.
func (c *Controller) initPhotoRoutes() {
	c.Group.GET("/photos/observation/:id", c.ListObservationPhotos)
	c.Group.POST("/photos", c.AddPhoto)
	c.Group.PUT("/photos/:id", c.UpdatePhoto)
	c.Group.DELETE("/photos/:id", c.DeletePhoto)
}

// ListObservationPhotos handles GET /api/v1/photos/observation/:id
func (c *Controller) ListObservationPhotos(ctx echo.Context) error {
	photos, err := c.DS.GetObservationPhotos(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to list photos")
	}

	external := make([]map[string]any, 0, len(photos))
	for _, photo := range photos {
		external = append(external, observation.PhotoToExternal(photo))
	}
	return ctx.JSON(http.StatusOK, external)
}

// AddPhoto handles POST /api/v1/photos
func (c *Controller) AddPhoto(ctx echo.Context) error {
	var payload map[string]any
	if err := ctx.Bind(&payload); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	observationID, _ := payload["observation_id"].(string)
	if observationID == "" {
		return c.HandleError(ctx, nil, "Missing required field: observation_id", http.StatusBadRequest)
	}
	if url, _ := payload["photo_url"].(string); url == "" {
		return c.HandleError(ctx, nil, "Missing required field: photo_url", http.StatusBadRequest)
	}

	stored, err := c.DS.AddPhoto(ctx.Request().Context(), observationID, observation.PhotoToStorage(payload))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to add photo")
	}
	return ctx.JSON(http.StatusCreated, observation.PhotoToExternal(stored))
}

// UpdatePhoto handles PUT /api/v1/photos/:id
func (c *Controller) UpdatePhoto(ctx echo.Context) error {
	var payload map[string]any
	if err := ctx.Bind(&payload); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	stored, err := c.DS.UpdatePhoto(ctx.Request().Context(), ctx.Param("id"), observation.PhotoToStorage(payload))
	if err != nil {
		return c.HandleServiceError(ctx, err, "Failed to update photo")
	}
	return ctx.JSON(http.StatusOK, observation.PhotoToExternal(stored))
}

// DeletePhoto handles DELETE /api/v1/photos/:id
func (c *Controller) DeletePhoto(ctx echo.Context) error {
	if err := c.DS.DeletePhoto(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return c.HandleServiceError(ctx, err, "Failed to delete photo")
	}
	return ctx.NoContent(http.StatusNoContent)
}
