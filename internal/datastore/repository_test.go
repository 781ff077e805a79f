package datastore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/insectos/insectos-go/internal/errors"
)

func newTestStore(t *testing.T) *DataStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, performAutoMigration(db, false, "SQLite"))
	return &DataStore{DB: db}
}

func TestCreateObservation_GeneratesIDAndOrdersPhotos(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	created, err := ds.CreateObservation(ctx, map[string]any{
		"user_id":           "u-1",
		"nombre_cientifico": "Danaus plexippus",
		"ubicacion":         "POINT(-79.5199 8.9824)",
		"observacion_fotos": []map[string]any{
			{"url_foto": "https://img/1.jpg"},
			{"url_foto": "https://img/2.jpg"},
			{"url_foto": "https://img/3.jpg", "orden": 9},
		},
	})
	require.NoError(t, err)

	id, ok := created["id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, id)
	assert.Equal(t, "Danaus plexippus", created["nombre_cientifico"])

	photos, ok := created["observacion_fotos"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, photos, 3)

	// Photos without an explicit position get 1-based positions in list
	// order, an explicit position is kept.
	assert.Equal(t, 1, photos[0]["orden"])
	assert.Equal(t, 2, photos[1]["orden"])
	assert.Equal(t, "https://img/3.jpg", photos[2]["url_foto"])
	assert.Equal(t, 9, photos[2]["orden"])
}

func TestCreateObservation_NonIntegerCatalogID(t *testing.T) {
	ds := newTestStore(t)

	_, err := ds.CreateObservation(context.Background(), map[string]any{
		"user_id":      "u-1",
		"condicion_id": "sunny",
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestCreateObservation_FractionalCatalogID(t *testing.T) {
	ds := newTestStore(t)

	// JSON numbers decode as float64, a fractional id is rejected instead
	// of being truncated.
	_, err := ds.CreateObservation(context.Background(), map[string]any{
		"user_id":      "u-1",
		"condicion_id": 2.7,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestCreateObservation_WholeFloatCatalogID(t *testing.T) {
	ds := newTestStore(t)

	created, err := ds.CreateObservation(context.Background(), map[string]any{
		"user_id":      "u-1",
		"condicion_id": float64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created["condicion_id"])
}

func TestGetObservation_NotFound(t *testing.T) {
	ds := newTestStore(t)

	_, err := ds.GetObservation(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListObservationsByUser(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Atta cephalotes", "Danaus plexippus"} {
		_, err := ds.CreateObservation(ctx, map[string]any{
			"user_id":           "u-1",
			"nombre_cientifico": name,
		})
		require.NoError(t, err)
	}
	_, err := ds.CreateObservation(ctx, map[string]any{
		"user_id":           "u-2",
		"nombre_cientifico": "Morpho helenor",
	})
	require.NoError(t, err)

	records, err := ds.ListObservationsByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, "u-1", record["user_id"])
	}
}

func TestListObservationsByUser_EmptyIsNotAnError(t *testing.T) {
	ds := newTestStore(t)

	records, err := ds.ListObservationsByUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUpdateObservation_PartialUpdate(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	created, err := ds.CreateObservation(ctx, map[string]any{
		"user_id":           "u-1",
		"nombre_cientifico": "Danaus plexippus",
		"descripcion":       "original",
	})
	require.NoError(t, err)
	id := created["id"].(string)

	updated, err := ds.UpdateObservation(ctx, id, map[string]any{
		"descripcion": "editada",
		"estado_id":   2,
		"id":          "hijack-attempt",
		"user_id":     "other-user",
	})
	require.NoError(t, err)

	// Only updatable columns change, the identifier and owner are immutable.
	assert.Equal(t, id, updated["id"])
	assert.Equal(t, "u-1", updated["user_id"])
	assert.Equal(t, "editada", updated["descripcion"])
	assert.Equal(t, 2, updated["estado_id"])
	assert.Equal(t, "Danaus plexippus", updated["nombre_cientifico"])
}

func TestUpdateObservation_NotFound(t *testing.T) {
	ds := newTestStore(t)

	_, err := ds.UpdateObservation(context.Background(), "missing", map[string]any{
		"descripcion": "x",
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteObservation_CascadesToPhotos(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	created, err := ds.CreateObservation(ctx, map[string]any{
		"user_id": "u-1",
		"observacion_fotos": []map[string]any{
			{"url_foto": "https://img/1.jpg"},
		},
	})
	require.NoError(t, err)
	id := created["id"].(string)

	require.NoError(t, ds.DeleteObservation(ctx, id))

	_, err = ds.GetObservation(ctx, id)
	assert.True(t, errors.IsNotFound(err))

	photos, err := ds.GetObservationPhotos(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, photos)
}

func TestDeleteObservation_NotFound(t *testing.T) {
	ds := newTestStore(t)

	err := ds.DeleteObservation(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestAddPhoto_AppendsAfterHighestPosition(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	created, err := ds.CreateObservation(ctx, map[string]any{
		"user_id": "u-1",
		"observacion_fotos": []map[string]any{
			{"url_foto": "https://img/1.jpg"},
			{"url_foto": "https://img/2.jpg"},
		},
	})
	require.NoError(t, err)
	id := created["id"].(string)

	photo, err := ds.AddPhoto(ctx, id, map[string]any{
		"url_foto": "https://img/3.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, photo["orden"])
	assert.Equal(t, id, photo["observacion_id"])
}

func TestAddPhoto_ObservationMissing(t *testing.T) {
	ds := newTestStore(t)

	_, err := ds.AddPhoto(context.Background(), "missing", map[string]any{
		"url_foto": "https://img/1.jpg",
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeletePhoto(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	created, err := ds.CreateObservation(ctx, map[string]any{
		"user_id": "u-1",
		"observacion_fotos": []map[string]any{
			{"url_foto": "https://img/1.jpg"},
		},
	})
	require.NoError(t, err)
	id := created["id"].(string)

	photos, err := ds.GetObservationPhotos(ctx, id)
	require.NoError(t, err)
	require.Len(t, photos, 1)

	photoID := photos[0]["id"].(string)
	require.NoError(t, ds.DeletePhoto(ctx, photoID))

	err = ds.DeletePhoto(ctx, photoID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdatePhoto_PartialUpdate(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	created, err := ds.CreateObservation(ctx, map[string]any{
		"user_id": "u-1",
		"observacion_fotos": []map[string]any{
			{"url_foto": "https://img/1.jpg", "descripcion": "original"},
		},
	})
	require.NoError(t, err)
	id := created["id"].(string)

	photos, err := ds.GetObservationPhotos(ctx, id)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	photoID := photos[0]["id"].(string)

	updated, err := ds.UpdatePhoto(ctx, photoID, map[string]any{
		"descripcion":    "editada",
		"observacion_id": "hijack-attempt",
	})
	require.NoError(t, err)
	assert.Equal(t, "editada", updated["descripcion"])
	assert.Equal(t, id, updated["observacion_id"])
	assert.Equal(t, "https://img/1.jpg", updated["url_foto"])
}

func TestUpdatePhoto_NotFound(t *testing.T) {
	ds := newTestStore(t)

	_, err := ds.UpdatePhoto(context.Background(), "missing", map[string]any{
		"descripcion": "x",
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGetCatalog(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, ds.DB.Create(&Condition{ID: 1, Nombre: "Soleado"}).Error)
	require.NoError(t, ds.DB.Create(&Condition{ID: 2, Nombre: "Nublado"}).Error)

	rows, err := ds.GetCatalog(ctx, "conditions")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0]["id"])
	assert.Equal(t, "Soleado", rows[0]["name"])
	assert.NotContains(t, rows[0], "nombre")
}

func TestGetCatalog_UnknownName(t *testing.T) {
	ds := newTestStore(t)

	_, err := ds.GetCatalog(context.Background(), "colors")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
