package datastore

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/insectos/insectos-go/internal/errors"
	"gorm.io/gorm"
)

// updatableColumns lists the observation columns a partial update may touch.
// Anything else in the update map is silently dropped, the identifier and the
// creation timestamp are immutable.
var updatableColumns = map[string]bool{
	"inaturalist_id":    true,
	"nombre_cientifico": true,
	"nombre_comun":      true,
	"fecha_observacion": true,
	"ubicacion":         true,
	"condicion_id":      true,
	"estado_id":         true,
	"etapa_id":          true,
	"sexo_id":           true,
	"descripcion":       true,
}

// catalogTables maps the public catalog names to their storage tables.
var catalogTables = map[string]string{
	"conditions": "condicion_observacion",
	"states":     "estado_insecto",
	"stages":     "etapa_insecto",
	"sexes":      "sexo_insecto",
}

// CreateObservation stores a new observation together with its photos. The
// record is in storage shape. Photos without an explicit orden get 1-based
// positions in list order. The stored observation is re-read so the caller
// sees the canonical row, if the re-read fails the response is composed from
// the data just written.
func (ds *DataStore) CreateObservation(ctx context.Context, record map[string]any) (map[string]any, error) {
	ds.countOp("create_observation")

	obs, photos, err := observationFromRecord(record)
	if err != nil {
		ds.countErr("create_observation")
		return nil, err
	}
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now().UTC()
	}

	if err := ds.DB.WithContext(ctx).Create(&obs).Error; err != nil {
		ds.countErr("create_observation")
		return nil, dbError(err, "create_observation")
	}

	// A failed photo insert does not undo the observation, the photo is
	// logged and skipped.
	stored := make([]ObservationPhoto, 0, len(photos))
	for i := range photos {
		photos[i].ObservacionID = obs.ID
		if photos[i].ID == "" {
			photos[i].ID = uuid.NewString()
		}
		if photos[i].Orden == 0 {
			photos[i].Orden = i + 1
		}
		if photos[i].CreatedAt.IsZero() {
			photos[i].CreatedAt = obs.CreatedAt
		}
		if err := ds.DB.WithContext(ctx).Create(&photos[i]).Error; err != nil {
			ds.countErr("create_observation_photo")
			logger.Warn("Failed to store observation photo",
				"observation_id", obs.ID,
				"url", photos[i].URLFoto,
				"error", err)
			continue
		}
		stored = append(stored, photos[i])
	}

	created, err := ds.GetObservation(ctx, obs.ID)
	if err != nil {
		logger.Warn("Re-read after create failed, composing response from written data",
			"observation_id", obs.ID,
			"error", err)
		obs.Fotos = stored
		return observationToRecord(&obs), nil
	}
	return created, nil
}

// GetObservation retrieves a single observation with its photos ordered by
// orden. A missing id yields a not-found error.
func (ds *DataStore) GetObservation(ctx context.Context, id string) (map[string]any, error) {
	ds.countOp("get_observation")

	var obs Observation
	err := ds.DB.WithContext(ctx).
		Preload("Fotos", func(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }).
		Where("id = ?", id).
		First(&obs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("observation", id)
		}
		ds.countErr("get_observation")
		return nil, dbError(err, "get_observation")
	}
	return observationToRecord(&obs), nil
}

// ListObservationsByUser retrieves all observations recorded by a user,
// newest first. No observations is an empty list, not an error.
func (ds *DataStore) ListObservationsByUser(ctx context.Context, userID string) ([]map[string]any, error) {
	ds.countOp("list_observations")

	var observations []Observation
	err := ds.DB.WithContext(ctx).
		Preload("Fotos", func(db *gorm.DB) *gorm.DB { return db.Order("orden ASC") }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&observations).Error
	if err != nil {
		ds.countErr("list_observations")
		return nil, dbError(err, "list_observations")
	}

	records := make([]map[string]any, 0, len(observations))
	for i := range observations {
		records = append(records, observationToRecord(&observations[i]))
	}
	return records, nil
}

// UpdateObservation applies a partial update to an observation. Only columns
// present in the fields map change, unknown and immutable columns are
// dropped. The updated row is returned.
func (ds *DataStore) UpdateObservation(ctx context.Context, id string, fields map[string]any) (map[string]any, error) {
	ds.countOp("update_observation")

	var existing Observation
	err := ds.DB.WithContext(ctx).Select("id").Where("id = ?", id).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("observation", id)
		}
		ds.countErr("update_observation")
		return nil, dbError(err, "update_observation")
	}

	updates := make(map[string]any, len(fields))
	for column, value := range fields {
		if updatableColumns[column] {
			updates[column] = value
		}
	}

	if len(updates) > 0 {
		err = ds.DB.WithContext(ctx).
			Model(&Observation{}).
			Where("id = ?", id).
			Updates(updates).Error
		if err != nil {
			ds.countErr("update_observation")
			return nil, dbError(err, "update_observation")
		}
	}

	return ds.GetObservation(ctx, id)
}

// DeleteObservation removes an observation and its photos. Photos go first so
// no orphan rows survive a failure between the two deletes.
func (ds *DataStore) DeleteObservation(ctx context.Context, id string) error {
	ds.countOp("delete_observation")

	var existing Observation
	err := ds.DB.WithContext(ctx).Select("id").Where("id = ?", id).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("observation", id)
		}
		ds.countErr("delete_observation")
		return dbError(err, "delete_observation")
	}

	if err := ds.DB.WithContext(ctx).Where("observacion_id = ?", id).Delete(&ObservationPhoto{}).Error; err != nil {
		ds.countErr("delete_observation")
		return dbError(err, "delete_observation_photos")
	}
	if err := ds.DB.WithContext(ctx).Where("id = ?", id).Delete(&Observation{}).Error; err != nil {
		ds.countErr("delete_observation")
		return dbError(err, "delete_observation")
	}
	return nil
}

// AddPhoto attaches a photo to an existing observation. Without an explicit
// orden the photo is appended after the current highest position.
func (ds *DataStore) AddPhoto(ctx context.Context, observationID string, record map[string]any) (map[string]any, error) {
	ds.countOp("add_photo")

	var existing Observation
	err := ds.DB.WithContext(ctx).Select("id").Where("id = ?", observationID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("observation", observationID)
		}
		ds.countErr("add_photo")
		return nil, dbError(err, "add_photo")
	}

	photo := photoFromRecord(record)
	photo.ObservacionID = observationID
	if photo.ID == "" {
		photo.ID = uuid.NewString()
	}
	if photo.CreatedAt.IsZero() {
		photo.CreatedAt = time.Now().UTC()
	}
	if photo.Orden == 0 {
		var maxOrden int
		row := ds.DB.WithContext(ctx).
			Model(&ObservationPhoto{}).
			Where("observacion_id = ?", observationID).
			Select("COALESCE(MAX(orden), 0)").
			Row()
		if err := row.Scan(&maxOrden); err != nil {
			ds.countErr("add_photo")
			return nil, dbError(err, "add_photo")
		}
		photo.Orden = maxOrden + 1
	}

	if err := ds.DB.WithContext(ctx).Create(&photo).Error; err != nil {
		ds.countErr("add_photo")
		return nil, dbError(err, "add_photo")
	}
	return photoToRecord(&photo), nil
}

// updatablePhotoColumns lists the photo columns a partial update may touch.
var updatablePhotoColumns = map[string]bool{
	"url_foto":    true,
	"orden":       true,
	"descripcion": true,
}

// UpdatePhoto applies a partial update to a photo and returns the updated row.
func (ds *DataStore) UpdatePhoto(ctx context.Context, photoID string, fields map[string]any) (map[string]any, error) {
	ds.countOp("update_photo")

	var photo ObservationPhoto
	err := ds.DB.WithContext(ctx).Where("id = ?", photoID).First(&photo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("photo", photoID)
		}
		ds.countErr("update_photo")
		return nil, dbError(err, "update_photo")
	}

	updates := make(map[string]any, len(fields))
	for column, value := range fields {
		if updatablePhotoColumns[column] {
			updates[column] = value
		}
	}

	if len(updates) > 0 {
		err = ds.DB.WithContext(ctx).
			Model(&ObservationPhoto{}).
			Where("id = ?", photoID).
			Updates(updates).Error
		if err != nil {
			ds.countErr("update_photo")
			return nil, dbError(err, "update_photo")
		}
		if err := ds.DB.WithContext(ctx).Where("id = ?", photoID).First(&photo).Error; err != nil {
			ds.countErr("update_photo")
			return nil, dbError(err, "update_photo")
		}
	}

	return photoToRecord(&photo), nil
}

// GetObservationPhotos retrieves the photos of an observation ordered by
// orden.
func (ds *DataStore) GetObservationPhotos(ctx context.Context, observationID string) ([]map[string]any, error) {
	ds.countOp("list_photos")

	var photos []ObservationPhoto
	err := ds.DB.WithContext(ctx).
		Where("observacion_id = ?", observationID).
		Order("orden ASC").
		Find(&photos).Error
	if err != nil {
		ds.countErr("list_photos")
		return nil, dbError(err, "list_photos")
	}

	records := make([]map[string]any, 0, len(photos))
	for i := range photos {
		records = append(records, photoToRecord(&photos[i]))
	}
	return records, nil
}

// DeletePhoto removes a single photo by its id.
func (ds *DataStore) DeletePhoto(ctx context.Context, photoID string) error {
	ds.countOp("delete_photo")

	result := ds.DB.WithContext(ctx).Where("id = ?", photoID).Delete(&ObservationPhoto{})
	if result.Error != nil {
		ds.countErr("delete_photo")
		return dbError(result.Error, "delete_photo")
	}
	if result.RowsAffected == 0 {
		return notFoundError("photo", photoID)
	}
	return nil
}

// GetCatalog retrieves the rows of a reference catalog by its public name.
func (ds *DataStore) GetCatalog(ctx context.Context, name string) ([]map[string]any, error) {
	ds.countOp("get_catalog")

	table, ok := catalogTables[name]
	if !ok {
		return nil, errors.Newf("unknown catalog %q", name).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("catalog", name).
			Build()
	}

	type row struct {
		ID     int    `gorm:"column:id"`
		Nombre string `gorm:"column:nombre"`
	}
	var rows []row
	err := ds.DB.WithContext(ctx).Table(table).Order("id ASC").Find(&rows).Error
	if err != nil {
		ds.countErr("get_catalog")
		return nil, dbError(err, "get_catalog")
	}

	// Catalog rows cross the boundary in wire shape, the column name stays
	// internal.
	records := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		records = append(records, map[string]any{"id": r.ID, "name": r.Nombre})
	}
	return records, nil
}

func (ds *DataStore) countOp(operation string) {
	if ds.Metrics != nil {
		ds.Metrics.OperationsTotal.WithLabelValues(operation).Inc()
	}
}

func (ds *DataStore) countErr(operation string) {
	if ds.Metrics != nil {
		ds.Metrics.OperationErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// observationFromRecord builds the model from a storage-shape map. Keys the
// schema does not know about are dropped, the mapper already folded the wire
// shape into storage columns.
func observationFromRecord(record map[string]any) (Observation, []ObservationPhoto, error) {
	var obs Observation

	obs.ID = stringField(record, "id")
	obs.UserID = stringField(record, "user_id")
	obs.NombreCientifico = stringField(record, "nombre_cientifico")
	obs.NombreComun = stringField(record, "nombre_comun")
	obs.FechaObservacion = stringField(record, "fecha_observacion")
	obs.Ubicacion = stringField(record, "ubicacion")
	obs.Descripcion = stringField(record, "descripcion")

	for column, target := range map[string]**int{
		"inaturalist_id": &obs.InaturalistID,
		"condicion_id":   &obs.CondicionID,
		"estado_id":      &obs.EstadoID,
		"etapa_id":       &obs.EtapaID,
		"sexo_id":        &obs.SexoID,
	} {
		value, present := record[column]
		if !present || value == nil {
			continue
		}
		n, ok := intValue(value)
		if !ok {
			return Observation{}, nil, errors.Newf("field %s must be an integer", column).
				Component("datastore").
				Category(errors.CategoryValidation).
				Context("field", column).
				Build()
		}
		*target = &n
	}

	var photos []ObservationPhoto
	if raw, present := record["observacion_fotos"]; present {
		for _, photoRecord := range photoRecords(raw) {
			photos = append(photos, photoFromRecord(photoRecord))
		}
	}

	return obs, photos, nil
}

// observationToRecord converts a model row back to the storage-shape map.
func observationToRecord(obs *Observation) map[string]any {
	record := map[string]any{
		"id":                obs.ID,
		"user_id":           obs.UserID,
		"nombre_cientifico": obs.NombreCientifico,
		"nombre_comun":      obs.NombreComun,
		"fecha_observacion": obs.FechaObservacion,
		"descripcion":       obs.Descripcion,
		"created_at":        obs.CreatedAt,
	}
	// An observation without a location carries no ubicacion key, the mapper
	// defaults the coordinate pair on the way out.
	if obs.Ubicacion != "" {
		record["ubicacion"] = obs.Ubicacion
	}
	if obs.InaturalistID != nil {
		record["inaturalist_id"] = *obs.InaturalistID
	}
	if obs.CondicionID != nil {
		record["condicion_id"] = *obs.CondicionID
	}
	if obs.EstadoID != nil {
		record["estado_id"] = *obs.EstadoID
	}
	if obs.EtapaID != nil {
		record["etapa_id"] = *obs.EtapaID
	}
	if obs.SexoID != nil {
		record["sexo_id"] = *obs.SexoID
	}

	photos := make([]map[string]any, 0, len(obs.Fotos))
	for i := range obs.Fotos {
		photos = append(photos, photoToRecord(&obs.Fotos[i]))
	}
	record["observacion_fotos"] = photos

	return record
}

func photoFromRecord(record map[string]any) ObservationPhoto {
	photo := ObservationPhoto{
		ID:            stringField(record, "id"),
		ObservacionID: stringField(record, "observacion_id"),
		URLFoto:       stringField(record, "url_foto"),
		Descripcion:   stringField(record, "descripcion"),
	}
	if n, ok := intValue(record["orden"]); ok {
		photo.Orden = n
	}
	return photo
}

func photoToRecord(photo *ObservationPhoto) map[string]any {
	return map[string]any{
		"id":             photo.ID,
		"observacion_id": photo.ObservacionID,
		"url_foto":       photo.URLFoto,
		"orden":          photo.Orden,
		"descripcion":    photo.Descripcion,
		"created_at":     photo.CreatedAt,
	}
}

// photoRecords normalizes the two list shapes a photo collection may arrive
// in after JSON decoding.
func photoRecords(raw any) []map[string]any {
	switch list := raw.(type) {
	case []map[string]any:
		return list
	case []any:
		records := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				records = append(records, m)
			}
		}
		return records
	default:
		return nil
	}
}

func stringField(record map[string]any, key string) string {
	if s, ok := record[key].(string); ok {
		return s
	}
	return ""
}

func intValue(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		// JSON numbers arrive as float64, fractional values are not
		// silently truncated.
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

func notFoundError(kind, id string) error {
	return errors.Newf("%s %s not found", kind, id).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("id", id).
		Build()
}

func dbError(err error, operation string) error {
	return errors.Newf("database operation failed: %w", err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
