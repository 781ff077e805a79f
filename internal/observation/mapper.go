// Package observation translates observation records between the wire shape
// (english field names, separate latitude/longitude) and the storage shape
// (spanish column names, a single WKT location point). The translation is
// driven by a static name table; keys absent from the table are copied
// through unchanged so fields added upstream survive a round trip.
package observation

import (
	"encoding/json"
	"strconv"

	"github.com/insectos/insectos-go/internal/errors"
	"github.com/insectos/insectos-go/internal/geo"
	"github.com/insectos/insectos-go/internal/logging"
)

// col is a convenience for building the name tables, nil targets mark keys
// that are handled outside the generic rename pass.
func col(name string) *string { return &name }

// fieldToStorage maps wire field names to storage column names. A nil target
// means the key is consumed by dedicated handling: coordinates fold into the
// ubicacion point and photo lists are mapped element-wise.
var fieldToStorage = map[string]*string{
	// observation fields
	"user_id":          col("user_id"),
	"inaturalist_id":   col("inaturalist_id"),
	"scientific_name":  col("nombre_cientifico"),
	"common_name":      col("nombre_comun"),
	"observation_date": col("fecha_observacion"),
	"latitude":         nil,
	"longitude":        nil,
	"condition_id":     col("condicion_id"),
	"state_id":         col("estado_id"),
	"stage_id":         col("etapa_id"),
	"sex_id":           col("sexo_id"),
	"description":      col("descripcion"),
	"photos":           nil,
	// photo fields
	"photo_url":      col("url_foto"),
	"order":          col("orden"),
	"observation_id": col("observacion_id"),
}

// fieldToExternal maps storage column names back to wire field names.
var fieldToExternal = map[string]*string{
	// observation fields
	"user_id":           col("user_id"),
	"inaturalist_id":    col("inaturalist_id"),
	"nombre_cientifico": col("scientific_name"),
	"nombre_comun":      col("common_name"),
	"fecha_observacion": col("observation_date"),
	"ubicacion":         nil,
	"condicion_id":      col("condition_id"),
	"estado_id":         col("state_id"),
	"etapa_id":          col("stage_id"),
	"sexo_id":           col("sex_id"),
	"descripcion":       col("description"),
	"created_at":        col("created_at"),
	"observacion_fotos": nil,
	// photo fields
	"url_foto":       col("photo_url"),
	"orden":          col("order"),
	"observacion_id": col("observation_id"),
}

// renamePass applies the generic table rules: rename mapped keys, drop keys
// with a nil target, copy unmapped keys through under their original name.
func renamePass(record map[string]any, table map[string]*string) map[string]any {
	result := make(map[string]any, len(record))
	for key, value := range record {
		target, mapped := table[key]
		switch {
		case mapped && target != nil:
			result[*target] = value
		case mapped:
			// consumed by dedicated handling
		default:
			result[key] = value
		}
	}
	return result
}

// ToStorage converts a wire shaped record to the storage shape. When both
// coordinate fields are present they are folded into a single WKT point under
// ubicacion. Non-numeric coordinates are a validation failure, the caller is
// expected to skip the write rather than persist partial data.
func ToStorage(record map[string]any) (map[string]any, error) {
	result := renamePass(record, fieldToStorage)

	if photos, ok := photoList(record["photos"]); ok {
		mapped := make([]map[string]any, 0, len(photos))
		for _, photo := range photos {
			mapped = append(mapped, PhotoToStorage(photo))
		}
		result["observacion_fotos"] = mapped
	}

	latRaw, hasLat := record["latitude"]
	lngRaw, hasLng := record["longitude"]
	if hasLat && hasLng {
		lat, err := parseCoordinate(latRaw)
		if err != nil {
			return nil, coordinateError("latitude", latRaw)
		}
		lng, err := parseCoordinate(lngRaw)
		if err != nil {
			return nil, coordinateError("longitude", lngRaw)
		}
		result["ubicacion"] = geo.EncodePoint(lat, lng)
	}

	return result, nil
}

// ToExternal converts a storage shaped record to the wire shape. A stored
// location is decoded into latitude/longitude; when decoding fails both are
// set to 0.0 and a warning is logged, listing endpoints must always return a
// well-formed coordinate pair even under malformed legacy data.
func ToExternal(record map[string]any) map[string]any {
	result := renamePass(record, fieldToExternal)

	if photos, ok := photoList(record["observacion_fotos"]); ok {
		mapped := make([]map[string]any, 0, len(photos))
		for _, photo := range photos {
			mapped = append(mapped, PhotoToExternal(photo))
		}
		result["photos"] = mapped
	}

	// An absent or undecodable location still yields a coordinate pair.
	lat, lng := 0.0, 0.0
	if location, ok := record["ubicacion"]; ok && location != nil {
		decodedLat, decodedLng, err := geo.DecodePoint(location)
		if err != nil {
			logging.ForService("observation").Warn("failed to decode stored location, defaulting coordinates",
				"error", err,
				"observation_id", record["id"])
		} else {
			lat, lng = decodedLat, decodedLng
		}
	}
	result["latitude"] = lat
	result["longitude"] = lng

	return result
}

// PhotoToStorage converts a wire shaped photo record to the storage shape.
func PhotoToStorage(record map[string]any) map[string]any {
	return renamePass(record, fieldToStorage)
}

// PhotoToExternal converts a storage shaped photo record to the wire shape.
func PhotoToExternal(record map[string]any) map[string]any {
	return renamePass(record, fieldToExternal)
}

// photoList normalizes the two slice shapes a photo collection may arrive in.
func photoList(v any) ([]map[string]any, bool) {
	switch photos := v.(type) {
	case []map[string]any:
		return photos, true
	case []any:
		result := make([]map[string]any, 0, len(photos))
		for _, p := range photos {
			m, ok := p.(map[string]any)
			if !ok {
				return nil, false
			}
			result = append(result, m)
		}
		return result, true
	default:
		return nil, false
	}
}

func parseCoordinate(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, errors.Newf("not a number: %T", v).Build()
	}
}

func coordinateError(field string, value any) *errors.EnhancedError {
	return errors.Newf("invalid %s value %v", field, value).
		Category(errors.CategoryValidation).
		Component("observation").
		Context("field", field).
		Build()
}
