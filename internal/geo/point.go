// Package geo encodes and decodes the geographic point representation used
// by the observation datastore. Points are stored as well-known-text
// literals, POINT(lng lat), with longitude first per the standard axis order.
package geo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/insectos/insectos-go/internal/errors"
)

// PointXY is implemented by structured point values that expose their
// coordinates through accessors, x being longitude and y latitude. Some
// database drivers return geospatial columns in this form.
type PointXY interface {
	X() float64
	Y() float64
}

// pointShape identifies which of the accepted stored encodings a value uses.
type pointShape int

const (
	shapeUnknown pointShape = iota
	shapeWKT
	shapeXY
	shapeGeoJSON
)

func shapeOf(value any) pointShape {
	switch v := value.(type) {
	case string:
		return shapeWKT
	case PointXY:
		return shapeXY
	case map[string]any:
		if _, ok := v["coordinates"]; ok {
			return shapeGeoJSON
		}
	}
	return shapeUnknown
}

// EncodePoint produces the WKT point literal for a coordinate pair.
func EncodePoint(lat, lng float64) string {
	return fmt.Sprintf("POINT(%v %v)", lng, lat)
}

// DecodePoint extracts a (lat, lng) pair from a stored point value. It
// accepts the WKT string form, a structured point with X/Y accessors and a
// GeoJSON-style map with a coordinates array. Decode failure is returned as
// an error, callers on read paths are expected to default the coordinates
// rather than propagate it.
func DecodePoint(value any) (lat, lng float64, err error) {
	switch shapeOf(value) {
	case shapeWKT:
		return decodeWKT(value.(string))
	case shapeXY:
		p := value.(PointXY)
		return p.Y(), p.X(), nil
	case shapeGeoJSON:
		return decodeGeoJSON(value.(map[string]any))
	default:
		return 0, 0, errors.Newf("unsupported point value of type %T", value).
			Category(errors.CategoryGeoDecode).
			Component("geo").
			Build()
	}
}

// decodeWKT parses "POINT(lng lat)", tolerating case and extra whitespace.
func decodeWKT(s string) (lat, lng float64, err error) {
	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "POINT") {
		return 0, 0, decodeError(s, "missing POINT prefix")
	}

	open := strings.Index(trimmed, "(")
	closing := strings.LastIndex(trimmed, ")")
	if open < 0 || closing < open {
		return 0, 0, decodeError(s, "malformed parentheses")
	}

	coords := strings.Fields(trimmed[open+1 : closing])
	if len(coords) != 2 {
		return 0, 0, decodeError(s, "expected two coordinates")
	}

	lng, err = strconv.ParseFloat(coords[0], 64)
	if err != nil {
		return 0, 0, decodeError(s, "longitude is not numeric")
	}
	lat, err = strconv.ParseFloat(coords[1], 64)
	if err != nil {
		return 0, 0, decodeError(s, "latitude is not numeric")
	}
	return lat, lng, nil
}

// decodeGeoJSON parses {"coordinates": [lng, lat]}. Coordinate values may
// arrive as float64 or json.Number depending on how the row was decoded.
func decodeGeoJSON(m map[string]any) (lat, lng float64, err error) {
	raw, ok := m["coordinates"].([]any)
	if !ok || len(raw) != 2 {
		return 0, 0, decodeError(m, "coordinates is not a two element array")
	}

	lng, err = toFloat(raw[0])
	if err != nil {
		return 0, 0, decodeError(m, "longitude is not numeric")
	}
	lat, err = toFloat(raw[1])
	if err != nil {
		return 0, 0, decodeError(m, "latitude is not numeric")
	}
	return lat, lng, nil
}

func toFloat(v any) (float64, error) {
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
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func decodeError(value any, reason string) *errors.EnhancedError {
	return errors.Newf("failed to decode stored point: %s", reason).
		Category(errors.CategoryGeoDecode).
		Component("geo").
		Context("value_type", fmt.Sprintf("%T", value)).
		Build()
}
