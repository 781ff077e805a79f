package inaturalist

import "fmt"

// coordPrecision is the number of decimal digits coordinates are rounded to
// before they enter a cache key. Four digits is roughly 11 meters, so near
// duplicate coordinates collapse to the same key, a deliberate
// precision/recall trade-off for the radius search.
const coordPrecision = "%.4f"

// searchKey builds the cache key for a text search. Parameter order is fixed:
// query, locale, page, perPage.
func searchKey(query, locale string, page, perPage int) string {
	return fmt.Sprintf("search:%s:%s:%d:%d", query, locale, page, perPage)
}

// speciesKey builds the cache key for a single taxon lookup.
func speciesKey(taxonID int, locale string) string {
	return fmt.Sprintf("species:%d:%s", taxonID, locale)
}

// nearbyKey builds the cache key for a radius search. Latitude and longitude
// are rounded to coordPrecision, the remaining parameters are included
// verbatim in fixed order: radius, locale, page, perPage.
func nearbyKey(lat, lng float64, radius int, locale string, page, perPage int) string {
	return fmt.Sprintf("nearby:"+coordPrecision+":"+coordPrecision+":%d:%s:%d:%d",
		lat, lng, radius, locale, page, perPage)
}
