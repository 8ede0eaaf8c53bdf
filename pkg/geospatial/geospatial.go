package geospatial

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrNoArea = errors.New("geometry encloses no area")

// ParseGeoJSON accepts a bare geometry, a Feature or a FeatureCollection
// and returns one polygonal geometry.
func ParseGeoJSON(data []byte) (orb.Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	var g orb.Geometry
	switch head.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON feature: %w", err)
		}
		g = f.Geometry
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON feature collection: %w", err)
		}
		var mp orb.MultiPolygon
		for _, f := range fc.Features {
			switch v := f.Geometry.(type) {
			case orb.Polygon:
				mp = append(mp, v)
			case orb.MultiPolygon:
				mp = append(mp, v...)
			}
		}
		g = mp
	default:
		gj, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON geometry: %w", err)
		}
		g = gj.Geometry()
	}

	if g == nil {
		return nil, errors.New("invalid GeoJSON: no geometry")
	}
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return nil, fmt.Errorf("invalid GeoJSON: %s is not a polygon", g.GeoJSONType())
	}
	return g, nil
}

// ValidateGeoJSON validates a GeoJSON string
func ValidateGeoJSON(geojsonStr string) (orb.Geometry, error) {
	return ParseGeoJSON([]byte(geojsonStr))
}

// CalculateArea returns the geodesic area in square meters of a WGS84 geometry
func CalculateArea(geometry orb.Geometry) float64 {
	return math.Abs(geo.Area(geometry))
}

// CalculateCentroid calculates the centroid of a geometry
func CalculateCentroid(geometry orb.Geometry) orb.Point {
	c, _ := planar.CentroidArea(geometry)
	return c
}

// ConvertToHectares converts square meters to hectares
func ConvertToHectares(sqMeters float64) float64 {
	return sqMeters / 10000
}

// AreaHectares parses GeoJSON and returns its area in hectares
func AreaHectares(geojsonStr string) (float64, error) {
	g, err := ValidateGeoJSON(geojsonStr)
	if err != nil {
		return 0, err
	}
	ha := ConvertToHectares(CalculateArea(g))
	if ha <= 0 {
		return 0, ErrNoArea
	}
	return ha, nil
}
