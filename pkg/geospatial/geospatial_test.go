package geospatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roughly 100 m x 100 m near 49.8 N
const squareFeature = `{
  "type": "Feature",
  "properties": {"name": "U lesa"},
  "geometry": {
    "type": "Polygon",
    "coordinates": [[[15.0, 49.8], [15.0013935, 49.8], [15.0013935, 49.8008993], [15.0, 49.8008993], [15.0, 49.8]]]
  }
}`

func TestAreaHectaresFeature(t *testing.T) {
	ha, err := AreaHectares(squareFeature)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ha, 0.02)
}

func TestParseGeoJSONBareGeometry(t *testing.T) {
	g, err := ParseGeoJSON([]byte(`{"type":"Polygon","coordinates":[[[15,49.8],[15.01,49.8],[15.01,49.81],[15,49.8]]]}`))
	require.NoError(t, err)
	assert.Equal(t, "Polygon", g.GeoJSONType())
}

func TestParseGeoJSONFeatureCollectionMergesPolygons(t *testing.T) {
	fc := `{"type":"FeatureCollection","features":[` + squareFeature + `,` + squareFeature + `]}`
	g, err := ParseGeoJSON([]byte(fc))
	require.NoError(t, err)
	assert.Equal(t, "MultiPolygon", g.GeoJSONType())
	assert.InDelta(t, 2.0, ConvertToHectares(CalculateArea(g)), 0.04)
}

func TestParseGeoJSONRejectsNonPolygons(t *testing.T) {
	_, err := ValidateGeoJSON(`{"type":"Point","coordinates":[15,49.8]}`)
	assert.Error(t, err)

	_, err = ValidateGeoJSON(`not json`)
	assert.Error(t, err)
}

func TestCalculateCentroid(t *testing.T) {
	g, err := ValidateGeoJSON(squareFeature)
	require.NoError(t, err)
	c := CalculateCentroid(g)
	assert.InDelta(t, 15.0007, c.Lon(), 1e-4)
	assert.InDelta(t, 49.8004, c.Lat(), 1e-4)
}
