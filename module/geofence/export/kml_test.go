package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandanugg/marah/module/geofence/domain"
)

func TestWriteKML(t *testing.T) {
	center := domain.GeoPoint{Latitude: 34.7593, Longitude: 3.5881}
	fences := []domain.Fence{
		{ID: "home", Center: center, Shape: domain.Circle{RadiusMeters: 100}},
		{ID: "pasture", Center: center, Shape: domain.Rectangle{WidthMeters: 150, HeightMeters: 200, RotationDegrees: 30}},
		{ID: "broken", Center: center},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteKML(&buf, "Marah fences", fences))
	out := buf.String()

	assert.Equal(t, 2, strings.Count(out, "<Placemark>"))
	assert.Contains(t, out, "<name>Marah fences</name>")
	assert.Contains(t, out, "<name>home</name>")
	assert.Contains(t, out, "<name>pasture</name>")
	assert.NotContains(t, out, "broken")
	assert.Contains(t, out, "rectangle, 150 x 200 m")
}

func TestWriteKML_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteKML(&buf, "none", nil))
	assert.Contains(t, buf.String(), "<Document>")
	assert.NotContains(t, buf.String(), "<Placemark>")
}
