package wkt_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/relief-mobility/internal/wkt"
)

func TestReadPoints(t *testing.T) {
	src := `
# hospitals
POINT (10 20)
point(1.5 -2)
MULTIPOINT ((3 4), (5 6))
LINESTRING (0 0, 1 1)
`
	pts, err := wkt.ReadPoints(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []wkt.Point{{10, 20}, {1.5, -2}, {3, 4}, {5, 6}}, pts)
}

func TestReadPoints_BadCoordinate(t *testing.T) {
	_, err := wkt.ReadPoints(strings.NewReader("POINT (10)\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestReadLineStrings(t *testing.T) {
	src := "LINESTRING (0 0, 10 0, 10 10)\nPOINT (1 1)\nLINESTRING (5 5, 6 6)\n"
	lines, err := wkt.ReadLineStrings(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], 3)
	assert.Equal(t, wkt.Point{X: 6, Y: 6}, lines[1][1])
}

func TestReadLineStrings_TooShort(t *testing.T) {
	_, err := wkt.ReadLineStrings(strings.NewReader("LINESTRING (0 0)\n"))
	assert.Error(t, err)
}

func TestWritePointsRoundTrip(t *testing.T) {
	in := []wkt.Point{{0, 0}, {12.25, -3}}
	var buf bytes.Buffer
	require.NoError(t, wkt.WritePoints(&buf, in))
	assert.Equal(t, "POINT (0 0)\nPOINT (12.25 -3)\n", buf.String())

	out, err := wkt.ReadPoints(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
