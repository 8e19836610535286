package draw

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tileserve/internal/geodata"
	"github.com/conneroisu/tileserve/internal/mapcss"
	"github.com/conneroisu/tileserve/internal/tile"
)

func testStyler() *mapcss.Styler {
	rules := []mapcss.Rule{
		{
			Selectors:    []mapcss.Selector{{Element: "canvas"}},
			Declarations: []mapcss.Declaration{{Property: "fill-color", Value: "#f1eee8"}},
		},
		{
			Selectors: []mapcss.Selector{{Element: "area", Tests: []mapcss.TagTest{{Key: "landuse"}}}},
			Declarations: []mapcss.Declaration{
				{Property: "fill-color", Value: "#add19e"},
			},
		},
		{
			Selectors: []mapcss.Selector{{Element: "way", Tests: []mapcss.TagTest{{Key: "highway"}}}},
			Declarations: []mapcss.Declaration{
				{Property: "color", Value: "#ff0000"},
				{Property: "width", Value: "3"},
			},
		},
		{
			Selectors: []mapcss.Selector{{Element: "node", Tests: []mapcss.TagTest{{Key: "place"}}}},
			Declarations: []mapcss.Declaration{
				{Property: "text", Value: "name"},
				{Property: "font-size", Value: "12"},
			},
		},
	}
	return mapcss.NewStyler(rules, mapcss.StyleTypeJosm, 0)
}

// centerPolygon returns a polygon covering the middle of the tile.
func centerPolygon(t tile.Tile) orb.Polygon {
	b := t.Bound()
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	minX, maxX := b.Min[0]+w/4, b.Max[0]-w/4
	minY, maxY := b.Min[1]+h/4, b.Max[1]-h/4
	return orb.Polygon{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

func decodeTile(t *testing.T, data []byte) *pngImage {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	bounds := img.Bounds()
	require.Equal(t, tile.TileSize, bounds.Dx())
	require.Equal(t, tile.TileSize, bounds.Dy())
	return &pngImage{img: img}
}

type pngImage struct {
	img interface {
		At(x, y int) color.Color
	}
}

func (p *pngImage) nrgbaAt(x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(p.img.At(x, y)).(color.NRGBA)
}

func TestDrawTileEmpty(t *testing.T) {
	drawer, err := New(t.TempDir())
	require.NoError(t, err)

	tl := tile.Tile{Zoom: 5, X: 10, Y: 12}
	data, err := drawer.DrawTile(nil, tl, testStyler())
	require.NoError(t, err)

	img := decodeTile(t, data)

	// Every pixel is the canvas color (#f1eee8).
	want := color.NRGBA{R: 0xf1, G: 0xee, B: 0xe8, A: 0xff}
	for _, pt := range [][2]int{{0, 0}, {128, 128}, {255, 255}} {
		got := img.nrgbaAt(pt[0], pt[1])
		assert.InDelta(t, int(want.R), int(got.R), 2)
		assert.InDelta(t, int(want.G), int(got.G), 2)
		assert.InDelta(t, int(want.B), int(got.B), 2)
	}
}

func TestDrawTilePolygonFill(t *testing.T) {
	drawer, err := New(t.TempDir())
	require.NoError(t, err)

	tl := tile.Tile{Zoom: 5, X: 10, Y: 12}
	entities := []geodata.Entity{{
		ID:       1,
		Kind:     "area",
		Tags:     map[string]string{"landuse": "forest"},
		Geometry: centerPolygon(tl),
	}}

	data, err := drawer.DrawTile(entities, tl, testStyler())
	require.NoError(t, err)

	img := decodeTile(t, data)

	// The tile center is inside the polygon and must carry the fill
	// color; the corner stays canvas-colored.
	fill := img.nrgbaAt(128, 128)
	assert.InDelta(t, 0xad, int(fill.R), 2)
	assert.InDelta(t, 0xd1, int(fill.G), 2)
	assert.InDelta(t, 0x9e, int(fill.B), 2)

	corner := img.nrgbaAt(2, 2)
	assert.InDelta(t, 0xf1, int(corner.R), 2)
}

func TestDrawTileWayStroke(t *testing.T) {
	drawer, err := New(t.TempDir())
	require.NoError(t, err)

	tl := tile.Tile{Zoom: 5, X: 10, Y: 12}
	b := tl.Bound()
	midY := (b.Min[1] + b.Max[1]) / 2
	entities := []geodata.Entity{{
		ID:       2,
		Kind:     "way",
		Tags:     map[string]string{"highway": "primary"},
		Geometry: orb.LineString{{b.Min[0], midY}, {b.Max[0], midY}},
	}}

	data, err := drawer.DrawTile(entities, tl, testStyler())
	require.NoError(t, err)

	img := decodeTile(t, data)

	// A horizontal line through the tile middle: some pixel in the
	// center column must be red. Mercator stretch keeps it near but
	// not exactly at row 128, so scan the column.
	found := false
	for y := 0; y < tile.TileSize && !found; y++ {
		px := img.nrgbaAt(128, y)
		if px.R > 200 && px.G < 80 && px.B < 80 {
			found = true
		}
	}
	assert.True(t, found, "stroked way should leave red pixels near the middle row")
}

func TestDrawTileLabel(t *testing.T) {
	drawer, err := New(t.TempDir())
	require.NoError(t, err)

	tl := tile.Tile{Zoom: 5, X: 10, Y: 12}
	b := tl.Bound()
	center := orb.Point{(b.Min[0] + b.Max[0]) / 2, (b.Min[1] + b.Max[1]) / 2}
	entities := []geodata.Entity{{
		ID:       3,
		Kind:     "node",
		Tags:     map[string]string{"place": "city", "name": "Oslo"},
		Geometry: center,
	}}

	data, err := drawer.DrawTile(entities, tl, testStyler())
	require.NoError(t, err)

	img := decodeTile(t, data)

	// Text rasterization must darken at least one pixel near the
	// center compared to the canvas.
	found := false
	for y := 100; y < 156 && !found; y++ {
		for x := 100; x < 156 && !found; x++ {
			px := img.nrgbaAt(x, y)
			if int(px.R)+int(px.G)+int(px.B) < 500 {
				found = true
			}
		}
	}
	assert.True(t, found, "label should leave dark pixels near the anchor")
}

func TestDrawTileSkipsUnstyledEntities(t *testing.T) {
	drawer, err := New(t.TempDir())
	require.NoError(t, err)

	tl := tile.Tile{Zoom: 5, X: 10, Y: 12}
	entities := []geodata.Entity{{
		ID:       4,
		Kind:     "area",
		Tags:     map[string]string{"amenity": "parking"}, // no matching rule
		Geometry: centerPolygon(tl),
	}}

	data, err := drawer.DrawTile(entities, tl, testStyler())
	require.NoError(t, err)

	img := decodeTile(t, data)
	center := img.nrgbaAt(128, 128)
	assert.InDelta(t, 0xf1, int(center.R), 2, "unstyled entity must not be drawn")
}
