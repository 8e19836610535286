// Package draw rasterizes map tiles. Entities are projected from
// geographic coordinates into 256x256 tile pixel space and painted
// with gg's software renderer: areas first, then ways, then node
// labels, so fills never cover strokes or text.
package draw

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/gogpu/gg"
	ggtext "github.com/gogpu/gg/text"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/conneroisu/tileserve/internal/geodata"
	"github.com/conneroisu/tileserve/internal/mapcss"
	"github.com/conneroisu/tileserve/internal/tile"
)

// defaultLabelFont is the font file looked up under the stylesheet
// base path before falling back to the embedded Go Regular face.
const defaultLabelFont = "fonts/default.ttf"

// Drawer renders tiles. It is constructed once at startup and shared
// by all workers; the face cache is the only mutable state and is
// guarded by its own lock.
type Drawer struct {
	source *ggtext.FontSource

	mu    sync.Mutex
	faces map[float64]ggtext.Face
}

// New creates a Drawer using font resources under basePath when
// present, otherwise the embedded fallback face.
func New(basePath string) (*Drawer, error) {
	var source *ggtext.FontSource

	fontPath := filepath.Join(basePath, defaultLabelFont)
	if _, err := os.Stat(fontPath); err == nil {
		source, err = ggtext.NewFontSourceFromFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("load font %q: %w", fontPath, err)
		}
	} else {
		source, err = ggtext.NewFontSource(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("load embedded font: %w", err)
		}
	}

	return &Drawer{
		source: source,
		faces:  make(map[float64]ggtext.Face),
	}, nil
}

// DrawTile renders the entities visible in t and returns the encoded
// PNG bytes.
func (d *Drawer) DrawTile(entities []geodata.Entity, t tile.Tile, styler *mapcss.Styler) ([]byte, error) {
	dc := gg.NewContext(tile.TileSize, tile.TileSize)

	dc.SetHexColor(styler.CanvasColor())
	dc.DrawRectangle(0, 0, tile.TileSize, tile.TileSize)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("paint canvas: %w", err)
	}

	// Painter order: fills under strokes under labels.
	for _, kind := range []string{"area", "way", "node"} {
		for _, e := range entities {
			if e.Kind != kind {
				continue
			}
			style, ok := styler.StyleFor(e.Kind, e.Tags, t.Zoom)
			if !ok {
				continue
			}
			if err := d.drawEntity(dc, e, t, style); err != nil {
				return nil, fmt.Errorf("draw entity %d: %w", e.ID, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode tile %v: %w", t, err)
	}
	return buf.Bytes(), nil
}

func (d *Drawer) drawEntity(dc *gg.Context, e geodata.Entity, t tile.Tile, style mapcss.Style) error {
	switch g := e.Geometry.(type) {
	case orb.Point:
		d.drawLabel(dc, g, t, e, style)
	case orb.MultiPoint:
		for _, pt := range g {
			d.drawLabel(dc, pt, t, e, style)
		}
	case orb.LineString:
		return drawWay(dc, g, t, style)
	case orb.MultiLineString:
		for _, ls := range g {
			if err := drawWay(dc, ls, t, style); err != nil {
				return err
			}
		}
	case orb.Polygon:
		return drawArea(dc, g, t, style)
	case orb.MultiPolygon:
		for _, poly := range g {
			if err := drawArea(dc, poly, t, style); err != nil {
				return err
			}
		}
	}
	return nil
}

func drawWay(dc *gg.Context, ls orb.LineString, t tile.Tile, style mapcss.Style) error {
	if style.Color == "" || len(ls) < 2 {
		return nil
	}

	dc.NewSubPath()
	for i, pt := range ls {
		x, y := projectPoint(pt, t)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}

	dc.SetHexColor(style.Color)
	width := style.Width
	if width == 0 {
		width = 1
	}
	dc.SetLineWidth(width)
	return dc.Stroke()
}

func drawArea(dc *gg.Context, poly orb.Polygon, t tile.Tile, style mapcss.Style) error {
	if len(poly) == 0 {
		return nil
	}

	if style.FillColor != "" {
		tracePolygon(dc, poly, t)
		dc.SetHexColor(style.FillColor)
		if err := dc.Fill(); err != nil {
			return err
		}
	}

	if style.Color != "" && style.Width > 0 {
		tracePolygon(dc, poly, t)
		dc.SetHexColor(style.Color)
		dc.SetLineWidth(style.Width)
		return dc.Stroke()
	}
	return nil
}

func tracePolygon(dc *gg.Context, poly orb.Polygon, t tile.Tile) {
	for _, ring := range poly {
		dc.NewSubPath()
		for i, pt := range ring {
			x, y := projectPoint(pt, t)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
	}
}

func (d *Drawer) drawLabel(dc *gg.Context, pt orb.Point, t tile.Tile, e geodata.Entity, style mapcss.Style) {
	if style.Text == "" {
		return
	}
	label := e.Tag(style.Text)
	if label == "" {
		return
	}

	x, y := projectPoint(pt, t)

	color := style.TextColor
	if color == "" {
		color = "#000000"
	}
	dc.SetHexColor(color)
	dc.SetFont(d.face(style.FontSize))
	dc.DrawStringAnchored(label, x, y, 0.5, 0.5)
}

// face returns a cached face for the given size.
func (d *Drawer) face(size float64) ggtext.Face {
	if size <= 0 {
		size = 10
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.faces[size]; ok {
		return f
	}
	f := d.source.Face(size)
	d.faces[size] = f
	return f
}

// projectPoint maps a geographic point into pixel coordinates relative
// to the tile's top-left corner.
func projectPoint(pt orb.Point, t tile.Tile) (float64, float64) {
	frac := maptile.Fraction(pt, maptile.Zoom(t.Zoom))
	return (frac[0] - float64(t.X)) * tile.TileSize, (frac[1] - float64(t.Y)) * tile.TileSize
}
