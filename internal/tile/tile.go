// Package tile defines the slippy-map tile coordinate model and the
// URL path parsing used to address tiles over the wire.
//
// Tile addresses follow the standard power-of-two scheme: at zoom z the
// world is a 2^z by 2^z grid and a tile is identified by (zoom, x, y).
// Request paths have the shape `.../{z}/{x}/{y}.png` with an optional
// query string, which is ignored.
package tile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest zoom level the server will address.
const MaxZoom = 18

// TileSize is the pixel edge length of a rendered tile.
const TileSize = 256

// Tile identifies one map tile.
//
// Note that x and y are not validated against 2^zoom; addresses outside
// the grid parse successfully as long as zoom is in range.
type Tile struct {
	Zoom uint32
	X    uint32
	Y    uint32
}

// Path formats the tile as a request path.
func (t Tile) Path() string {
	return fmt.Sprintf("/%d/%d/%d.png", t.Zoom, t.X, t.Y)
}

func (t Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// Bound returns the geographic bound covered by the tile.
func (t Tile) Bound() orb.Bound {
	return maptile.New(t.X, t.Y, maptile.Zoom(t.Zoom)).Bound()
}

// ParsePath extracts a tile address from a URL path. The query string
// and a trailing ".png" suffix are stripped before the path is split on
// "/"; the last three non-empty segments must be base-10 non-negative
// integers z/x/y with z <= MaxZoom.
//
// A second return value of false means the path does not address a
// tile. That is an absence signal, not an error: callers drop the
// request without distinguishing why it failed to match.
func ParsePath(path string) (Tile, bool) {
	const wantSegments = 3

	if pos := strings.LastIndexByte(path, '?'); pos >= 0 {
		path = path[:pos]
	}
	path = strings.TrimSuffix(path, ".png")

	segments := make([]string, 0, wantSegments)
	rest := path
	for len(segments) < wantSegments && rest != "" {
		var seg string
		if pos := strings.LastIndexByte(rest, '/'); pos >= 0 {
			rest, seg = rest[:pos], rest[pos+1:]
		} else {
			rest, seg = "", rest
		}
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) != wantSegments {
		return Tile{}, false
	}

	// segments were collected right to left: y, x, z.
	z, errZ := strconv.ParseUint(segments[2], 10, 32)
	x, errX := strconv.ParseUint(segments[1], 10, 32)
	y, errY := strconv.ParseUint(segments[0], 10, 32)
	if errZ != nil || errX != nil || errY != nil || z > MaxZoom {
		return Tile{}, false
	}

	return Tile{Zoom: uint32(z), X: uint32(x), Y: uint32(y)}, true
}
