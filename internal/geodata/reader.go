// Package geodata loads map entities from a GeoJSON extract and
// answers tile-scoped spatial queries.
//
// The reader is constructed once at startup and is immutable
// afterwards, which makes it safe for unsynchronized concurrent use by
// every worker. Queries are a linear scan over precomputed entity
// bounds; extracts served by one process are small enough that an
// index has not been worth it.
package geodata

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/conneroisu/tileserve/internal/tile"
)

// IDSet is an opaque, read-only allow-list of entity identifiers.
type IDSet map[uint64]struct{}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id uint64) bool {
	_, ok := s[id]
	return ok
}

// ParseIDFile reads an allow-list file with one decimal id per line.
// Blank lines and lines starting with '#' are skipped.
func ParseIDFile(path string) (IDSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open entity id file: %w", err)
	}
	defer f.Close()

	ids := make(IDSet)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		id, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid entity id %q", path, line, text)
		}
		ids[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read entity id file: %w", err)
	}
	return ids, nil
}

// Entity is one map feature.
type Entity struct {
	ID       uint64
	Kind     string // "node", "way" or "area"
	Tags     map[string]string
	Geometry orb.Geometry
}

// Tag returns the value of the named tag, or the empty string.
func (e Entity) Tag(key string) string {
	return e.Tags[key]
}

// Reader answers spatial queries over a loaded extract.
type Reader struct {
	entities []Entity
	bounds   []orb.Bound
}

// Load reads a GeoJSON feature collection from path. A missing or
// malformed file is a fatal startup error for callers.
func Load(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geodata file %q: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geodata file %q: %w", path, err)
	}

	r := &Reader{
		entities: make([]Entity, 0, len(fc.Features)),
		bounds:   make([]orb.Bound, 0, len(fc.Features)),
	}

	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		kind, ok := entityKind(f.Geometry)
		if !ok {
			continue
		}
		r.entities = append(r.entities, Entity{
			ID:       featureID(f, i),
			Kind:     kind,
			Tags:     featureTags(f),
			Geometry: f.Geometry,
		})
		r.bounds = append(r.bounds, f.Geometry.Bound())
	}

	return r, nil
}

// Len returns the number of loaded entities.
func (r *Reader) Len() int {
	return len(r.entities)
}

// EntitiesInTileWithNeighbors returns every entity whose bound
// intersects the 3x3 tile neighborhood centered on t. Neighbors are
// included because rendered features such as labels and polygons can
// span tile boundaries. When allowed is non-nil, entities outside the
// set are dropped.
func (r *Reader) EntitiesInTileWithNeighbors(t tile.Tile, allowed IDSet) []Entity {
	bound := neighborhoodBound(t)

	var result []Entity
	for i, e := range r.entities {
		if allowed != nil && !allowed.Contains(e.ID) {
			continue
		}
		if r.bounds[i].Intersects(bound) {
			result = append(result, e)
		}
	}
	return result
}

// neighborhoodBound covers the tile and its immediate neighbors,
// clamped to the tile grid at the tile's zoom.
func neighborhoodBound(t tile.Tile) orb.Bound {
	max := uint32(1)<<t.Zoom - 1

	minX, minY := t.X, t.Y
	if minX > 0 {
		minX--
	}
	if minY > 0 {
		minY--
	}
	maxX, maxY := t.X, t.Y
	if maxX < max {
		maxX++
	}
	if maxY < max {
		maxY++
	}

	nw := tile.Tile{Zoom: t.Zoom, X: minX, Y: minY}.Bound()
	se := tile.Tile{Zoom: t.Zoom, X: maxX, Y: maxY}.Bound()
	return nw.Union(se)
}

func entityKind(g orb.Geometry) (string, bool) {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return "node", true
	case orb.LineString, orb.MultiLineString:
		return "way", true
	case orb.Polygon, orb.MultiPolygon:
		return "area", true
	default:
		return "", false
	}
}

// featureID extracts a stable numeric id. GeoJSON ids may be numbers
// or strings like "way/123"; features without a usable id get a
// synthetic one derived from their position in the file.
func featureID(f *geojson.Feature, index int) uint64 {
	switch id := f.ID.(type) {
	case float64:
		if id >= 0 {
			return uint64(id)
		}
	case string:
		text := id
		if pos := strings.LastIndexByte(text, '/'); pos >= 0 {
			text = text[pos+1:]
		}
		if v, err := strconv.ParseUint(text, 10, 64); err == nil {
			return v
		}
	}
	if v, ok := f.Properties["id"]; ok {
		if num, ok := v.(float64); ok && num >= 0 {
			return uint64(num)
		}
	}
	return uint64(index)
}

func featureTags(f *geojson.Feature) map[string]string {
	tags := make(map[string]string, len(f.Properties))
	for k, v := range f.Properties {
		if s, ok := v.(string); ok {
			tags[k] = s
		}
	}
	return tags
}
