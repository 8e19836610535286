// Package perf aggregates per-tile timing measurements.
//
// A Stats value is an explicitly owned handle shared by the workers
// that record into it; there is no package-level state. Recording is a
// two-phase protocol: StartTile hands out a Measurement that the
// request handler owns exclusively while it works, and FinishTile folds
// the finished measurement into the shared aggregate under the lock.
// The lock is held only for that final fold, never while a tile is
// being rendered.
//
// When instrumentation is disabled the whole package degrades to
// no-ops: StartTile returns nil and a nil Measurement is safe to use.
package perf

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats is the process-wide timing aggregate.
type Stats struct {
	enabled bool
	clock   clock.Clock

	mu    sync.Mutex
	zooms map[uint32]*zoomStats
}

type zoomStats struct {
	count    int64
	total    time.Duration
	max      time.Duration
	sections map[string]*sectionStats
}

type sectionStats struct {
	count int64
	total time.Duration
}

// New creates a Stats handle. A disabled handle records nothing.
func New(enabled bool) *Stats {
	return NewWithClock(enabled, clock.New())
}

// NewWithClock creates a Stats handle with an injected clock so tests
// can control observed durations.
func NewWithClock(enabled bool, c clock.Clock) *Stats {
	return &Stats{
		enabled: enabled,
		clock:   c,
		zooms:   make(map[uint32]*zoomStats),
	}
}

// Enabled reports whether the handle records measurements.
func (s *Stats) Enabled() bool {
	return s != nil && s.enabled
}

// Measurement tracks one tile request from start to finish. It is owned
// by a single goroutine and must not be shared.
type Measurement struct {
	zoom     uint32
	start    time.Time
	clock    clock.Clock
	sections []sectionSample
}

type sectionSample struct {
	name     string
	duration time.Duration
}

// StartTile begins a measurement for one tile request. Returns nil when
// instrumentation is disabled; all Measurement methods tolerate nil.
func (s *Stats) StartTile(zoom uint32) *Measurement {
	if !s.Enabled() {
		return nil
	}
	return &Measurement{
		zoom:  zoom,
		start: s.clock.Now(),
		clock: s.clock,
	}
}

// Measure times a named section of the request. The returned stop
// function records the elapsed time; call it exactly once.
func (m *Measurement) Measure(name string) func() {
	if m == nil {
		return func() {}
	}
	start := m.clock.Now()
	return func() {
		m.sections = append(m.sections, sectionSample{
			name:     name,
			duration: m.clock.Now().Sub(start),
		})
	}
}

// FinishTile folds a completed measurement into the aggregate. This is
// the only operation that takes the lock.
func (s *Stats) FinishTile(m *Measurement) {
	if !s.Enabled() || m == nil {
		return
	}
	elapsed := s.clock.Now().Sub(m.start)

	s.mu.Lock()
	defer s.mu.Unlock()

	zs, ok := s.zooms[m.zoom]
	if !ok {
		zs = &zoomStats{sections: make(map[string]*sectionStats)}
		s.zooms[m.zoom] = zs
	}
	zs.count++
	zs.total += elapsed
	if elapsed > zs.max {
		zs.max = elapsed
	}
	for _, sample := range m.sections {
		sec, ok := zs.sections[sample.name]
		if !ok {
			sec = &sectionStats{}
			zs.sections[sample.name] = sec
		}
		sec.count++
		sec.total += sample.duration
	}
}

// ReportHTML renders the aggregate as a standalone HTML document.
func (s *Stats) ReportHTML() string {
	var b strings.Builder
	p := message.NewPrinter(language.English)

	b.WriteString("<!DOCTYPE html>\n<html>\n<head><title>Performance statistics</title></head>\n<body>\n")
	b.WriteString("<h1>Performance statistics</h1>\n")

	s.mu.Lock()
	zoomLevels := make([]uint32, 0, len(s.zooms))
	for zoom := range s.zooms {
		zoomLevels = append(zoomLevels, zoom)
	}
	sort.Slice(zoomLevels, func(i, j int) bool { return zoomLevels[i] < zoomLevels[j] })

	if len(zoomLevels) == 0 {
		b.WriteString("<p>No tiles rendered yet.</p>\n")
	}

	for _, zoom := range zoomLevels {
		zs := s.zooms[zoom]
		avg := time.Duration(0)
		if zs.count > 0 {
			avg = zs.total / time.Duration(zs.count)
		}
		b.WriteString(p.Sprintf("<h2>Zoom %d</h2>\n", zoom))
		b.WriteString("<table border=\"1\">\n")
		b.WriteString("<tr><th>Tiles</th><th>Average</th><th>Max</th></tr>\n")
		b.WriteString(p.Sprintf("<tr><td>%d</td><td>%v</td><td>%v</td></tr>\n",
			zs.count, avg.Round(time.Microsecond), zs.max.Round(time.Microsecond)))
		b.WriteString("</table>\n")

		names := make([]string, 0, len(zs.sections))
		for name := range zs.sections {
			names = append(names, name)
		}
		sort.Strings(names)

		if len(names) > 0 {
			b.WriteString("<table border=\"1\">\n")
			b.WriteString("<tr><th>Section</th><th>Calls</th><th>Average</th></tr>\n")
			for _, name := range names {
				sec := zs.sections[name]
				secAvg := sec.total / time.Duration(sec.count)
				b.WriteString(fmt.Sprintf("<tr><td>%s</td>", html.EscapeString(name)))
				b.WriteString(p.Sprintf("<td>%d</td><td>%v</td></tr>\n",
					sec.count, secAvg.Round(time.Microsecond)))
			}
			b.WriteString("</table>\n")
		}
	}
	s.mu.Unlock()

	b.WriteString("</body>\n</html>\n")
	return b.String()
}
