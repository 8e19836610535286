// Package server implements the TCP front end of tileserve.
//
// Connections are accepted by a single listener goroutine and handed
// to a fixed pool of workers by round robin. Each worker owns one
// unbounded FIFO queue and processes its connections to completion,
// one at a time, so a slow request stalls only the queue it sits in
// and never the pool. There is no global ordering across workers.
//
// The protocol surface is deliberately tiny: one GET request line per
// connection, one fixed-shape 200 response, then close. Requests that
// fail to parse or to match a route are dropped without a response;
// that silent-close contract is for trusted tile-fetching clients, not
// browsers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"

	"github.com/conneroisu/tileserve/internal/geodata"
	"github.com/conneroisu/tileserve/internal/logging"
	"github.com/conneroisu/tileserve/internal/mapcss"
	"github.com/conneroisu/tileserve/internal/perf"
	"github.com/conneroisu/tileserve/internal/tile"
)

// EntitySource provides the entities to render for a tile.
type EntitySource interface {
	EntitiesInTileWithNeighbors(t tile.Tile, allowed geodata.IDSet) []geodata.Entity
}

// TileRenderer rasterizes a tile into encoded image bytes.
type TileRenderer interface {
	DrawTile(entities []geodata.Entity, t tile.Tile, styler *mapcss.Styler) ([]byte, error)
}

// Options tunes server construction. The zero value is usable.
type Options struct {
	// PoolSize is the number of workers. Defaults to the CPU core
	// count at startup; it never changes at runtime.
	PoolSize int
	// Stats records per-tile timings. Defaults to a disabled handle.
	Stats *perf.Stats
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Server serves map tiles over raw TCP.
type Server struct {
	styler     *mapcss.Styler
	reader     EntitySource
	drawer     TileRenderer
	allowedIDs geodata.IDSet
	stats      *perf.Stats
	logger     logging.Logger

	queues []*connQueue
	next   int
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// New constructs a Server. The styler, reader, drawer and allow-list
// are shared read-only by every worker and must not be mutated after
// this call.
func New(styler *mapcss.Styler, reader EntitySource, drawer TileRenderer, allowedIDs geodata.IDSet, opts Options) *Server {
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}

	stats := opts.Stats
	if stats == nil {
		stats = perf.New(false)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}

	queues := make([]*connQueue, poolSize)
	for i := range queues {
		queues[i] = newConnQueue()
	}

	return &Server{
		styler:     styler,
		reader:     reader,
		drawer:     drawer,
		allowedIDs: allowedIDs,
		stats:      stats,
		logger:     logger.WithComponent("server"),
		queues:     queues,
	}
}

// PoolSize returns the number of workers.
func (s *Server) PoolSize() int {
	return len(s.queues)
}

// ListenAndServe binds address and serves until Close is called. A
// bind failure is fatal and returned before any connection is handled.
func (s *Server) ListenAndServe(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", address, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until the listener closes,
// then drains the worker queues and returns. The accept loop skips
// transient accept errors silently.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return errors.New("server is closed")
	}
	s.listener = listener
	s.mu.Unlock()

	for _, q := range s.queues {
		s.wg.Add(1)
		go s.worker(q)
	}

	s.logger.Info(context.Background(), "serving tiles",
		"addr", listener.Addr().String(), "workers", len(s.queues))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			continue
		}
		s.dispatch(conn)
	}

	for _, q := range s.queues {
		q.close()
	}
	s.wg.Wait()
	return nil
}

// dispatch hands a connection to the next worker in round-robin
// order. Only the accept goroutine calls this.
func (s *Server) dispatch(conn net.Conn) {
	s.queues[s.next].push(conn)
	s.next = (s.next + 1) % len(s.queues)
}

// worker drains one queue, handling each connection to completion
// before taking the next.
func (s *Server) worker(q *connQueue) {
	defer s.wg.Done()
	for {
		conn, ok := q.pop()
		if !ok {
			return
		}
		s.handleConnection(conn)
	}
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting connections. Serve returns after in-flight
// and queued connections are handled.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
