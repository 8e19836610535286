package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/conneroisu/tileserve/internal/tile"
)

// handleConnection runs one connection's full lifecycle. Every failure
// is caught here and converted into a single log line with the peer
// address when resolvable; nothing propagates to the worker.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	logger := s.logger
	if addr := conn.RemoteAddr(); addr != nil {
		logger = logger.With("peer", addr.String())
	}

	if err := s.tryHandleConnection(conn); err != nil {
		logger.Error(context.Background(), err, "error processing request")
	}
}

func (s *Server) tryHandleConnection(conn net.Conn) error {
	line, err := readRequestLine(conn)
	if err != nil {
		return err
	}

	path, err := parseRequestLine(line)
	if err != nil {
		return err
	}

	if s.stats.Enabled() && path == "/perf_stats" {
		writeResponse(conn, []byte(s.stats.ReportHTML()), "text/html")
		return nil
	}

	t, ok := tile.ParsePath(path)
	if !ok {
		return fmt.Errorf("<%s> doesn't look like a valid tile address", path)
	}

	m := s.stats.StartTile(t.Zoom)

	stop := m.Measure("get tile entities")
	entities := s.reader.EntitiesInTileWithNeighbors(t, s.allowedIDs)
	stop()

	stop = m.Measure("draw tile")
	data, err := s.drawer.DrawTile(entities, t, s.styler)
	stop()
	if err != nil {
		return fmt.Errorf("failed to render tile %v: %w", t, err)
	}

	s.stats.FinishTile(m)

	writeResponse(conn, data, "image/png")
	return nil
}

// readRequestLine reads the first line of the stream. A stream that
// ends without producing any bytes is a read error; a final line
// without a terminator is accepted. Nothing past the first line is
// ever read, so clients must not expect the server to drain headers
// or a body.
func readRequestLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("failed to read the request line")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
