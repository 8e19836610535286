package server

import (
	"fmt"
	"io"
)

// writeResponse emits the fixed-shape 200 response: status line,
// Content-Type, exact Content-Length, Connection: close, blank line,
// body. No other status code ever leaves this server.
//
// Write errors at this stage usually mean the outstanding request got
// abandoned (e.g. the user scrolled the map away). They are not worth
// reporting, but there is no point writing the body after the header
// fails either.
func writeResponse(w io.Writer, body []byte, contentType string) {
	header := fmt.Sprintf(
		"HTTP/1.1 200 OK\r\nContent-Type: %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n",
		contentType, len(body))

	if _, err := io.WriteString(w, header); err != nil {
		return
	}
	_, _ = w.Write(body)
}
