package server

import (
	"fmt"
	"strings"
)

// parseRequestLine validates the request line and returns the raw path
// token, query string included. Exactly three space-separated tokens
// are required; only GET and HTTP/1.1 or HTTP/1.0 are accepted. No
// header parsing happens anywhere in this server.
func parseRequestLine(line string) (string, error) {
	tokens := strings.Split(line, " ")
	if len(tokens) != 3 {
		return "", fmt.Errorf("<%s> doesn't look like a valid HTTP request", line)
	}
	if tokens[0] != "GET" {
		return "", fmt.Errorf("invalid HTTP method: %s", tokens[0])
	}
	if tokens[2] != "HTTP/1.1" && tokens[2] != "HTTP/1.0" {
		return "", fmt.Errorf("invalid HTTP version: %s", tokens[2])
	}
	return tokens[1], nil
}
