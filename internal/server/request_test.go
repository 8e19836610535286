package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantPath string
		wantErr  string
	}{
		{
			name:     "http 1.1",
			line:     "GET /5/10/12.png HTTP/1.1",
			wantPath: "/5/10/12.png",
		},
		{
			name:     "http 1.0",
			line:     "GET /5/10/12.png HTTP/1.0",
			wantPath: "/5/10/12.png",
		},
		{
			name:     "query string kept verbatim",
			line:     "GET /5/10/12.png?layer=base HTTP/1.1",
			wantPath: "/5/10/12.png?layer=base",
		},
		{
			name:    "post not allowed",
			line:    "POST /5/10/12.png HTTP/1.1",
			wantErr: "invalid HTTP method",
		},
		{
			name:    "lowercase method rejected",
			line:    "get /5/10/12.png HTTP/1.1",
			wantErr: "invalid HTTP method",
		},
		{
			name:    "http 2 rejected",
			line:    "GET /5/10/12.png HTTP/2.0",
			wantErr: "invalid HTTP version",
		},
		{
			name:    "two tokens",
			line:    "GET /5/10/12.png",
			wantErr: "doesn't look like a valid HTTP request",
		},
		{
			name:    "four tokens",
			line:    "GET /5/10/12.png HTTP/1.1 extra",
			wantErr: "doesn't look like a valid HTTP request",
		},
		{
			name:    "empty line",
			line:    "",
			wantErr: "doesn't look like a valid HTTP request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := parseRequestLine(tt.line)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestReadRequestLine(t *testing.T) {
	line, err := readRequestLine(strings.NewReader("GET / HTTP/1.1\r\nHost: x\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "GET / HTTP/1.1", line)

	// A final line without a terminator is still a line.
	line, err = readRequestLine(strings.NewReader("GET / HTTP/1.1"))
	require.NoError(t, err)
	assert.Equal(t, "GET / HTTP/1.1", line)

	// Bare LF works too.
	line, err = readRequestLine(strings.NewReader("GET / HTTP/1.1\n"))
	require.NoError(t, err)
	assert.Equal(t, "GET / HTTP/1.1", line)

	_, err = readRequestLine(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read the request line")
}
