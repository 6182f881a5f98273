// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Transport carries IRC lines. ReadLine strips the line terminator;
// WriteLine adds it. Close unblocks a pending ReadLine.
type Transport interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

// DialFunc connects to server.
type DialFunc func(ctx context.Context, server string) (Transport, error)

const defaultIRCPort = "6667"

// ParseServer normalizes a server address into a URL with an explicit
// scheme and port.
func ParseServer(server string) (*url.URL, error) {
	if !strings.Contains(server, "://") {
		server = "irc://" + server
	}
	parsed, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parsing chat server %q: %w", server, err)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("chat server %q has no host", server)
	}

	switch parsed.Scheme {
	case "ws", "wss":
	case "irc":
		if parsed.Port() == "" {
			parsed.Host = net.JoinHostPort(parsed.Hostname(), defaultIRCPort)
		}
	case "ircs":
		if parsed.Port() == "" {
			parsed.Host = net.JoinHostPort(parsed.Hostname(), "6697")
		}
	default:
		return nil, fmt.Errorf("chat server %q: unsupported scheme %q", server, parsed.Scheme)
	}
	return parsed, nil
}

// Dial connects over WebSocket or TCP depending on the server scheme.
func Dial(ctx context.Context, server string) (Transport, error) {
	parsed, err := ParseServer(server)
	if err != nil {
		return nil, err
	}

	switch parsed.Scheme {
	case "ws", "wss":
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, parsed.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", parsed.Redacted(), err)
		}
		return &websocketTransport{conn: conn}, nil
	default:
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "tcp", parsed.Host)
		if err != nil {
			return nil, fmt.Errorf("dialing %s: %w", parsed.Host, err)
		}
		if parsed.Scheme == "ircs" {
			tlsConn := tls.Client(conn, &tls.Config{ServerName: parsed.Hostname()})
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, fmt.Errorf("tls handshake with %s: %w", parsed.Host, err)
			}
			conn = tlsConn
		}
		return &streamTransport{conn: conn, reader: bufio.NewReader(conn)}, nil
	}
}

// websocketTransport carries IRC over WebSocket text frames. A frame
// may hold several CRLF-terminated lines.
type websocketTransport struct {
	conn    *websocket.Conn
	pending []string
}

func (t *websocketTransport) ReadLine() (string, error) {
	for len(t.pending) == 0 {
		_, message, err := t.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		for _, line := range strings.Split(string(message), "\n") {
			if line = strings.TrimRight(line, "\r"); line != "" {
				t.pending = append(t.pending, line)
			}
		}
	}
	line := t.pending[0]
	t.pending = t.pending[1:]
	return line, nil
}

func (t *websocketTransport) WriteLine(line string) error {
	return t.conn.WriteMessage(websocket.TextMessage, []byte(line+"\r\n"))
}

func (t *websocketTransport) Close() error {
	return t.conn.Close()
}

type streamTransport struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (t *streamTransport) ReadLine() (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *streamTransport) WriteLine(line string) error {
	_, err := t.conn.Write([]byte(line + "\r\n"))
	return err
}

func (t *streamTransport) Close() error {
	return t.conn.Close()
}
