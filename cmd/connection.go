// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The Blechbahn Authors

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"github.com/blechbahn/stellwerk/pkg/gleis"
	"github.com/blechbahn/stellwerk/pkg/slcan"
)

// bridgeBus is a gleis.Bus over a WebSocket CAN bridge. Each binary
// message carries one 13-byte network frame.
type bridgeBus struct {
	conn *websocket.Conn

	frames chan gleis.Frame
	done   chan struct{}

	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error

	mu    sync.Mutex
	cause error
}

func (b *bridgeBus) Send(f gleis.Frame) error {
	buf, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	select {
	case <-b.done:
		return b.err()
	default:
	}
	if err := b.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return fmt.Errorf("bridge write failed: %v", err)
	}
	return nil
}

func (b *bridgeBus) Receive() (gleis.Frame, bool, error) {
	select {
	case f := <-b.frames:
		return f, true, nil
	default:
	}
	select {
	case <-b.done:
		return gleis.Frame{}, false, b.err()
	default:
		return gleis.Frame{}, false, nil
	}
}

func (b *bridgeBus) Close() error {
	b.closeOnce.Do(func() {
		b.closing.Store(true)
		b.closeErr = b.conn.Close()
	})
	return b.closeErr
}

func (b *bridgeBus) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cause != nil {
		return b.cause
	}
	return gleis.ErrClosed
}

// pump moves inbound bridge messages onto the frame buffer until the
// connection dies. Non-binary messages and undecodable payloads are
// dropped; a full buffer sheds the oldest frame.
func (b *bridgeBus) pump() {
	for {
		messageType, data, err := b.conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			if b.cause == nil {
				if b.closing.Load() {
					b.cause = gleis.ErrClosed
				} else {
					b.cause = fmt.Errorf("bridge read failed: %v", err)
				}
			}
			b.mu.Unlock()
			close(b.done)
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		f, err := gleis.UnmarshalFrame(data)
		if err != nil {
			continue
		}
		select {
		case b.frames <- f:
		default:
			select {
			case <-b.frames:
			default:
			}
			select {
			case b.frames <- f:
			default:
			}
		}
	}
}

// openBridgeBus opens a WebSocket connection with HTTP Basic auth and
// starts the inbound pump.
func openBridgeBus(bridgeURL, username, password string, skipSSLVerify bool) (*bridgeBus, error) {
	u, err := url.Parse(bridgeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, bridgeURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	b := &bridgeBus{
		conn:   conn,
		frames: make(chan gleis.Frame, 256),
		done:   make(chan struct{}),
	}
	go b.pump()
	return b, nil
}

// getPassword retrieves the bridge password from the environment or
// prompts the user.
func getPassword() (string, error) {
	if pw := os.Getenv("STELLWERK_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// openBus opens either a serial SLCAN bus or a WebSocket bridge bus based
// on flags.
func openBus() (gleis.Bus, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = getPassword()
			if err != nil {
				return nil, "", err
			}
		}

		bus, err := openBridgeBus(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return bus, fmt.Sprintf("Bridge: %s", wsURL), nil
	}

	if portName != "" {
		bus, err := slcan.Open(portName, baudRate)
		if err != nil {
			return nil, "", err
		}

		return bus, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// newController opens the bus and starts a controller session on it. The
// controller owns the bus; Close releases both.
func newController() (*gleis.Controller, string, error) {
	bus, info, err := openBus()
	if err != nil {
		return nil, "", err
	}

	cfg := gleis.Config{Hash: sessionHash}
	if traceWire {
		cfg.Tracer = gleis.NewWriterTracer(os.Stderr)
	}

	c := gleis.NewController(bus, cfg)
	if err := c.Start(); err != nil {
		c.Close()
		return nil, "", err
	}
	return c, info, nil
}
