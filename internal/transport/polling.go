package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// pollWait is how long a single poll request is allowed to hang at the
// server before the client reissues it.
const pollWait = 25 * time.Second

// pollConn implements the HTTP long-polling transport. Each session is
// identified by a client-generated ID; reads hang on GET /poll until the
// server has data, writes go through POST /send.
type pollConn struct {
	client  *http.Client
	baseURL string
	session string

	ctx    context.Context
	cancel context.CancelFunc
}

// DialPolling establishes the long-polling transport. The initial request
// validates that the server answers within timeout before the session is
// considered established.
func DialPolling(serverURL string, timeout time.Duration) (Conn, error) {
	base, err := httpBaseURL(serverURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &pollConn{
		client:  &http.Client{Timeout: pollWait + 10*time.Second},
		baseURL: base,
		session: uuid.New().String(),
		ctx:     ctx,
		cancel:  cancel,
	}

	// Handshake: open the session so the server starts buffering frames.
	hsCtx, hsCancel := context.WithTimeout(ctx, timeout)
	defer hsCancel()

	req, err := http.NewRequestWithContext(hsCtx, http.MethodPost, c.baseURL+"/session?sid="+c.session, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("polling handshake: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		cancel()
		return nil, fmt.Errorf("polling handshake: unexpected status %d", resp.StatusCode)
	}

	return c, nil
}

// Read issues poll requests until a frame arrives. A 204 means the server
// had nothing within its wait window; the poll is simply reissued.
func (c *pollConn) Read() ([]byte, error) {
	for {
		select {
		case <-c.ctx.Done():
			return nil, net.ErrClosed
		default:
		}

		req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, c.baseURL+"/poll?sid="+c.session, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if c.ctx.Err() != nil {
				return nil, net.ErrClosed
			}
			return nil, fmt.Errorf("poll request: %w", err)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxMessageSize))
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("poll read: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return data, nil
		case http.StatusNoContent:
			continue
		case http.StatusGone:
			// Session expired server-side.
			return nil, io.EOF
		default:
			return nil, fmt.Errorf("poll: unexpected status %d", resp.StatusCode)
		}
	}
}

func (c *pollConn) Write(data []byte) error {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, c.baseURL+"/send?sid="+c.session, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("poll send: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("poll send: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Ping is a no-op: every poll round-trip already validates the session.
func (c *pollConn) Ping(_ time.Time) error {
	select {
	case <-c.ctx.Done():
		return net.ErrClosed
	default:
		return nil
	}
}

func (c *pollConn) Close() error {
	c.cancel()

	// Best-effort session teardown; the server also expires idle sessions.
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/session?sid="+c.session, nil)
	if err == nil {
		client := &http.Client{Timeout: 5 * time.Second}
		if resp, derr := client.Do(req); derr == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
	}
	return nil
}

func (c *pollConn) Name() Name {
	return NamePolling
}

// httpBaseURL converts a ws:// or wss:// server URL to its HTTP origin.
func httpBaseURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	return strings.TrimSuffix(u.String(), "/"), nil
}
