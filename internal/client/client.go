// Package client provides a Go client for the omxkerneld HTTP API: the
// component kernel's standard entry points (SendCommand, EmptyThisBuffer,
// FillThisBuffer, Get/SetParameter, event feed) reached over a unix
// socket. Used by cmd/omxkernelctl and available for any other in-process
// caller that wants to drive a running kernel daemon without hand-rolling
// the socket dial.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client talks to omxkerneld over a unix socket.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a client connected to the omxkerneld unix socket at
// socketPath.
func New(socketPath string) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					d.Timeout = 5 * time.Second
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: 0, // no timeout: the event feed streams indefinitely
		},
		baseURL: "http://omxkernel",
	}
}

// DefaultSocketPath returns the default omxkerneld socket path
// (~/.omxkernel/omxkerneld.sock).
func DefaultSocketPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".omxkernel", "omxkerneld.sock")
}

// NewDefault creates a client using the default socket path.
func NewDefault() *Client {
	return New(DefaultSocketPath())
}

// CreateComponent creates a new component instance with the given ports.
func (c *Client) CreateComponent(ctx context.Context, req CreateComponentRequest) (*Component, error) {
	var out Component
	if err := c.doJSON(ctx, "POST", "/v1/components", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetComponent returns a single component instance by ID.
func (c *Client) GetComponent(ctx context.Context, id string) (*Component, error) {
	var out Component
	if err := c.doJSON(ctx, "GET", "/v1/components/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListComponents returns every running component instance.
func (c *Client) ListComponents(ctx context.Context) ([]Component, error) {
	var out []Component
	if err := c.doJSON(ctx, "GET", "/v1/components", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteComponent tears down a component instance.
func (c *Client) DeleteComponent(ctx context.Context, id string) error {
	return c.doJSON(ctx, "DELETE", "/v1/components/"+id, nil, nil)
}

// SendCommand issues SendCommand(cmd, pid, cmdData) against a component.
func (c *Client) SendCommand(ctx context.Context, id string, req CommandRequest) error {
	return c.doJSON(ctx, "POST", "/v1/components/"+id+"/command", req, nil)
}

// StateSet is a convenience wrapper over SendCommand for the "state_set"
// command.
func (c *Client) StateSet(ctx context.Context, id, state string) error {
	return c.SendCommand(ctx, id, CommandRequest{Command: "state_set", State: state})
}

// Flush is a convenience wrapper over SendCommand for the "flush"
// command. port == nil flushes every port.
func (c *Client) Flush(ctx context.Context, id string, port *int) error {
	return c.SendCommand(ctx, id, CommandRequest{Command: "flush", Port: port})
}

// EmptyThisBuffer submits a buffer on an input port for processing.
func (c *Client) EmptyThisBuffer(ctx context.Context, id string, port int, buf BufferRequest) error {
	return c.doJSON(ctx, "POST", fmt.Sprintf("/v1/components/%s/ports/%d/etb", id, port), buf, nil)
}

// FillThisBuffer submits a buffer on an output port for processing.
func (c *Client) FillThisBuffer(ctx context.Context, id string, port int, buf BufferRequest) error {
	return c.doJSON(ctx, "POST", fmt.Sprintf("/v1/components/%s/ports/%d/ftb", id, port), buf, nil)
}

// GetParameter fetches the value stored at a parameter index.
func (c *Client) GetParameter(ctx context.Context, id string, port int, index uint32) (any, error) {
	var out any
	path := fmt.Sprintf("/v1/components/%s/ports/%d/param/%d", id, port, index)
	if err := c.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetParameter stores a value at a parameter index.
func (c *Client) SetParameter(ctx context.Context, id string, port int, index uint32, value any) error {
	path := fmt.Sprintf("/v1/components/%s/ports/%d/param/%d", id, port, index)
	return c.doJSON(ctx, "POST", path, value, nil)
}

// StreamEvents opens the NDJSON event feed for a component. The caller
// must close the returned ReadCloser to release the underlying
// connection.
func (c *Client) StreamEvents(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := c.doRaw(ctx, "GET", "/v1/components/"+id+"/events", nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Status reports the daemon's own health.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.doJSON(ctx, "GET", "/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	resp, err := c.doRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// doRaw makes an HTTP request and returns the raw response. The caller is
// responsible for closing resp.Body.
func (c *Client) doRaw(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseError(resp)
	}
	return resp, nil
}

func parseError(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
}

// HTTPClient returns the underlying http.Client for advanced use cases
// like a direct streaming request.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// BaseURL returns the base URL used for requests.
func (c *Client) BaseURL() string {
	return c.baseURL
}
