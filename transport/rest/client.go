// Package rest is the HTTP client for the voting server API: it opens a
// voting phase and submits moves. Calls are single request/response exchanges
// with no retry.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wricardo/wsprobe/voting"
)

// Response is the raw outcome of one API call. Non-2xx statuses are not
// errors; callers decide how to present them.
type Response struct {
	Status int
	Body   string
}

// OK reports whether the server answered with a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client calls the voting server API at a base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// StartVoting asks the server to open a voting phase.
func (c *Client) StartVoting(ctx context.Context) (*Response, error) {
	return c.post(ctx, "start-voting", nil)
}

// SubmitMove votes for move, given in coordinate notation such as "e2e4".
func (c *Client) SubmitMove(ctx context.Context, move string) (*Response, error) {
	m, err := voting.ParseMove(move)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, "submit-move", m)
}

// EndVoting asks the server to close the running voting phase.
func (c *Client) EndVoting(ctx context.Context) (*Response, error) {
	return c.post(ctx, "end-voting", nil)
}

// Status fetches the server's voting status as JSON.
func (c *Client) Status(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, "status", nil)
}

func (c *Client) url(api string) string {
	return c.baseURL + "/" + api
}

func (c *Client) post(ctx context.Context, api string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, api, body)
}

func (c *Client) do(ctx context.Context, method, api string, body any) (*Response, error) {
	url := c.url(api)

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().Str("url", url).Msg(method)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", api, err)
	}

	return &Response{Status: resp.StatusCode, Body: string(data)}, nil
}
