// Package api is the HTTP client for the ListLift backend.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.listlift.app"
	// pathPrefix is prepended to every endpoint path.
	pathPrefix = "/api"
)

// ServerError is a non-2xx response.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

// DecodeError is a 2xx response whose body did not have the expected shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type ClientOpts struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	httpClient *resty.Client
	baseURL    string
}

func NewClient(opts ClientOpts) *Client {
	c := Client{baseURL: DefaultBaseURL}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c.httpClient = resty.New().
		SetBaseURL(c.baseURL+pathPrefix).
		SetTimeout(timeout).
		SetHeaders(
			map[string]string{
				"Accept":       "application/json",
				"Content-Type": "application/json",
				"User-Agent":   "ListLift/1.0",
			},
		)

	return &c
}

func (c *Client) req(ctx context.Context) *resty.Request {
	return c.httpClient.NewRequest().SetContext(ctx)
}

// decode checks the response status and unmarshals the body into out.
// Bodies are decoded here rather than by resty so that a malformed body is
// reported as a DecodeError instead of a transport failure.
func decode(res *resty.Response, err error, out any) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if res.IsError() {
		return &ServerError{Status: res.StatusCode(), Message: errorMessage(res.Body())}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.Body(), out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// errorMessage extracts FastAPI's {"detail": ...} when present.
func errorMessage(body []byte) string {
	var v struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &v); err == nil && v.Detail != "" {
		return v.Detail
	}
	return strings.TrimSpace(string(body))
}
