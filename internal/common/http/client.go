package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "hiring-pipeline/internal/common/errors"
)

// Client is a JSON client for the pipeline API. Non-2xx responses come back
// as taxonomy errors.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewClientWith reuses an existing *http.Client, e.g. an httptest server's.
func NewClientWith(baseURL string, hc *http.Client) *Client {
	return &Client{httpClient: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}

// URL joins path and query onto the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// GetJSON decodes the response body of a GET into out.
func (c *Client) GetJSON(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	return c.SendJSON(ctx, operation, http.MethodGet, path, query, nil, out)
}

// Put sends a body-less PUT, the shape the status endpoint expects.
func (c *Client) Put(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	return c.SendJSON(ctx, operation, http.MethodPut, path, query, nil, out)
}

// SendJSON marshals in (when non-nil) as the request body and decodes the
// response into out (when non-nil).
func (c *Client) SendJSON(ctx context.Context, operation, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("encode %s request", operation), err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.URL(path, query), body)
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("build %s request", operation), err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.DoWithContext(ctx, req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.NewTimeoutError(operation, err)
		}
		return apperrors.NewRepositoryUnavailableError(operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewRepositoryUnavailableError(operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope apperrors.ErrorBody
		if len(raw) > 0 && json.Unmarshal(raw, &envelope) == nil {
			return apperrors.FromHTTPStatus(operation, resp.StatusCode, &envelope)
		}
		return apperrors.FromHTTPStatus(operation, resp.StatusCode, nil)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("decode %s response", operation), err)
	}
	return nil
}
