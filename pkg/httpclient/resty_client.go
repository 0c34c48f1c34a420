// Package httpclient provides the resty-backed transport used to talk to a
// feature service. Query responses are decoded as JSON before being handed
// back; form posts return the raw body string, which callers parse
// themselves.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// FormTransport issues GET and form-encoded POST requests over resty.
type FormTransport struct {
	client *resty.Client
}

// NewFormTransport creates a transport with the specified request timeout.
func NewFormTransport(timeout time.Duration) *FormTransport {
	return &FormTransport{client: NewRestyHTTPClient(timeout)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing
// custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	return c
}

// GetJSON performs a GET with the given query parameters and returns the
// response body decoded as a JSON object.
func (t *FormTransport) GetJSON(ctx context.Context, rawURL string, query map[string]string) (map[string]any, error) {
	req := t.client.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http get status %d: %s", resp.StatusCode(), bodySnippet(resp.Body()))
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return body, nil
}

// PostForm performs a form-encoded POST and returns the raw body string.
func (t *FormTransport) PostForm(ctx context.Context, rawURL string, form url.Values) (string, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(rawURL)
	if err != nil {
		return "", fmt.Errorf("http post: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("http post status %d: %s", resp.StatusCode(), bodySnippet(resp.Body()))
	}
	return string(resp.Body()), nil
}

func bodySnippet(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}
