// Package apiclient is the bearer-authenticated HTTP client of the boarding API.
// Every failure is reported as one of the ports sentinel errors.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bus-boarding/internal/ports"

	"github.com/google/uuid"
)

// Client calls the boarding API.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a client for baseURL. timeout bounds each HTTP exchange.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	return &Client{base: u, http: &http.Client{Timeout: timeout}}, nil
}

// StatusError carries the HTTP status and server message behind a sentinel.
type StatusError struct {
	Status  int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (HTTP %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%v (HTTP %d): %s", e.kind, e.Status, e.Message)
}

func (e *StatusError) Unwrap() error { return e.kind }

// classify maps a non-2xx status onto a sentinel. notFound is returned for 404.
func classify(status int, msg string, notFound error) error {
	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ports.ErrUnauthenticated
	case status == http.StatusNotFound:
		kind = notFound
	case status == http.StatusConflict:
		kind = ports.ErrConflict
	case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		kind = ports.ErrTransient
	default:
		kind = ports.ErrInvalidInput
	}
	return &StatusError{Status: status, Message: msg, kind: kind}
}

// do sends one request. body is JSON-encoded when non-nil and out is decoded on 2xx.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body, out any, notFound error) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ports.ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ports.ErrTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		return classify(resp.StatusCode, e.Error, notFound)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ports.ErrTransient, err)
	}
	return nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (ports.AuthResult, error) {
	var out ports.AuthResult
	err := c.do(ctx, http.MethodPost, "/login", nil, "",
		map[string]string{"email": email, "password": password}, &out, ports.ErrNotFound)
	return out, err
}

// Nearby lists vehicles of line around center.
func (c *Client) Nearby(ctx context.Context, token string, lat, lon, radiusKM float64, line string) (ports.NearbyResult, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("radius_km", strconv.FormatFloat(radiusKM, 'f', -1, 64))
	if line != "" {
		q.Set("line", line)
	}

	var out ports.NearbyResult
	err := c.do(ctx, http.MethodGet, "/vehicles/nearby", q, token, nil, &out, ports.ErrNotFound)
	return out, err
}

// CreateRequest files or replaces the caller's boarding request.
func (c *Client) CreateRequest(ctx context.Context, token, origin, line string) (ports.CreateRequestResult, error) {
	body := struct {
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
		Requested   bool   `json:"requested"`
	}{Origin: origin, Destination: line, Requested: true}

	var out ports.CreateRequestResult
	err := c.do(ctx, http.MethodPost, "/requests", nil, token, body, &out, ports.ErrNotFound)
	return out, err
}

// Current returns the caller's boarding request.
func (c *Client) Current(ctx context.Context, token string) (ports.RequestView, error) {
	var out ports.RequestView
	err := c.do(ctx, http.MethodGet, "/requests/current", nil, token, nil, &out, ports.ErrNotFound)
	return out, err
}

// Confirm confirms boarding on line.
func (c *Client) Confirm(ctx context.Context, token, line string) (ports.ConfirmResult, error) {
	var out ports.ConfirmResult
	err := c.do(ctx, http.MethodPut, "/requests/current", nil, token,
		map[string]string{"line_id": line}, &out, ports.ErrNoActiveRequest)
	return out, err
}

// IsUnauthenticated reports whether err ends the session.
func IsUnauthenticated(err error) bool { return errors.Is(err, ports.ErrUnauthenticated) }
