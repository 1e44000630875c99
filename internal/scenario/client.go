package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	service "github.com/okian/covergap/internal/app"
	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/model"
)

const requestIDHeader = "X-Request-ID"

// Client calls the covergap HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{base: baseURL, http: &http.Client{Timeout: timeout}}
}

// coverageRequest is the body of the coverage endpoints.
type coverageRequest struct {
	Bounds         geo.Bounds          `json:"bounds"`
	Params         *coverage.RawParams `json:"params,omitempty"`
	Target         string              `json:"optimization_target,omitempty"`
	IgnoreBoundary bool                `json:"ignore_boundary,omitempty"`
	Count          int                 `json:"count,omitempty"`
}

// BatchAck is the response to a batch submit.
type BatchAck struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
}

// Health reports whether /healthz answers 200.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	return drain(resp, http.StatusOK)
}

// PutStations replaces the station list.
func (c *Client) PutStations(ctx context.Context, stations []model.Station) error {
	resp, err := c.doJSON(ctx, http.MethodPut, "/v1/stations", map[string]any{"stations": stations})
	if err != nil {
		return err
	}
	return drain(resp, http.StatusOK)
}

// PutBoundary stores a GeoJSON boundary.
func (c *Client) PutBoundary(ctx context.Context, data []byte) error {
	resp, err := c.do(ctx, http.MethodPut, "/v1/boundary", bytes.NewReader(data))
	if err != nil {
		return err
	}
	return drain(resp, http.StatusOK)
}

// ClearBoundary removes the stored boundary.
func (c *Client) ClearBoundary(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/boundary", nil)
	if err != nil {
		return err
	}
	return drain(resp, http.StatusNoContent)
}

// SubmitIncidents posts a batch of incidents.
func (c *Client) SubmitIncidents(ctx context.Context, batch []model.Incident) (BatchAck, error) {
	var ack BatchAck
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/incidents", batch)
	if err != nil {
		return ack, err
	}
	return ack, decode(resp, http.StatusAccepted, &ack)
}

// Stats returns the /stats map.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	resp, err := c.do(ctx, http.MethodGet, "/stats", nil)
	if err != nil {
		return nil, err
	}
	return out, decode(resp, http.StatusOK, &out)
}

// Score requests the heat map for the viewport.
func (c *Client) Score(ctx context.Context, b geo.Bounds, target string) (service.ScoreResult, error) {
	var out service.ScoreResult
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/coverage/score", coverageRequest{Bounds: b, Target: target})
	if err != nil {
		return out, err
	}
	return out, decode(resp, http.StatusOK, &out)
}

// Suggest requests count new sites for the viewport.
func (c *Client) Suggest(ctx context.Context, b geo.Bounds, target string, count int) (service.SuggestResult, error) {
	var out service.SuggestResult
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/coverage/suggest", coverageRequest{Bounds: b, Target: target, Count: count})
	if err != nil {
		return out, err
	}
	return out, decode(resp, http.StatusOK, &out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", path, err)
	}
	return c.do(ctx, method, path, bytes.NewReader(data))
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequest, method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(requestIDHeader, uuid.NewString())
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequest, method, path, err)
	}
	return resp, nil
}

func drain(resp *http.Response, want int) error {
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("%w: %s: status %d: %s", ErrRequest, resp.Request.URL.Path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func decode(resp *http.Response, want int, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("%w: %s: status %d: %s", ErrRequest, resp.Request.URL.Path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrRequest, resp.Request.URL.Path, err)
	}
	return nil
}
