package httpapi

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

	"github.com/AbdelazizMoustafa10m/Sentinel/internal/buildinfo"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/finding"
	"github.com/AbdelazizMoustafa10m/Sentinel/internal/workflow"
)

// APIError is a non-2xx response decoded from an ErrorBody.
type APIError struct {
	Status int
	ErrorDetail
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to a running Sentinel server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for addr, which may be a host:port or a full
// http(s) URL.
func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{base: base, http: &http.Client{Timeout: 10 * time.Second}}
}

// Health fetches /healthz.
func (c *Client) Health(ctx context.Context) (HealthBody, error) {
	var out HealthBody
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &out)
	return out, err
}

// ListFindings fetches /v1/findings filtered by an optional glob and status.
func (c *Client) ListFindings(ctx context.Context, match, status string) ([]finding.Finding, error) {
	q := url.Values{}
	if match != "" {
		q.Set("match", match)
	}
	if status != "" {
		q.Set("status", status)
	}
	path := "/v1/findings"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []finding.Finding
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// GetFinding fetches one finding.
func (c *Client) GetFinding(ctx context.Context, id string) (finding.Finding, error) {
	var out finding.Finding
	err := c.do(ctx, http.MethodGet, "/v1/findings/"+url.PathEscape(id), nil, &out)
	return out, err
}

// ReopenFinding restores a Fixed or Muted finding to Open.
func (c *Client) ReopenFinding(ctx context.Context, id string) (finding.Finding, error) {
	var out finding.Finding
	err := c.do(ctx, http.MethodPost, "/v1/findings/"+url.PathEscape(id)+"/reopen", nil, &out)
	return out, err
}

// StartRun starts a run and returns its initial snapshot.
func (c *Client) StartRun(ctx context.Context, req StartRunRequest) (workflow.Run, error) {
	var out workflow.Run
	err := c.do(ctx, http.MethodPost, "/v1/runs", req, &out)
	return out, err
}

// GetRun fetches a run snapshot.
func (c *Client) GetRun(ctx context.Context, id string) (workflow.Run, error) {
	var out workflow.Run
	err := c.do(ctx, http.MethodGet, "/v1/runs/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.GetInfo().UserAgent())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb ErrorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error.Code != "" {
			apiErr.ErrorDetail = eb.Error
		} else {
			apiErr.Code = http.StatusText(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
