// Package api provides a client for the reconstruction pipeline REST
// endpoints: listing and submitting reconstructions for a month period,
// deleting them, paginating temple contribution catalogs, and uploading
// group model artifacts.
//
// The client requires an opaque bearer token supplied by the auth
// collaborator; it performs no validation on the token. Write calls
// (delete, submit, upload) report failure without the caller having
// applied any optimistic local mutation, so registry state only moves on
// confirmed success.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/temple-recon/internal/recon"
)

const (
	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second

	// deleteConfirmation is the exact message the pipeline returns for a
	// successful deletion; any other shape is treated as failure.
	deleteConfirmation = "delete success"
)

// Client provides methods for the reconstruction pipeline API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a pipeline API client. token is the opaque bearer
// credential; baseURL has no trailing slash.
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: baseURL,
		token:   token,
	}
}

// --- API response types ---

// listResponse is the envelope for reconstruction list and detail calls.
type listResponse struct {
	Error string                  `json:"error,omitempty"`
	Datas []*recon.Reconstruction `json:"datas,omitempty"`
}

// messageResponse is the envelope for deletion and submission calls.
type messageResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// contributionsResponse is the envelope for catalog pagination calls.
type contributionsResponse struct {
	Error  string               `json:"error,omitempty"`
	Datas  []recon.Contribution `json:"datas"`
	IsNext bool                 `json:"is_next"`
}

// --- Reconstructions ---

// ListReconstructions fetches all reconstruction records for the given
// month period (YYYYMM).
func (c *Client) ListReconstructions(ctx context.Context, period string) ([]*recon.Reconstruction, error) {
	endpoint := "/reconstructions?month=" + url.QueryEscape(period)

	var resp listResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("list reconstructions: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("list reconstructions: pipeline error: %s", resp.Error)
	}
	log.Debug().Str("period", period).Int("count", len(resp.Datas)).Msg("Reconstructions listed")
	return resp.Datas, nil
}

// GetReconstruction fetches one reconstruction's authoritative state,
// used to reconcile remote group/contribution detail into the registry.
func (c *Client) GetReconstruction(ctx context.Context, id, period string) (*recon.Reconstruction, error) {
	endpoint := fmt.Sprintf("/reconstructions/%s?month=%s", url.PathEscape(id), url.QueryEscape(period))

	var resp listResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("get reconstruction %s: %w", id, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("get reconstruction %s: pipeline error: %s", id, resp.Error)
	}
	if len(resp.Datas) == 0 {
		return nil, fmt.Errorf("get reconstruction %s: not found", id)
	}
	return resp.Datas[0], nil
}

// DeleteReconstruction requests deletion of the reconstruction scoped to
// the month period. Success requires the pipeline's exact confirmation
// message; any other shape or non-2xx status is a failure.
func (c *Client) DeleteReconstruction(ctx context.Context, id, period string) error {
	endpoint := fmt.Sprintf("%s/reconstructions/%s?date=%s", c.baseURL, url.PathEscape(id), url.QueryEscape(period))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	body, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("delete failed with status %d (body: %s)", status, truncate(string(body), 200))
	}

	var resp messageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}
	if resp.Error != "" {
		return fmt.Errorf("pipeline error: %s", resp.Error)
	}
	if resp.Message != deleteConfirmation {
		return fmt.Errorf("unexpected deletion response: %q", resp.Message)
	}
	return nil
}

// SubmitReconstruction posts the serialized reconstruction — label,
// creator, configuration, and full group/contribution detail — to the
// pipeline. A 2xx status is required for success.
func (c *Client) SubmitReconstruction(ctx context.Context, r *recon.Reconstruction) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("serialize reconstruction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reconstructions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("submit failed with status %d (body: %s)", status, truncate(string(body), 200))
	}

	var resp messageResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
		}
		if resp.Error != "" {
			return fmt.Errorf("pipeline error: %s", resp.Error)
		}
	}
	log.Info().Str("reconstructionId", r.ReconstructionID).Msg("Reconstruction submitted to pipeline")
	return nil
}

// --- Contribution catalog ---

// ContributionPage is one page of a temple's contribution catalog.
type ContributionPage struct {
	Contributions []recon.Contribution
	IsNext        bool
}

// ListContributions fetches one page of a temple's contribution catalog,
// optionally filtered to a category (the "area" query parameter).
// Pagination terminates when the returned IsNext flag is false.
func (c *Client) ListContributions(ctx context.Context, templeID, page int, category string) (*ContributionPage, error) {
	endpoint := fmt.Sprintf("/private/contributions/list/%d?page=%d", templeID, page)
	if category != "" {
		endpoint += "&area=" + url.QueryEscape(category)
	}

	var resp contributionsResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("list contributions for temple %d: %w", templeID, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("list contributions for temple %d: pipeline error: %s", templeID, resp.Error)
	}
	return &ContributionPage{Contributions: resp.Datas, IsNext: resp.IsNext}, nil
}

// --- Internal helpers ---

// getJSON performs a GET against the endpoint and decodes the 2xx body
// into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	body, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("request failed with status %d (body: %s)", status, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}
	return nil
}

// do attaches the bearer token, executes the request, and returns the
// response body and status. Request/response pairs are logged at Debug.
func (c *Client) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)

	startTime := time.Now()
	log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("Pipeline API request")

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Pipeline API response")
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Pipeline API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, httpResp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, httpResp.StatusCode, nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
