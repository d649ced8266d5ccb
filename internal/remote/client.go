// Package remote talks to a review backend over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"riistakamera/internal/annotator"
	"riistakamera/internal/wire"
)

const (
	DefaultTimeout = 10 * time.Second

	// SessionHeader carries the review session id on every request.
	SessionHeader = "X-Review-Session"

	maxImageBytes = 64 << 20
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Message)
}

// Client implements annotator.Collaborator against the backend's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessionID  string
	userAgent  string
}

var _ annotator.Collaborator = (*Client)(nil)

type Option func(*Client)

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "riistakamera/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithSessionID(id string) Option {
	return func(c *Client) {
		c.sessionID = id
	}
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.sessionID != "" {
		req.Header.Set(SessionHeader, c.sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseError(resp)
	}
	return resp, nil
}

func parseError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}
	var errResp wire.ErrorBody
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func imagePath(prefix, imageID string) string {
	return prefix + url.PathEscape(imageID)
}

func (c *Client) ListImages(ctx context.Context, filter annotator.Filter) ([]string, error) {
	endpoint := "/api/images"
	if filter != "" && filter != annotator.FilterAll {
		endpoint += "?filter=" + url.QueryEscape(string(filter))
	}
	var list wire.ImageList
	if err := c.getJSON(ctx, endpoint, &list); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return list.Images, nil
}

func (c *Client) GetAnnotations(ctx context.Context, imageID string) ([]annotator.Annotation, bool, error) {
	var file wire.AnnotationFile
	if err := c.getJSON(ctx, imagePath("/api/annotation/", imageID), &file); err != nil {
		return nil, false, fmt.Errorf("get annotations for %s: %w", imageID, err)
	}
	anns, empty := file.Decode()
	return anns, empty, nil
}

func (c *Client) GetPredictions(ctx context.Context, imageID string) ([]annotator.Prediction, error) {
	var file wire.PredictionFile
	if err := c.getJSON(ctx, imagePath("/api/predictions/", imageID), &file); err != nil {
		return nil, fmt.Errorf("get predictions for %s: %w", imageID, err)
	}
	return file.Decode(), nil
}

func (c *Client) SaveAnnotations(ctx context.Context, imageID string, anns []annotator.Annotation, isEmpty bool) error {
	resp, err := c.doRequest(ctx, http.MethodPost, imagePath("/api/annotation/", imageID), wire.NewAnnotationFile(imageID, anns, isEmpty))
	if err != nil {
		return fmt.Errorf("save annotations for %s: %w", imageID, err)
	}
	defer resp.Body.Close()
	var result wire.SaveResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.Success {
		return fmt.Errorf("save annotations for %s: backend did not confirm", imageID)
	}
	return nil
}

func (c *Client) GetStats(ctx context.Context) (annotator.Stats, error) {
	var s wire.Stats
	if err := c.getJSON(ctx, "/api/stats", &s); err != nil {
		return annotator.Stats{}, fmt.Errorf("get stats: %w", err)
	}
	return s.Decode(), nil
}

func (c *Client) GetUncertaintyRanking(ctx context.Context, limit int) ([]annotator.RankEntry, error) {
	endpoint := "/api/active-learning"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var r wire.Ranking
	if err := c.getJSON(ctx, endpoint, &r); err != nil {
		return nil, fmt.Errorf("get uncertainty ranking: %w", err)
	}
	out := make([]annotator.RankEntry, 0, len(r.Images))
	for _, e := range r.Images {
		out = append(out, e.Decode())
	}
	return out, nil
}

func (c *Client) GetImageBytes(ctx context.Context, imageID string) ([]byte, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, imagePath("/api/image/", imageID), nil)
	if err != nil {
		return nil, fmt.Errorf("get image %s: %w", imageID, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", imageID, err)
	}
	return data, nil
}
