package logstf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/logarchive/internal/domain"
)

// Config holds configuration for the logs.tf client.
type Config struct {
	APIHost      string
	ArtifactHost string // defaults to APIHost
	ListingPath  string // e.g. /api/v1/log
	RecordPath   string // must contain {id}
	ArtifactPath string // must contain {id}
	Timeout      time.Duration
	UserAgent    string
}

// Client implements source.LogSource over the logs.tf HTTP API.
type Client struct {
	api          *resty.Client
	artifacts    *resty.Client
	listingPath  string
	recordPath   string
	artifactPath string
}

// NewClient creates a new logs.tf client. One client is reused for all calls.
// Parameters:
//   - cfg: hosts, path templates, timeout and user agent.
// Returns:
//   - *Client: client with separate API and artifact HTTP clients.
func NewClient(cfg *Config) *Client {
	artifactHost := cfg.ArtifactHost
	if artifactHost == "" {
		artifactHost = cfg.APIHost
	}
	return &Client{
		api:          newRestyClient(cfg.APIHost, cfg),
		artifacts:    newRestyClient(artifactHost, cfg),
		listingPath:  cfg.ListingPath,
		recordPath:   cfg.RecordPath,
		artifactPath: cfg.ArtifactPath,
	}
}

func newRestyClient(host string, cfg *Config) *resty.Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(host, "/"))
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return client
}

// listing is the logs.tf listing response shape.
type listing struct {
	Success *bool `json:"success"`
	Logs    []struct {
		ID   int64 `json:"id"`
		Date int64 `json:"date"`
	} `json:"logs"`
	Error string `json:"error,omitempty"`
}

// ListRecent fetches the newest limit log summaries, newest first.
func (c *Client) ListRecent(ctx context.Context, limit int) ([]domain.LogSummary, error) {
	const op = "list logs"

	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		Get(c.listingPath)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, op, err)
	}
	if !resp.IsSuccess() {
		return nil, domain.NewError(domain.KindProtocol, op, fmt.Errorf("status %d", resp.StatusCode()))
	}

	var l listing
	if err := json.Unmarshal(resp.Body(), &l); err != nil {
		return nil, domain.NewError(domain.KindProtocol, op, fmt.Errorf("failed to decode listing: %w", err))
	}
	if l.Success == nil {
		return nil, domain.NewError(domain.KindProtocol, op, errors.New("listing has no success flag"))
	}
	if !*l.Success {
		msg := "upstream reported success=false"
		if l.Error != "" {
			msg += ": " + l.Error
		}
		return nil, domain.NewError(domain.KindProtocol, op, errors.New(msg))
	}

	summaries := make([]domain.LogSummary, 0, len(l.Logs))
	for _, entry := range l.Logs {
		summaries = append(summaries, domain.LogSummary{
			ID:        entry.ID,
			CreatedAt: time.Unix(entry.Date, 0).UTC(),
		})
	}
	return summaries, nil
}

// FetchBody fetches one log's JSON document. Any non-2xx status or body that
// is not valid JSON is a protocol error; 404 gets no special treatment.
func (c *Client) FetchBody(ctx context.Context, id int64) ([]byte, error) {
	const op = "fetch log"

	resp, err := c.api.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Get(c.recordPath)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, op, fmt.Errorf("log %d: %w", id, err))
	}
	if !resp.IsSuccess() {
		return nil, domain.NewError(domain.KindProtocol, op, fmt.Errorf("log %d: status %d", id, resp.StatusCode()))
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, domain.NewError(domain.KindProtocol, op, fmt.Errorf("log %d: response is not valid JSON", id))
	}
	return body, nil
}

// FetchArtifact downloads the zipped log file for id. The bytes are not
// inspected here.
func (c *Client) FetchArtifact(ctx context.Context, id int64) ([]byte, error) {
	const op = "fetch artifact"

	resp, err := c.artifacts.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Get(c.artifactPath)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, op, fmt.Errorf("log %d: %w", id, err))
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, domain.NewError(domain.KindTransport, op, fmt.Errorf("log %d: status %d", id, resp.StatusCode()))
	}
	return resp.Body(), nil
}
