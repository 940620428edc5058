// Package meili is a client for the MeiliSearch HTTP API.
//
// Every operation is one HTTP request translated to and from JSON. Write
// operations return a TaskInfo describing the server-side task; WaitForTask
// polls it until it reaches a terminal status. Document uploads can be split
// into fixed-size or payload-size-bounded batches which are sent sequentially.
package meili

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
)

const (
	defaultUserAgent = "meilikit"

	// indexTaskTimeout bounds the wait for index creation and primary key updates.
	indexTaskTimeout = 100 * time.Second

	indexPageSize = 100
)

type pageParams struct {
	Offset int `url:"offset"`
	Limit  int `url:"limit"`
}

// Client is an HTTP client for the MeiliSearch API.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	logger     *zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the key sent as a bearer token on every request.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithTimeout sets the HTTP client timeout. Zero means no timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger enables request logging.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a new MeiliSearch API client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("meilisearch URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid meilisearch URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid meilisearch URL %q: scheme and host are required", baseURL)
	}

	nop := zerolog.Nop()
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  defaultUserAgent,
		httpClient: cleanhttp.DefaultPooledClient(),
		logger:     &nop,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the server URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections held by the client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Health returns the health of the MeiliSearch server.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var result Health
	if err := c.get(ctx, "health", nil, &result); err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return &result, nil
}

// IsHealthy reports whether the server answers the health endpoint with "available".
func (c *Client) IsHealthy(ctx context.Context) bool {
	health, err := c.Health(ctx)
	return err == nil && health.Status == "available"
}

// Version returns the MeiliSearch version.
func (c *Client) Version(ctx context.Context) (*Version, error) {
	var result Version
	if err := c.get(ctx, "version", nil, &result); err != nil {
		return nil, fmt.Errorf("get version failed: %w", err)
	}
	return &result, nil
}

// Stats returns the database size and the stats of all indexes.
func (c *Client) Stats(ctx context.Context) (*ClientStats, error) {
	var result ClientStats
	if err := c.get(ctx, "stats", nil, &result); err != nil {
		return nil, fmt.Errorf("get stats failed: %w", err)
	}
	return &result, nil
}

// CreateDump triggers the creation of a dump.
func (c *Client) CreateDump(ctx context.Context) (*TaskInfo, error) {
	var result TaskInfo
	if err := c.post(ctx, "dumps", nil, nil, &result); err != nil {
		return nil, fmt.Errorf("create dump failed: %w", err)
	}
	return &result, nil
}

// Index returns a local handle to the index identified by uid. No request is made.
func (c *Client) Index(uid string) *Index {
	return newIndex(c, IndexInfo{UID: uid})
}

// CreateIndex creates an index, waits for the creation task and returns the new index.
func (c *Client) CreateIndex(ctx context.Context, uid, primaryKey string) (*Index, error) {
	payload := map[string]string{"uid": uid}
	if primaryKey != "" {
		payload["primaryKey"] = primaryKey
	}

	var task TaskInfo
	if err := c.post(ctx, "indexes", nil, payload, &task); err != nil {
		return nil, fmt.Errorf("create index %s failed: %w", uid, err)
	}

	if _, err := c.waitForSuccess(ctx, task.TaskUID, indexTaskTimeout); err != nil {
		return nil, fmt.Errorf("failed to wait for index creation: %w", err)
	}

	c.logger.Info().Str("index", uid).Int64("task", task.TaskUID).Msg("MeiliSearch index created")
	return c.GetIndex(ctx, uid)
}

// GetIndex fetches a single index.
func (c *Client) GetIndex(ctx context.Context, uid string) (*Index, error) {
	return c.Index(uid).FetchInfo(ctx)
}

// GetIndexes returns all indexes. The result is empty when the server has none.
func (c *Client) GetIndexes(ctx context.Context) ([]*Index, error) {
	infos, err := c.GetRawIndexes(ctx)
	if err != nil {
		return nil, err
	}

	indexes := make([]*Index, 0, len(infos))
	for _, info := range infos {
		indexes = append(indexes, newIndex(c, info))
	}
	return indexes, nil
}

// GetRawIndex returns the index information, or nil if the index does not exist.
func (c *Client) GetRawIndex(ctx context.Context, uid string) (*IndexInfo, error) {
	var result IndexInfo
	if err := c.get(ctx, "indexes/"+url.PathEscape(uid), nil, &result); err != nil {
		if IsAPIErrorCode(err, CodeIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get index %s failed: %w", uid, err)
	}
	return &result, nil
}

// GetRawIndexes returns the information of every index, following pagination.
func (c *Client) GetRawIndexes(ctx context.Context) ([]IndexInfo, error) {
	var all []IndexInfo
	params := pageParams{Offset: 0, Limit: indexPageSize}
	for {
		var page struct {
			Results []IndexInfo `json:"results"`
			Total   int         `json:"total"`
		}
		if err := c.get(ctx, "indexes", params, &page); err != nil {
			return nil, fmt.Errorf("list indexes failed: %w", err)
		}
		all = append(all, page.Results...)

		if len(page.Results) == 0 || len(all) >= page.Total {
			return all, nil
		}
		params.Offset += len(page.Results)
	}
}

// GetOrCreateIndex fetches the index, creating it only when the server reports it missing.
func (c *Client) GetOrCreateIndex(ctx context.Context, uid, primaryKey string) (*Index, error) {
	index, err := c.GetIndex(ctx, uid)
	if err == nil {
		return index, nil
	}
	if !IsAPIErrorCode(err, CodeIndexNotFound) {
		return nil, err
	}
	return c.CreateIndex(ctx, uid, primaryKey)
}

// DeleteIndexIfExists deletes an index and reports whether a deletion happened.
func (c *Client) DeleteIndexIfExists(ctx context.Context, uid string) (bool, error) {
	return c.Index(uid).DeleteIfExists(ctx)
}
