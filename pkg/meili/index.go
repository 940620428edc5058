package meili

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Index gives access to an index and its documents, settings and stats.
// The cached fields are refreshed by FetchInfo and Update; an Index is not
// safe for concurrent mutation.
type Index struct {
	UID        string
	PrimaryKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	client *Client
}

func newIndex(c *Client, info IndexInfo) *Index {
	return &Index{
		UID:        info.UID,
		PrimaryKey: info.PrimaryKey,
		CreatedAt:  info.CreatedAt,
		UpdatedAt:  info.UpdatedAt,
		client:     c,
	}
}

func (i *Index) String() string {
	return fmt.Sprintf("Index(uid=%s, primary_key=%s, created_at=%s, updated_at=%s)",
		i.UID, i.PrimaryKey, i.CreatedAt.Format(time.RFC3339), i.UpdatedAt.Format(time.RFC3339))
}

func (i *Index) path(parts ...string) string {
	p := "indexes/" + url.PathEscape(i.UID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (i *Index) apply(info IndexInfo) {
	i.PrimaryKey = info.PrimaryKey
	i.CreatedAt = info.CreatedAt
	i.UpdatedAt = info.UpdatedAt
}

// FetchInfo refreshes the index information from the server.
func (i *Index) FetchInfo(ctx context.Context) (*Index, error) {
	var info IndexInfo
	if err := i.client.get(ctx, i.path(), nil, &info); err != nil {
		return nil, fmt.Errorf("get index %s failed: %w", i.UID, err)
	}
	i.apply(info)
	return i, nil
}

// GetPrimaryKey fetches the current primary key. It is empty until inferred or set.
func (i *Index) GetPrimaryKey(ctx context.Context) (string, error) {
	if _, err := i.FetchInfo(ctx); err != nil {
		return "", err
	}
	return i.PrimaryKey, nil
}

// Update sets the primary key, waits for the task and refreshes the index.
func (i *Index) Update(ctx context.Context, primaryKey string) (*Index, error) {
	var task TaskInfo
	payload := map[string]string{"primaryKey": primaryKey}
	if err := i.client.patch(ctx, i.path(), payload, &task); err != nil {
		return nil, fmt.Errorf("update index %s failed: %w", i.UID, err)
	}

	if _, err := i.client.waitForSuccess(ctx, task.TaskUID, indexTaskTimeout); err != nil {
		return nil, fmt.Errorf("failed to wait for index update: %w", err)
	}

	return i.FetchInfo(ctx)
}

// Delete deletes the index.
func (i *Index) Delete(ctx context.Context) (*TaskInfo, error) {
	var task TaskInfo
	if err := i.client.delete(ctx, i.path(), &task); err != nil {
		return nil, fmt.Errorf("delete index %s failed: %w", i.UID, err)
	}
	return &task, nil
}

// DeleteIfExists deletes the index and reports whether it existed. The
// deletion task is awaited with the default timeout.
func (i *Index) DeleteIfExists(ctx context.Context) (bool, error) {
	task, err := i.Delete(ctx)
	if err != nil {
		if IsAPIErrorCode(err, CodeIndexNotFound) {
			return false, nil
		}
		return false, err
	}

	status, err := i.client.WaitForTask(ctx, task.TaskUID, WaitOptions{})
	if err != nil {
		return false, err
	}
	return status.Status == TaskStatusSucceeded, nil
}

// Stats returns the stats of the index.
func (i *Index) Stats(ctx context.Context) (*IndexStats, error) {
	var result IndexStats
	if err := i.client.get(ctx, i.path("stats"), nil, &result); err != nil {
		return nil, fmt.Errorf("get stats for %s failed: %w", i.UID, err)
	}
	return &result, nil
}

// Search searches the index. opts may be nil.
func (i *Index) Search(ctx context.Context, query string, opts *SearchRequest) (*SearchResults, error) {
	if opts == nil {
		opts = &SearchRequest{}
	}

	body := struct {
		Query string `json:"q"`
		*SearchRequest
	}{Query: query, SearchRequest: opts}

	var result SearchResults
	if err := i.client.post(ctx, i.path("search"), nil, body, &result); err != nil {
		return nil, fmt.Errorf("search in %s failed: %w", i.UID, err)
	}
	return &result, nil
}
