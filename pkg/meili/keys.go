package meili

import (
	"context"
	"fmt"
	"net/url"
)

const keyPageSize = 100

// CreateKey creates a new API key.
func (c *Client) CreateKey(ctx context.Context, key KeyCreate) (*Key, error) {
	if key.Indexes == nil {
		key.Indexes = []string{}
	}
	if key.Actions == nil {
		key.Actions = []string{}
	}

	var result Key
	if err := c.post(ctx, "keys", nil, key, &result); err != nil {
		return nil, fmt.Errorf("create key failed: %w", err)
	}
	return &result, nil
}

// GetKeys returns every API key, following pagination.
func (c *Client) GetKeys(ctx context.Context) ([]Key, error) {
	var all []Key
	params := pageParams{Offset: 0, Limit: keyPageSize}
	for {
		var page KeysResults
		if err := c.get(ctx, "keys", params, &page); err != nil {
			return nil, fmt.Errorf("list keys failed: %w", err)
		}
		all = append(all, page.Results...)

		if len(page.Results) == 0 || len(all) >= page.Total {
			return all, nil
		}
		params.Offset += len(page.Results)
	}
}

// GetKey fetches one key by its value or UID.
func (c *Client) GetKey(ctx context.Context, key string) (*Key, error) {
	var result Key
	if err := c.get(ctx, "keys/"+url.PathEscape(key), nil, &result); err != nil {
		return nil, fmt.Errorf("get key failed: %w", err)
	}
	return &result, nil
}

// UpdateKey updates the name and description of a key.
func (c *Client) UpdateKey(ctx context.Context, update KeyUpdate) (*Key, error) {
	if update.Key == "" {
		return nil, fmt.Errorf("key to update is required")
	}

	var result Key
	if err := c.patch(ctx, "keys/"+url.PathEscape(update.Key), update, &result); err != nil {
		return nil, fmt.Errorf("update key failed: %w", err)
	}
	return &result, nil
}

// DeleteKey deletes a key by its value or UID.
func (c *Client) DeleteKey(ctx context.Context, key string) error {
	if err := c.delete(ctx, "keys/"+url.PathEscape(key), nil); err != nil {
		return fmt.Errorf("delete key failed: %w", err)
	}
	return nil
}
