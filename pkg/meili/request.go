package meili

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/go-querystring/query"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeCSV    = "text/csv"
	contentTypeNDJSON = "application/x-ndjson"
)

// get performs an HTTP GET request. params is encoded with go-querystring url tags.
func (c *Client) get(ctx context.Context, path string, params any, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, params, nil, result)
}

// post performs an HTTP POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, params any, body any, result any) error {
	return c.doJSON(ctx, http.MethodPost, path, params, body, result)
}

// put performs an HTTP PUT request with a JSON body.
func (c *Client) put(ctx context.Context, path string, params any, body any, result any) error {
	return c.doJSON(ctx, http.MethodPut, path, params, body, result)
}

// patch performs an HTTP PATCH request with a JSON body.
func (c *Client) patch(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPatch, path, nil, body, result)
}

// delete performs an HTTP DELETE request.
func (c *Client) delete(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, result)
}

// doJSON marshals body (unless nil) and sends the request.
func (c *Client) doJSON(ctx context.Context, method, path string, params any, body any, result any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
		contentType = contentTypeJSON
	}

	return c.send(ctx, method, path, params, reader, contentType, result)
}

// send builds, executes and decodes a request.
func (c *Client) send(ctx context.Context, method, path string, params any, body io.Reader, contentType string, result any) error {
	req, err := c.newRequest(ctx, method, path, params, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.doRequest(req, result)
}

// newRequest creates a new HTTP request with auth headers.
func (c *Client) newRequest(ctx context.Context, method, path string, params any, body io.Reader) (*http.Request, error) {
	endpoint := c.baseURL + "/" + path
	if params != nil {
		values, err := query.Values(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query parameters: %w", err)
		}
		if encoded := values.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", c.userAgent)

	return req, nil
}

// doRequest executes an HTTP request and decodes the response.
func (c *Client) doRequest(req *http.Request, result any) error {
	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("MeiliSearch: HTTP request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", req.URL.String()).Msg("MeiliSearch: HTTP request failed")
		return &CommunicationError{Method: req.Method, URL: redactURL(req.URL), Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Str("content_type", resp.Header.Get("Content-Type")).
		Msg("MeiliSearch: HTTP response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp)
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("code", apiErr.Code).
			Str("message", apiErr.Message).
			Msg("MeiliSearch: HTTP error response")
		return apiErr
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if err == io.EOF {
			return nil
		}
		c.logger.Error().Err(err).Msg("MeiliSearch: Failed to decode response")
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// decodeAPIError maps an error response to an *APIError. Bodies that are not
// MeiliSearch error objects are kept verbatim as the message.
func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode}

	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(bytes.TrimSpace(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	apiErr.StatusCode = resp.StatusCode

	return apiErr
}

func redactURL(u *url.URL) string {
	clean := *u
	clean.User = nil
	return clean.String()
}
