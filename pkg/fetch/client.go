// Package fetch talks to the remote analytical API and turns planned tasks
// into flat records ready for the warehouse.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	jsoniter "github.com/json-iterator/go"

	"invezgo-pipeline/pkg/schema"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	requestTimeout = 30 * time.Second
	retryAttempts  = 3
	retryBackoff   = 500 * time.Millisecond
)

// Client issues authenticated GETs against the analytical API and
// normalizes whatever shape comes back into a flat record list.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   *retrier.Retrier
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
		retry:   retrier.New(retrier.ExponentialBackoff(retryAttempts, retryBackoff), nil),
	}
}

// Fetch issues one GET with the resolved path and query parameters. The
// request is retried with exponential backoff before the failure surfaces
// as a task-level error.
func (c *Client) Fetch(ctx context.Context, path string, params map[string]string) ([]schema.Record, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}

	var body []byte
	err := c.retry.Run(func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			return doErr
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
		}

		body, reqErr = io.ReadAll(resp.Body)
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing response from %s: %w", path, err)
	}

	return normalizeResponse(payload), nil
}

// normalizeResponse flattens the API's response shapes: a bare array, an
// object wrapping the array under "data", or a single object.
func normalizeResponse(payload any) []schema.Record {
	switch v := payload.(type) {
	case map[string]any:
		if inner, ok := v["data"]; ok {
			if list, isList := inner.([]any); isList {
				return recordsFromList(list)
			}
			return []schema.Record{asRecord(inner)}
		}
		return []schema.Record{schema.Record(v)}
	case []any:
		return recordsFromList(v)
	default:
		return []schema.Record{asRecord(v)}
	}
}

func recordsFromList(list []any) []schema.Record {
	out := make([]schema.Record, 0, len(list))
	for _, item := range list {
		out = append(out, asRecord(item))
	}
	return out
}

func asRecord(v any) schema.Record {
	if m, ok := v.(map[string]any); ok {
		return schema.Record(m)
	}
	return schema.Record{"raw_data": fmt.Sprintf("%v", v)}
}
