package main

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

	"rental-quote-backend/internal/domain"
)

// adminClient calls the server's HTTP admin and quote endpoints.
type adminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAdminClient(baseURL, token string, timeout time.Duration) *adminClient {
	return &adminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx response. Conflict responses still decode into out.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *adminClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
			Field string `json:"field"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
			if e.Field != "" {
				msg = e.Field + ": " + msg
			}
		}
		if resp.StatusCode == http.StatusConflict && out != nil {
			_ = json.Unmarshal(data, out)
		}
		return &apiError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *adminClient) TriggerSync(ctx context.Context) (*domain.SyncResult, error) {
	var result domain.SyncResult
	err := c.do(ctx, http.MethodPost, "/api/v1/admin/sync", nil, nil, &result)
	return &result, err
}

func (c *adminClient) SyncStatus(ctx context.Context) (*domain.SyncStatus, error) {
	var status domain.SyncStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/sync/status", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *adminClient) CacheStats(ctx context.Context) (*domain.CacheStats, error) {
	var stats domain.CacheStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/cache/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *adminClient) ClearKey(ctx context.Context, key string) (*domain.ClearResult, error) {
	var result domain.ClearResult
	if err := c.do(ctx, http.MethodDelete, "/api/v1/admin/cache/keys/"+url.PathEscape(key), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *adminClient) ClearCatalog(ctx context.Context, confirm bool) (*domain.ClearResult, error) {
	var result domain.ClearResult
	query := url.Values{"confirm": {fmt.Sprint(confirm)}}
	if err := c.do(ctx, http.MethodDelete, "/api/v1/admin/cache/catalog", query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *adminClient) ClearLocations(ctx context.Context, pattern string) (*domain.ClearResult, error) {
	var result domain.ClearResult
	query := url.Values{"pattern": {pattern}}
	if err := c.do(ctx, http.MethodDelete, "/api/v1/admin/cache/locations", query, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *adminClient) Quote(ctx context.Context, req *domain.QuoteRequest) (*domain.QuoteResponse, error) {
	var quote domain.QuoteResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/quotes", nil, req, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}
