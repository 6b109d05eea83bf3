// Package sheets is a thin client for the spreadsheet values API. Every
// roster row and every audit row in the system goes through this package.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rollcall/internal/metrics"
)

// APIError is a non-2xx response from the values API. Reason carries the
// machine-readable cause when the API provides one (e.g. rateLimitExceeded).
type APIError struct {
	StatusCode int
	Status     string
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("sheets api error %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("sheets api error %d: %s", e.StatusCode, e.Message)
}

// IsQuotaError reports whether err is the remote store signalling its own
// rate or quota limit, as opposed to any other remote failure.
func IsQuotaError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusTooManyRequests ||
		apiErr.Reason == "rateLimitExceeded" ||
		apiErr.Reason == "RESOURCE_EXHAUSTED"
}

// TokenSource supplies bearer tokens for API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, used against emulators and in tests.
type StaticToken string

// Token returns the fixed token.
func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// ValueRange is one range of cells with its values, as the API represents it.
type ValueRange struct {
	Range  string     `json:"range"`
	Values [][]string `json:"values"`
}

// Client calls the spreadsheet values API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	tokens  TokenSource
}

// New creates a client. tokens may be nil when the backing API needs no auth.
func New(baseURL string, tokens TokenSource) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
	}
}

// Get reads a range of cells. Missing trailing cells come back as short rows,
// exactly as the API returns them.
func (c *Client) Get(ctx context.Context, sheetID, rangeSpec string) ([][]string, error) {
	var out struct {
		Values [][]any `json:"values"`
	}
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s", url.PathEscape(sheetID), url.PathEscape(rangeSpec))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return stringRows(out.Values), nil
}

// Update writes values into a single range with RAW value input.
func (c *Client) Update(ctx context.Context, sheetID, rangeSpec string, values [][]string) error {
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s?valueInputOption=RAW",
		url.PathEscape(sheetID), url.PathEscape(rangeSpec))
	body := map[string]any{"values": values}
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// BatchUpdate writes several ranges in one round trip. The roster contact
// propagation depends on this being a single call, not N updates.
func (c *Client) BatchUpdate(ctx context.Context, sheetID string, data []ValueRange) error {
	if len(data) == 0 {
		return nil
	}
	path := fmt.Sprintf("/v4/spreadsheets/%s/values:batchUpdate", url.PathEscape(sheetID))
	body := map[string]any{"valueInputOption": "RAW", "data": data}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// Append appends one or more rows after the last row of the given range.
func (c *Client) Append(ctx context.Context, sheetID, rangeSpec string, values [][]string) error {
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s:append?valueInputOption=RAW&insertDataOption=INSERT_ROWS",
		url.PathEscape(sheetID), url.PathEscape(rangeSpec))
	body := map[string]any{"values": values}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("sheets token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.StoreRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("sheets request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.StoreRequests.WithLabelValues(method, "error").Inc()
		return decodeAPIError(resp)
	}
	metrics.StoreRequests.WithLabelValues(method, "ok").Inc()
	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(raw)),
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
		apiErr.Status = body.Error.Status
		if len(body.Error.Errors) > 0 {
			apiErr.Reason = body.Error.Errors[0].Reason
		}
		if apiErr.Reason == "" {
			apiErr.Reason = body.Error.Status
		}
	}
	return apiErr
}

func stringRows(values [][]any) [][]string {
	rows := make([][]string, len(values))
	for i, raw := range values {
		row := make([]string, len(raw))
		for j, cell := range raw {
			switch v := cell.(type) {
			case string:
				row[j] = v
			case nil:
				row[j] = ""
			default:
				row[j] = fmt.Sprint(v)
			}
		}
		rows[i] = row
	}
	return rows
}
