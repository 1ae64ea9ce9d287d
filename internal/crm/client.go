package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sparkprog/go-crmsync-backend/internal/model"
)

// Page is one batch of remote records. NextCursor is the external ID of the
// last record in the page; passing it back fetches the records after it.
type Page struct {
	Records    []model.RemoteRecord `json:"records"`
	NextCursor string               `json:"next_cursor"`
	HasMore    bool                 `json:"has_more"`
}

// Client is the abstract fetch capability the sync engine consumes. The
// remote source must return records sorted ascending by external ID and
// filtered to external_id > cursor AND (since == nil OR last_modified >=
// since).
type Client interface {
	FetchPage(ctx context.Context, entityType model.EntityType, cursor string, since *time.Time, limit int) (*Page, error)
}

// StatusError is a non-2xx response from the CRM export API. Status codes
// below 500 (bad token, bad request) are not worth retrying.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm api error %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether a retry could plausibly succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// HTTPClient fetches export pages from the CRM's JSON REST feed.
type HTTPClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *HTTPClient) FetchPage(ctx context.Context, entityType model.EntityType, cursor string, since *time.Time, limit int) (*Page, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("after", cursor)
	}
	if since != nil {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	q.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/export/%s?%s", c.BaseURL, entityType, q.Encode())
	body, err := c.doRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse %s export page: %w", entityType, err)
	}
	// Some feed versions omit next_cursor; fall back to the last record.
	if page.NextCursor == "" && len(page.Records) > 0 {
		page.NextCursor = page.Records[len(page.Records)-1].ExternalID()
	}
	return &page, nil
}

func (c *HTTPClient) doRequest(ctx context.Context, method, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")

	res, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: res.StatusCode, Body: string(body)}
	}
	return body, nil
}
