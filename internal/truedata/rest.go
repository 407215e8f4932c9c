package truedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// restTimeFormat is the DDMMYY HH:MM:SS layout the history API expects.
const restTimeFormat = "020106 15:04:05"

// RESTClient calls the TrueData history API.
type RESTClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

func NewRESTClient(baseURL, username, password string) *RESTClient {
	if baseURL == "" {
		baseURL = "https://history.truedata.in"
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CompanyAnnouncements fetches historical announcements for one symbol in
// the given window. Records come back as raw objects; decoding and
// validation stay with the caller so the stream and backfill paths share
// one codec.
func (c *RESTClient) CompanyAnnouncements(ctx context.Context, symbol string, from, to time.Time) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("user", c.username)
	q.Set("password", c.password)
	q.Set("symbol", symbol)
	q.Set("from", from.Format(restTimeFormat))
	q.Set("to", to.Format(restTimeFormat))
	q.Set("response", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/getannouncementsforcompanies2?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("history request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history fetch: unexpected status %d", resp.StatusCode)
	}

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("history decode: %w", err)
	}
	return recordsOf(raw)
}

// recordsOf accepts both response shapes the history API serves: a bare
// array and an object wrapping a Records array.
func recordsOf(raw any) ([]map[string]any, error) {
	var list []any
	switch t := raw.(type) {
	case []any:
		list = t
	case map[string]any:
		for _, key := range []string{"Records", "records", "data"} {
			if arr, ok := t[key].([]any); ok {
				list = arr
				break
			}
		}
		if list == nil {
			return nil, fmt.Errorf("history decode: no records array in response")
		}
	default:
		return nil, fmt.Errorf("history decode: unexpected response shape")
	}

	records := make([]map[string]any, 0, len(list))
	for _, el := range list {
		if m, ok := el.(map[string]any); ok {
			records = append(records, m)
		}
	}
	return records, nil
}

// Attachment downloads an announcement attachment, trying the newer
// announcementfile2 endpoint before the legacy one. Some deployments answer
// with a JSON {url} pointer instead of the bytes; those are followed.
func (c *RESTClient) Attachment(ctx context.Context, attachmentID string) ([]byte, string, error) {
	var lastErr error
	for _, endpoint := range []string{"announcementfile2", "announcementfile"} {
		data, contentType, err := c.fetchAttachment(ctx, endpoint, attachmentID)
		if err == nil {
			return data, contentType, nil
		}
		lastErr = err
	}
	return nil, "", lastErr
}

func (c *RESTClient) fetchAttachment(ctx context.Context, endpoint, attachmentID string) ([]byte, string, error) {
	q := url.Values{}
	q.Set("user", c.username)
	q.Set("password", c.password)
	q.Set("attachment", attachmentID)

	data, contentType, err := c.get(ctx, c.baseURL+"/"+endpoint+"?"+q.Encode())
	if err != nil {
		return nil, "", err
	}

	if strings.Contains(contentType, "application/json") {
		var pointer struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(data, &pointer); err == nil && pointer.URL != "" {
			return c.get(ctx, pointer.URL)
		}
		return nil, "", fmt.Errorf("attachment %s: unexpected json response from %s", attachmentID, endpoint)
	}
	return data, contentType, nil
}

func (c *RESTClient) get(ctx context.Context, reqURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("attachment request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("attachment fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("attachment fetch: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("attachment read: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
