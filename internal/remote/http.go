package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/tally/internal/model"
	"github.com/user/tally/internal/storage"
)

// DefaultTimeout bounds a single upload or download request.
const DefaultTimeout = 30 * time.Second

// HTTPClient talks to a JSON-over-HTTP table backend:
// PUT/GET <base>/<module>/<table-stem> with a bearer token.
type HTTPClient struct {
	base  string
	token string
	hc    *http.Client
}

// NewHTTPClient creates a client for the given base URL and API token.
func NewHTTPClient(base, token string) *HTTPClient {
	return &HTTPClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		hc:    &http.Client{Timeout: DefaultTimeout},
	}
}

// url maps a table key to its remote path; the file extension is
// dropped so "expenses/expenses.csv" lands at "expenses/expenses".
func (c *HTTPClient) url(key model.TableKey) string {
	stem := strings.TrimSuffix(key.File, filepath.Ext(key.File))
	return c.base + "/" + key.Module + "/" + stem
}

// Upload implements Client.
func (c *HTTPClient) Upload(ctx context.Context, key model.TableKey, payload *Payload) (bool, string) {
	body, err := payload.Encode()
	if err != nil {
		return false, fmt.Sprintf("encode failed: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url(key), bytes.NewReader(body))
	if err != nil {
		return false, fmt.Sprintf("request failed: %v", err)
	}
	c.setHeaders(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return false, fmt.Sprintf("connection error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("upload rejected: %s", resp.Status)
	}
	return true, fmt.Sprintf("uploaded %d records", payload.Metadata.RowCount)
}

// Download implements Client. A 404 means the remote copy is absent,
// which is reported as success with a nil payload.
func (c *HTTPClient) Download(ctx context.Context, key model.TableKey) (bool, *Payload, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(key), nil)
	if err != nil {
		return false, nil, fmt.Sprintf("request failed: %v", err)
	}
	c.setHeaders(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return false, nil, fmt.Sprintf("connection error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return true, nil, "no remote data"
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, nil, fmt.Sprintf("download rejected: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil, fmt.Sprintf("read failed: %v", err)
	}

	payload, err := Decode(body)
	if err != nil {
		return false, nil, fmt.Sprintf("decode failed: %v", err)
	}
	return true, payload, fmt.Sprintf("downloaded %d records", len(payload.Records))
}

// Hash implements Client by fetching only the payload metadata and
// fingerprinting its uploaded_at stamp. Returns "" when the remote
// copy is absent or the probe fails.
func (c *HTTPClient) Hash(ctx context.Context, key model.TableKey) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(key)+"/metadata", nil)
	if err != nil {
		return ""
	}
	c.setHeaders(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil || len(body) == 0 {
		return ""
	}
	return storage.FingerprintBytes(body)
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
