package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MaxResponseSize caps how much of a ledger response we are willing to read (4MB).
const MaxResponseSize = 4 << 20

// HTTPClient queries the ledger gateway over HTTP.
//
// GET {base}/v1/blocks?start=S&length=N -> {"blocks": [...]}
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a ledger client for the given gateway base URL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type queryBlocksResponse struct {
	Blocks []Block `json:"blocks"`
}

// QueryBlocks implements Client.
func (c *HTTPClient) QueryBlocks(ctx context.Context, start, length uint64) ([]Block, error) {
	q := url.Values{}
	q.Set("start", strconv.FormatUint(start, 10))
	q.Set("length", strconv.FormatUint(length, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/blocks?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build ledger query: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger query failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ledger query returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read ledger response: %w", err)
	}

	var parsed queryBlocksResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode ledger response: %w", err)
	}

	return parsed.Blocks, nil
}

// Compile-time assertion that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
