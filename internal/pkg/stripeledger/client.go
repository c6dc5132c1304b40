package stripeledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/causekit/causekit/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// Config holds Stripe API access settings. Built once at process start and
// passed into the client, never read from ambient state.
type Config struct {
	APIKey     string
	APIBaseURL string
	Timeout    time.Duration
	PageSize   int
}

// NewConfigFromEnv builds a Config from environment variables.
func NewConfigFromEnv() Config {
	return Config{
		APIKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		Timeout:    30 * time.Second,
		PageSize:   100,
	}
}

// Client fetches balance transactions from the Stripe API.
type Client struct {
	cfg Config

	HTTPClient *http.Client
}

// NewClient creates a Stripe ledger client.
func NewClient(cfg Config) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultStripeAPIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 100
	}
	return &Client{
		cfg: cfg,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type listResponse struct {
	Data    []balanceTransaction `json:"data"`
	HasMore bool                 `json:"has_more"`
}

// FetchEntries lists all balance transactions created inside the window,
// following Stripe's cursor pagination. An error here means the ledger could
// not be read; callers must treat the run as failed rather than reporting an
// empty ledger.
func (c *Client) FetchEntries(ctx context.Context, start, end time.Time) ([]LedgerEntry, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}

	var entries []LedgerEntry
	startingAfter := ""
	for {
		page, err := c.fetchPage(ctx, start, end, startingAfter)
		if err != nil {
			return nil, err
		}
		for _, txn := range page.Data {
			entries = append(entries, txn.toLedgerEntry())
		}
		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}
	return entries, nil
}

func (c *Client) fetchPage(ctx context.Context, start, end time.Time, startingAfter string) (*listResponse, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.APIBaseURL, "/") + "/balance_transactions")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("created[gte]", strconv.FormatInt(start.Unix(), 10))
	q.Set("created[lte]", strconv.FormatInt(end.Unix(), 10))
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	if startingAfter != "" {
		q.Set("starting_after", startingAfter)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe balance transactions request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out listResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("stripe balance transactions response invalid: %w", err)
	}
	return &out, nil
}
