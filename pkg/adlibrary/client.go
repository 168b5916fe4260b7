// Package adlibrary provides a client for the public ad-library API used
// to discover competitor pages and ingest their active ads.
package adlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/adintel-cli/internal/resilience"
)

// Client defines the ad-library operations used by the pipeline.
type Client interface {
	// SearchPages finds advertiser pages matching a name query.
	SearchPages(ctx context.Context, query string, limit int) ([]Page, error)
	// GetActiveAds returns a page's currently running ads, up to limit.
	GetActiveAds(ctx context.Context, pageID string, limit int) ([]LibraryAd, error)
}

// Page is an advertiser page returned by page search.
type Page struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Verified bool   `json:"is_verified"`
	Likes    int    `json:"likes"`
}

// LibraryAd is one ad row from the library API.
type LibraryAd struct {
	ID         string   `json:"id"`
	PageID     string   `json:"page_id"`
	PageName   string   `json:"page_name"`
	Headline   string   `json:"ad_creative_link_title"`
	BodyText   string   `json:"ad_creative_body"`
	CTAText    string   `json:"ad_creative_link_caption"`
	ImageURL   string   `json:"ad_snapshot_url"`
	LandingURL string   `json:"ad_creative_link_url"`
	Platforms  []string `json:"publisher_platforms"`
	StartedAt  string   `json:"ad_delivery_start_time"`
	IsActive   bool     `json:"is_active"`
}

type envelope[T any] struct {
	Data   []T `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetry overrides the retry configuration.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates an ad-library client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://graph.facebook.com/v21.0",
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SearchPages(ctx context.Context, query string, limit int) ([]Page, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var env envelope[Page]
	if err := c.get(ctx, "/pages/search", params, &env); err != nil {
		return nil, eris.Wrapf(err, "adlibrary: search pages %q", query)
	}
	return env.Data, nil
}

func (c *httpClient) GetActiveAds(ctx context.Context, pageID string, limit int) ([]LibraryAd, error) {
	if pageID == "" {
		return nil, eris.New("adlibrary: page id is required")
	}

	// The library paginates; follow next links until limit is reached.
	params := url.Values{}
	params.Set("search_page_ids", pageID)
	params.Set("ad_active_status", "ACTIVE")
	params.Set("limit", strconv.Itoa(min(limit, 100)))

	var ads []LibraryAd
	path := "/ads_archive"
	for {
		var env envelope[LibraryAd]
		if err := c.get(ctx, path, params, &env); err != nil {
			return nil, eris.Wrapf(err, "adlibrary: get ads for page %s", pageID)
		}
		ads = append(ads, env.Data...)
		if len(ads) >= limit || env.Paging.Next == "" || len(env.Data) == 0 {
			break
		}
		next, err := url.Parse(env.Paging.Next)
		if err != nil {
			break
		}
		path = next.Path
		params = next.Query()
	}
	if len(ads) > limit {
		ads = ads[:limit]
	}
	return ads, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		params.Set("access_token", c.apiKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode()), nil)
		if err != nil {
			return eris.Wrap(err, "build request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return eris.Wrap(err, "read response")
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(
				eris.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)),
				resp.StatusCode,
			)
		}
		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return eris.Wrap(err, "decode response")
		}
		return nil
	})
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
