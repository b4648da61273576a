package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"auto_newsletter_digest/models"
)

// Options configures a Collector. Zero values fall back to the defaults below.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	FetchDelay time.Duration
	MaxText    int
	MaxLinks   int
	Client     *http.Client
}

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxText  = 5000
	defaultMaxLinks = 20
	maxBodyBytes    = 10 << 20
)

// Collector fetches sources one at a time with a courtesy pause between requests.
type Collector struct {
	client    *http.Client
	userAgent string
	delay     time.Duration
	maxText   int
	maxLinks  int
	logger    arbor.ILogger
}

func New(opts Options, logger arbor.ILogger) *Collector {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxText <= 0 {
		opts.MaxText = defaultMaxText
	}
	if opts.MaxLinks < 0 {
		opts.MaxLinks = 0
	} else if opts.MaxLinks == 0 {
		opts.MaxLinks = defaultMaxLinks
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Collector{
		client:    client,
		userAgent: opts.UserAgent,
		delay:     opts.FetchDelay,
		maxText:   opts.MaxText,
		maxLinks:  opts.MaxLinks,
		logger:    logger,
	}
}

// Collect fetches every url in order. It never fails as a whole: each failure is
// recorded in its SourceResult and the caller decides whether enough succeeded.
func (c *Collector) Collect(ctx context.Context, urls []string) []models.SourceResult {
	results := make([]models.SourceResult, 0, len(urls))
	for i, u := range urls {
		if i > 0 {
			if err := c.pause(ctx); err != nil {
				results = append(results, failed(u, err))
				continue
			}
		}
		c.logger.Info().Int("index", i+1).Int("total", len(urls)).Str("url", u).Msg("Fetching source")

		res := c.Fetch(ctx, u)
		if !res.Success {
			c.logger.Warn().Str("url", u).Str("error", res.Err).Msg("Source skipped")
		}
		results = append(results, res)
	}
	return results
}

// pause waits one full delay measured from now, so a slow fetch never eats into
// the gap before the next request.
func (c *Collector) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	gap := rate.NewLimiter(rate.Every(c.delay), 1)
	gap.Allow()
	return gap.Wait(ctx)
}

// Fetch performs a single GET of pageURL and extracts its text and links.
func (c *Collector) Fetch(ctx context.Context, pageURL string) models.SourceResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return failed(pageURL, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return failed(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed(pageURL, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	text, links, err := extract(io.LimitReader(resp.Body, maxBodyBytes), pageURL, c.maxText, c.maxLinks)
	if err != nil {
		return failed(pageURL, err)
	}

	c.logger.Debug().
		Str("url", pageURL).
		Int("text_len", len(text)).
		Int("links", len(links)).
		Dur("elapsed", time.Since(start)).
		Msg("Source fetched")

	return models.SourceResult{
		URL:     pageURL,
		Text:    text,
		Links:   links,
		Success: true,
	}
}

func failed(pageURL string, err error) models.SourceResult {
	return models.SourceResult{
		URL:   pageURL,
		Links: []models.Link{},
		Err:   err.Error(),
	}
}
