// Package crawler provides the candidate sources used by acquisitions: a web
// image search and a local folder walker.
package crawler

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
	"sync/atomic"
	"time"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lewtec/roteiro/internal/acquire"
	"github.com/lewtec/roteiro/internal/domain"
)

const (
	DefaultBingURL   = "https://www.bing.com/images/async"
	DefaultPageSize  = 35
	DefaultWorkers   = 4
	DefaultMaxBytes  = 20 << 20
	DefaultRateLimit = 8
	// pages that yield nothing new end the search early
	maxEmptyPages = 2
)

// DefaultMaxTotalBytes bounds what one fetch keeps in memory
const DefaultMaxTotalBytes = 512 << 20

var _ acquire.Source = (*BingSource)(nil)

// BingSource searches Bing Images and downloads the results
type BingSource struct {
	BaseURL  string
	Client   *http.Client
	Limiter  *rate.Limiter
	Workers  int
	PageSize int

	// MaxBytes caps a single download; larger images are dropped
	MaxBytes int64
	// MaxTotalBytes stops downloading once the kept images reach it
	MaxTotalBytes int64

	Logger *zap.Logger
}

// NewBingSource returns a source with default limits
func NewBingSource(client *http.Client, logger *zap.Logger) *BingSource {
	if client == nil {
		client = NewHTTPClient(30*time.Second, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BingSource{
		BaseURL:       DefaultBingURL,
		Client:        client,
		Limiter:       rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		Workers:       DefaultWorkers,
		PageSize:      DefaultPageSize,
		MaxBytes:      DefaultMaxBytes,
		MaxTotalBytes: DefaultMaxTotalBytes,
		Logger:        logger,
	}
}

// Fetch collects up to q.Count image URLs and downloads them in parallel.
// Candidates keep the search rank order; failed downloads are left out, and
// so is everything past MaxTotalBytes.
func (b *BingSource) Fetch(ctx context.Context, q acquire.Query) ([]domain.Candidate, error) {
	urls, err := b.search(ctx, q)
	if err != nil {
		return nil, err
	}
	b.logger().Info("search finished", zap.String("term", q.Term), zap.Int("urls", len(urls)))

	budget := b.MaxTotalBytes
	if budget <= 0 {
		budget = DefaultMaxTotalBytes
	}
	var kept atomic.Int64
	var overBudget atomic.Int32

	results := make([]*domain.Candidate, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.Workers, 1))
	for i, u := range urls {
		g.Go(func() error {
			if kept.Load() >= budget {
				overBudget.Add(1)
				return nil
			}
			data, ext, err := b.download(gctx, u)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.logger().Debug("download skipped", zap.String("url", u), zap.Error(err))
				return nil
			}
			// an overflowing image is dropped but still counted, which
			// keeps later downloads from starting
			if kept.Add(int64(len(data))) > budget {
				overBudget.Add(1)
				return nil
			}
			results[i] = &domain.Candidate{Filename: ext, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("while downloading images: %w", err)
	}
	if n := overBudget.Load(); n > 0 {
		b.logger().Warn("download budget reached, results dropped",
			zap.Int64("budget", budget), zap.Int32("dropped", n))
	}

	candidates := make([]domain.Candidate, 0, len(results))
	for _, c := range results {
		if c == nil {
			continue
		}
		c.Filename = fmt.Sprintf("%06d.%s", len(candidates)+1, c.Filename)
		candidates = append(candidates, *c)
	}
	return candidates, nil
}

func (b *BingSource) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

func (b *BingSource) wait(ctx context.Context) error {
	if b.Limiter == nil {
		return nil
	}
	return b.Limiter.Wait(ctx)
}

// search pages through the results until count unique URLs are collected
func (b *BingSource) search(ctx context.Context, q acquire.Query) ([]string, error) {
	pageSize := b.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	seen := map[string]bool{}
	var urls []string
	empty := 0
	for first := 0; len(urls) < q.Count && empty < maxEmptyPages; first += pageSize {
		page, err := b.page(ctx, q, first, pageSize)
		if err != nil {
			if len(urls) == 0 {
				return nil, err
			}
			b.logger().Warn("search page failed, keeping earlier results", zap.Int("first", first), zap.Error(err))
			break
		}
		added := 0
		for _, u := range page {
			if seen[u] || len(urls) >= q.Count {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
			added++
		}
		if added == 0 {
			empty++
		} else {
			empty = 0
		}
	}
	return urls, nil
}

func (b *BingSource) page(ctx context.Context, q acquire.Query, first, count int) ([]string, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	base := b.BaseURL
	if base == "" {
		base = DefaultBingURL
	}
	params := url.Values{}
	params.Set("q", q.Term)
	params.Set("first", strconv.Itoa(first))
	params.Set("count", strconv.Itoa(count))
	params.Set("adlt", "moderate")
	params.Set("qft", tierFilter(q.Tier))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("while building search request: %w", err)
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("while searching images: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image search returned %s", resp.Status)
	}
	return ParseResults(resp.Body)
}

func tierFilter(tier acquire.Tier) string {
	if tier == acquire.TierHigh {
		return "+filterui:imagesize-large+filterui:photo-photo"
	}
	return "+filterui:imagesize-medium+filterui:photo-photo"
}

// ParseResults extracts the original image URLs from a results page
func ParseResults(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("while parsing search results: %w", err)
	}
	var urls []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "iusc") {
			if u := imageURL(attr(n, "m")); u != "" {
				urls = append(urls, u)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return urls, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// imageURL reads murl from the JSON metadata Bing attaches to each result
func imageURL(meta string) string {
	if meta == "" {
		return ""
	}
	var m struct {
		MURL string `json:"murl"`
	}
	if err := json.Unmarshal([]byte(meta), &m); err != nil {
		return ""
	}
	u, err := url.Parse(m.MURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return m.MURL
}

var errNotImage = errors.New("not an image")

// download fetches one image and returns its bytes and file extension
func (b *BingSource) download(ctx context.Context, u string) ([]byte, string, error) {
	if err := b.wait(ctx); err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %s", resp.Status)
	}

	limit := b.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("larger than %d bytes", limit)
	}
	if !filetype.IsImage(data) {
		return nil, "", errNotImage
	}
	return data, sniffExtension(data), nil
}

// sniffExtension names the image type from its magic bytes
func sniffExtension(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "jpg"
	}
	if kind.Extension == "jpeg" {
		return "jpg"
	}
	return kind.Extension
}
