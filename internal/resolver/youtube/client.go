package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/sharetube/listenroom/internal/domain"
	"github.com/sharetube/listenroom/internal/metrics"
	"github.com/sharetube/listenroom/pkg/ytvideodata"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// MaxBatchSize is the most ids one availability request carries.
	MaxBatchSize   = 50
	batchFanOut    = 4
	defaultBaseURL = "https://www.googleapis.com/youtube/v3"
)

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	RPS     float64
}

// Client resolves content through the YouTube Data API. Without an API key it
// falls back to public oEmbed data, which carries no duration or category and
// cannot search.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	timeout    time.Duration
	fallback   *ytvideodata.Client
	limiter    *rate.Limiter
	breaker    circuitbreaker.CircuitBreaker[any]
	group      singleflight.Group
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewClient(cfg Config, fallback *ytvideodata.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	breaker := circuitbreaker.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return err != nil && !errors.Is(err, ErrNotFound)
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(15 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			logger.Warn("resolver circuit breaker state changed", "from", event.OldState, "to", event.NewState)
		}).
		Build()

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		fallback:   fallback,
		limiter:    rate.NewLimiter(limit, max(1, int(cfg.RPS))),
		breaker:    breaker,
		metrics:    m,
		logger:     logger,
	}
}

// call runs fn through the rate limiter and the circuit breaker and records the outcome.
func (c *Client) call(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	start := time.Now()
	res, err := failsafe.With[any](c.breaker).WithContext(ctx).Get(func() (any, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return fn()
	})

	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.metrics.ResolverRequests.WithLabelValues(op, result).Inc()
	c.metrics.ResolverDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	return res, err
}

// shared runs fn once for all concurrent callers of key. fn runs detached from
// the caller's cancellation and is bounded by the client timeout, so one
// caller going away does not fail the others.
func (c *Client) shared(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return fn(ctx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	q.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) listVideos(ctx context.Context, ids []string) ([]videoItem, error) {
	q := url.Values{}
	q.Set("part", "snippet,contentDetails,status")
	q.Set("id", strings.Join(ids, ","))
	q.Set("maxResults", strconv.Itoa(len(ids)))

	var resp videoListResponse
	if err := c.getJSON(ctx, "/videos", q, &resp); err != nil {
		return nil, err
	}

	return resp.Items, nil
}

func (c *Client) toMedia(item videoItem) domain.Media {
	duration, err := parseDuration(item.ContentDetails.Duration)
	if err != nil && item.ContentDetails.Duration != "" {
		c.logger.Debug("unparsable duration", "video_id", item.Id, "duration", item.ContentDetails.Duration)
	}

	return domain.Media{
		VideoId:       item.Id,
		Title:         item.Snippet.Title,
		Artist:        item.Snippet.ChannelTitle,
		Thumbnail:     item.thumbnail(),
		Duration:      duration,
		Category:      item.Snippet.CategoryId,
		AgeRestricted: item.ContentDetails.ContentRating.YtRating == "ytAgeRestricted",
		LiveStream:    item.Snippet.LiveBroadcastContent == "live" || item.Snippet.LiveBroadcastContent == "upcoming",
		Embeddable:    item.Status.Embeddable,
	}
}

// Lookup resolves one video id.
func (c *Client) Lookup(ctx context.Context, videoId string) (domain.Media, error) {
	if !ytvideodata.IsValidVideoId(videoId) {
		return domain.Media{}, ErrNotFound
	}

	res, err := c.shared(ctx, "video:"+videoId, func(ctx context.Context) (any, error) {
		return c.call(ctx, "lookup", func() (any, error) {
			if c.apiKey == "" {
				return c.lookupFallback(ctx, videoId)
			}

			items, err := c.listVideos(ctx, []string{videoId})
			if err != nil {
				return nil, err
			}

			if len(items) == 0 {
				return nil, ErrNotFound
			}

			return c.toMedia(items[0]), nil
		})
	})
	if err != nil {
		return domain.Media{}, err
	}

	return res.(domain.Media), nil
}

func (c *Client) lookupFallback(ctx context.Context, videoId string) (domain.Media, error) {
	data, err := c.fallback.Get(ctx, videoId)
	if errors.Is(err, ytvideodata.ErrVideoNotFound) {
		return domain.Media{}, ErrNotFound
	}

	if err != nil {
		return domain.Media{}, err
	}

	return domain.Media{
		VideoId:    videoId,
		Title:      data.Title,
		Artist:     data.AuthorName,
		Thumbnail:  data.ThumbnailUrl,
		Embeddable: data.Embeddable,
	}, nil
}

// Search resolves a free-text query to the best matching video.
func (c *Client) Search(ctx context.Context, query string) (domain.Media, error) {
	if c.apiKey == "" {
		return domain.Media{}, fmt.Errorf("%w: search requires an api key", ErrUnavailable)
	}

	res, err := c.shared(ctx, "search:"+query, func(ctx context.Context) (any, error) {
		return c.call(ctx, "search", func() (any, error) {
			q := url.Values{}
			q.Set("part", "snippet")
			q.Set("type", "video")
			q.Set("maxResults", "1")
			q.Set("q", query)

			var resp searchListResponse
			if err := c.getJSON(ctx, "/search", q, &resp); err != nil {
				return nil, err
			}

			if len(resp.Items) == 0 || resp.Items[0].Id.VideoId == "" {
				return nil, ErrNotFound
			}

			return resp.Items[0].Id.VideoId, nil
		})
	})
	if err != nil {
		return domain.Media{}, err
	}

	return c.Lookup(ctx, res.(string))
}

// CheckAvailability returns a verdict for every id it could check. Ids whose
// batch failed are missing from the result and the failure is returned.
func (c *Client) CheckAvailability(ctx context.Context, ids []string) (map[string]bool, error) {
	var batches [][]string
	for start := 0; start < len(ids); start += MaxBatchSize {
		batches = append(batches, ids[start:min(start+MaxBatchSize, len(ids))])
	}
	results := make([]map[string]bool, len(batches))
	errs := make([]error, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchFanOut)
	for i, batch := range batches {
		g.Go(func() error {
			res, err := c.call(gctx, "availability", func() (any, error) {
				return c.checkBatch(gctx, batch)
			})
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = res.(map[string]bool)
			return nil
		})
	}
	_ = g.Wait()

	verdicts := make(map[string]bool, len(ids))
	for _, res := range results {
		for id, ok := range res {
			verdicts[id] = ok
		}
	}

	return verdicts, errors.Join(errs...)
}

func (c *Client) checkBatch(ctx context.Context, ids []string) (map[string]bool, error) {
	verdicts := make(map[string]bool, len(ids))
	if c.apiKey == "" {
		for _, id := range ids {
			ok, err := c.fallback.IsAvailable(ctx, id)
			if err != nil {
				return nil, err
			}
			verdicts[id] = ok
		}
		return verdicts, nil
	}

	items, err := c.listVideos(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		verdicts[id] = false
	}
	for _, item := range items {
		verdicts[item.Id] = item.available()
	}

	return verdicts, nil
}
