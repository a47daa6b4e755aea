package station

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/station-planner/internal/resilience"
)

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig
	// RatePerSecond paces requests to the feed. Default 2.
	RatePerSecond float64
}

// HTTPSource fetches the station list from a JSON feed. Responses are
// revalidated with ETags; a 304 returns the previous list.
type HTTPSource struct {
	url     string
	client  *http.Client
	opts    HTTPOptions
	pacer   *pacer

	mu     sync.Mutex
	etag   string
	cached []Record
}

// NewHTTPSource creates a source for the feed at url.
func NewHTTPSource(url string, opts HTTPOptions) *HTTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "station-planner/1.0"
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 2
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("stations", "fetch")
	}
	return &HTTPSource{
		url:     url,
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		pacer:   newPacer(opts.RatePerSecond),
	}
}

var errNotModified = errors.New("not modified")

// Stations fetches the feed. Invalid records are skipped and logged.
func (s *HTTPSource) Stations(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	etag := s.etag
	s.mu.Unlock()

	type fetched struct {
		records []Record
		etag    string
	}

	res, err := resilience.DoVal(ctx, s.opts.Retry, func(ctx context.Context) (fetched, error) {
		if err := s.pacer.wait(ctx); err != nil {
			return fetched{}, eris.Wrap(err, "station feed pacing")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return fetched{}, eris.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", s.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return fetched{}, eris.Wrap(err, "station feed request")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode == http.StatusNotModified {
			return fetched{}, errNotModified
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			s.pacer.throttled(resp.Header.Get("Retry-After"), time.Now())
		}
		if err := resilience.CheckStatus("stations", resp.StatusCode); err != nil {
			return fetched{}, err
		}
		s.pacer.succeeded()

		records, errs := Decode(resp.Body)
		if records == nil {
			return fetched{}, eris.Wrap(errors.Join(errs...), "decode station feed")
		}
		if len(errs) > 0 {
			zap.L().Warn("skipped invalid station records",
				zap.String("component", "station"),
				zap.String("url", s.url),
				zap.Int("skipped", len(errs)),
				zap.Error(errs[0]),
			)
		}
		return fetched{records: records, etag: resp.Header.Get("ETag")}, nil
	})

	if errors.Is(err, errNotModified) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.cached, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "station: fetch %s", s.url)
	}

	s.mu.Lock()
	s.etag = res.etag
	s.cached = res.records
	s.mu.Unlock()
	return res.records, nil
}
