// Package analytics rolls stored view events up into dashboard figures.
//
// Device type is read from the value frozen on each event. Browser, OS and
// referrer labels are recomputed from the raw headers on every read so that
// classifier improvements apply to history without a backfill.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"linblog/internal/pageviews"
	"linblog/internal/pkg/async"
	"linblog/internal/pkg/referrers"
	"linblog/internal/pkg/user_agent"
	"linblog/internal/timeframe"
)

const (
	// TopPostsLimit caps the top posts list.
	TopPostsLimit = 10
	// SummaryScanCap bounds how many recent events ListPostAnalyticsSummary reads.
	// Older events in the window are not reflected once the cap is hit.
	SummaryScanCap = 5000

	defaultWorkers = 4
)

// MetricCountResult is a labelled count in a breakdown.
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DashboardStats is the dashboard payload for one lookback window.
type DashboardStats struct {
	Days       int                     `json:"days"`
	Since      time.Time               `json:"since"`
	Until      time.Time               `json:"until"`
	TotalViews int64                   `json:"total_views"`
	Trend      []timeframe.DateStat    `json:"trend"`
	TopPosts   []pageviews.PostCount   `json:"top_posts"`
	Devices    []pageviews.DeviceCount `json:"devices"`
	Browsers   []MetricCountResult     `json:"browsers"`
	OS         []MetricCountResult     `json:"os"`
	Referrers  []MetricCountResult     `json:"referrers"`
	Countries  []MetricCountResult     `json:"countries"`
}

// Engine computes aggregates over a pageviews.Store.
type Engine struct {
	store pageviews.Store
	clock timeframe.TimeProvider
	pool  *async.Pool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTimeProvider pins the clock used to compute lookback windows.
func WithTimeProvider(clock timeframe.TimeProvider) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithWorkers sets how many grouped reads run concurrently. n <= 0 keeps the default.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.pool = async.NewPool(n)
		}
	}
}

// NewEngine creates an Engine reading from store.
func NewEngine(store pageviews.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store: store,
		clock: timeframe.DefaultTimeProvider{},
		pool:  async.NewPool(defaultWorkers),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lookback(days int) timeframe.Lookback {
	return timeframe.NewLookback(e.clock.Now(), days)
}

// GetDashboardStats aggregates the last days days (clamped to [1, 90]).
// Trend has one entry per UTC day with at least one view, ascending; empty
// days are not filled in.
func (e *Engine) GetDashboardStats(ctx context.Context, days int) (*DashboardStats, error) {
	window := e.lookback(days)
	since := window.From

	tasks := []async.Task{
		{
			Name: "totalViews",
			Execute: func(ctx context.Context) (interface{}, error) {
				return e.store.CountSince(ctx, since)
			},
		},
		{
			Name: "trend",
			Execute: func(ctx context.Context) (interface{}, error) {
				return e.store.CountByDay(ctx, since)
			},
		},
		{
			Name: "topPosts",
			Execute: func(ctx context.Context) (interface{}, error) {
				return e.store.CountByPost(ctx, since, TopPostsLimit)
			},
		},
		{
			Name: "devices",
			Execute: func(ctx context.Context) (interface{}, error) {
				return e.store.CountByDeviceType(ctx, since)
			},
		},
		{
			Name: "userAgents",
			Execute: func(ctx context.Context) (interface{}, error) {
				return e.store.CountByUserAgent(ctx, since)
			},
		},
		{
			Name: "referers",
			Execute: func(ctx context.Context) (interface{}, error) {
				return e.store.CountByReferer(ctx, since)
			},
		},
		{
			Name: "countries",
			Execute: func(ctx context.Context) (interface{}, error) {
				return e.store.CountByCountry(ctx, since)
			},
		},
	}

	results := e.pool.Execute(ctx, tasks)
	if err := async.FirstError(results, tasks); err != nil {
		return nil, fmt.Errorf("error fetching dashboard: %w", err)
	}

	browsers, oss := browserAndOSBreakdown(results["userAgents"].Data.([]pageviews.ValueCount))

	return &DashboardStats{
		Days:       window.Days,
		Since:      window.From,
		Until:      window.To,
		TotalViews: results["totalViews"].Data.(int64),
		Trend:      ensureNonNil(results["trend"].Data.([]timeframe.DateStat)),
		TopPosts:   ensureNonNil(results["topPosts"].Data.([]pageviews.PostCount)),
		Devices:    ensureNonNil(results["devices"].Data.([]pageviews.DeviceCount)),
		Browsers:   browsers,
		OS:         oss,
		Referrers:  referrerBreakdown(results["referers"].Data.([]pageviews.ValueCount)),
		Countries:  countryBreakdown(results["countries"].Data.([]pageviews.ValueCount)),
	}, nil
}

// CountViews returns the number of live events in the last days days (clamped to [1, 90]).
func (e *Engine) CountViews(ctx context.Context, days int) (int64, error) {
	return e.store.CountSince(ctx, e.lookback(days).From)
}

// browserAndOSBreakdown reclassifies each distinct user agent and sums by label.
func browserAndOSBreakdown(agents []pageviews.ValueCount) (browsers, oss []MetricCountResult) {
	byBrowser := map[string]int64{}
	byOS := map[string]int64{}
	for _, a := range agents {
		browser, os := user_agent.ParseBrowserAndOS(a.Value)
		byBrowser[browser] += a.Count
		byOS[os] += a.Count
	}
	return sortedCounts(byBrowser), sortedCounts(byOS)
}

func referrerBreakdown(rows []pageviews.ValueCount) []MetricCountResult {
	byLabel := map[string]int64{}
	for _, r := range rows {
		byLabel[referrers.Label(r.Value)] += r.Count
	}
	return sortedCounts(byLabel)
}

// UnknownCountry labels events without a resolved country.
const UnknownCountry = "Unknown"

func countryBreakdown(rows []pageviews.ValueCount) []MetricCountResult {
	byCode := map[string]int64{}
	for _, r := range rows {
		code := r.Value
		if code == "" {
			code = UnknownCountry
		}
		byCode[code] += r.Count
	}
	return sortedCounts(byCode)
}

// sortedCounts orders by count descending, then name ascending.
func sortedCounts(counts map[string]int64) []MetricCountResult {
	result := make([]MetricCountResult, 0, len(counts))
	for name, count := range counts {
		result = append(result, MetricCountResult{Name: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func ensureNonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
