package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/cache"
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"linblog/internal/analytics"
	"linblog/internal/config"
	"linblog/internal/pageviews"
	"linblog/internal/pkg/user_agent"
	"linblog/internal/posts"
	"linblog/internal/timeframe"
	"linblog/internal/visitors"
)

const defaultDashboardDays = 7

// DashboardResponse is the dashboard payload with display labels applied.
type DashboardResponse struct {
	Days             int                           `json:"days"`
	Since            time.Time                     `json:"since"`
	Until            time.Time                     `json:"until"`
	TotalViews       int64                         `json:"total_views"`
	PageViews        []TimeSeriesPoint             `json:"page_views"`
	TopPosts         []pageviews.PostCount         `json:"top_posts"`
	TopDevices       []analytics.MetricCountResult `json:"top_devices"`
	TopBrowsers      []analytics.MetricCountResult `json:"top_browsers"`
	TopOS            []analytics.MetricCountResult `json:"top_operating_systems"`
	TopReferrers     []analytics.MetricCountResult `json:"top_referrers"`
	TopCountries     []analytics.MetricCountResult `json:"top_countries"`
	CountriesEnabled bool                          `json:"countries_enabled"`
}

// ViewEventRow is one drill-down event with display fields derived from its raw columns.
type ViewEventRow struct {
	pageviews.ViewEvent
	Visitor string `json:"visitor"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

// ViewEventsResponse is one page of drill-down rows.
type ViewEventsResponse struct {
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Events   []ViewEventRow `json:"events"`
}

type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

var (
	dashboardCacheMu sync.RWMutex
	dashboardCache   *cache.Cache[int, *analytics.DashboardStats]
)

// SetupDashboardCache caches dashboard stats per days value for ttl.
// A zero ttl disables caching.
func SetupDashboardCache(db *gorm.DB, logger *slog.Logger, ttl time.Duration) {
	dashboardCacheMu.Lock()
	defer dashboardCacheMu.Unlock()

	if ttl <= 0 {
		dashboardCache = nil
		return
	}

	fetchFunc := func(days int) (*analytics.DashboardStats, error) {
		return analytics.NewGormService(db, nil, engineOptions()...).GetDashboardStats(context.Background(), days)
	}
	dashboardCache = cache.NewCache[int, *analytics.DashboardStats](logger, ttl, fetchFunc)
}

// PurgeDashboardCache drops every cached dashboard.
func PurgeDashboardCache() {
	dashboardCacheMu.RLock()
	defer dashboardCacheMu.RUnlock()
	if dashboardCache != nil {
		dashboardCache.Clear()
	}
}

func dashboardStats(ctx *cartridge.Context, days int) (*analytics.DashboardStats, error) {
	// the cache key must match what the engine will actually compute
	days = timeframe.ClampDays(days)

	dashboardCacheMu.RLock()
	c := dashboardCache
	dashboardCacheMu.RUnlock()
	if c != nil {
		return c.Get(days)
	}

	return newAnalyticsService(ctx).GetDashboardStats(ctx.UserContext(), days)
}

func newAnalyticsService(ctx *cartridge.Context) *analytics.Service {
	return analytics.NewGormService(ctx.DBManager.GetConnection(), nil, engineOptions()...)
}

func engineOptions() []analytics.EngineOption {
	return []analytics.EngineOption{analytics.WithWorkers(config.GetConfig().DashboardWorkers)}
}

// DashboardAction returns site-wide stats for the last ?days= days.
func DashboardAction(ctx *cartridge.Context) error {
	days := parseDays(ctx)

	stats, err := dashboardStats(ctx, days)
	if err != nil {
		ctx.Logger.Error("Failed to build dashboard", slog.Int("days", days), slog.Any("error", err))
		return jsonError(ctx, http.StatusInternalServerError, "Failed to load dashboard", "DASHBOARD_ERROR")
	}

	return ctx.JSON(buildDashboardResponse(stats))
}

// PostsSummaryAction returns the per-post rollup for the last ?days= days.
func PostsSummaryAction(ctx *cartridge.Context) error {
	days := parseDays(ctx)

	summary, err := newAnalyticsService(ctx).ListPostAnalyticsSummary(ctx.UserContext(), days)
	if err != nil {
		ctx.Logger.Error("Failed to build posts summary", slog.Int("days", days), slog.Any("error", err))
		return jsonError(ctx, http.StatusInternalServerError, "Failed to load posts summary", "SUMMARY_ERROR")
	}

	return ctx.JSON(summary)
}

// ViewCountAction returns the total number of views in the last ?days= days.
func ViewCountAction(ctx *cartridge.Context) error {
	days := timeframe.ClampDays(parseDays(ctx))

	count, err := newAnalyticsService(ctx).CountViews(ctx.UserContext(), days)
	if err != nil {
		ctx.Logger.Error("Failed to count views", slog.Int("days", days), slog.Any("error", err))
		return jsonError(ctx, http.StatusInternalServerError, "Failed to count views", "COUNT_ERROR")
	}

	return ctx.JSON(fiber.Map{
		"days":  days,
		"views": count,
	})
}

// PostShowAction returns the summary of one post, soft-deleted posts included.
func PostShowAction(ctx *cartridge.Context) error {
	postID, err := ctx.ParamsInt("id")
	if err != nil || postID <= 0 {
		return jsonError(ctx, http.StatusBadRequest, "Invalid post ID", "INVALID_POST_ID")
	}

	post, err := newAnalyticsService(ctx).GetPostSummary(ctx.UserContext(), uint(postID))
	if err != nil {
		ctx.Logger.Error("Failed to load post", slog.Int("post_id", postID), slog.Any("error", err))
		return jsonError(ctx, http.StatusInternalServerError, "Failed to load post", "POST_ERROR")
	}
	if post == nil {
		return jsonError(ctx, http.StatusNotFound, posts.ErrPostNotFound.Error(), "POST_NOT_FOUND")
	}

	return ctx.JSON(post)
}

// PostViewEventsAction lists the raw view events of one post, newest first.
func PostViewEventsAction(ctx *cartridge.Context) error {
	postID, err := ctx.ParamsInt("id")
	if err != nil || postID <= 0 {
		return jsonError(ctx, http.StatusBadRequest, "Invalid post ID", "INVALID_POST_ID")
	}

	filter, err := parseViewEventFilter(ctx, uint(postID))
	if err != nil {
		return jsonError(ctx, http.StatusBadRequest, err.Error(), "INVALID_FILTER")
	}

	page := ctx.QueryInt("page", 1)
	pageSize := ctx.QueryInt("page_size", pageviews.DefaultPageSize)

	result, err := newAnalyticsService(ctx).ListPostViewEvents(ctx.UserContext(), filter, page, pageSize)
	if err != nil {
		if errors.Is(err, pageviews.ErrInvalidFilter) || errors.Is(err, pageviews.ErrPostIDRequired) {
			return jsonError(ctx, http.StatusBadRequest, err.Error(), "INVALID_FILTER")
		}
		ctx.Logger.Error("Failed to list view events", slog.Int("post_id", postID), slog.Any("error", err))
		return jsonError(ctx, http.StatusInternalServerError, "Failed to list view events", "EVENTS_ERROR")
	}

	return ctx.JSON(buildViewEventsResponse(result))
}

func buildViewEventsResponse(page *pageviews.ViewEventPage) *ViewEventsResponse {
	rows := make([]ViewEventRow, len(page.Events))
	for i, event := range page.Events {
		ua := user_agent.ParseUserAgent(event.UserAgent)
		rows[i] = ViewEventRow{
			ViewEvent: event,
			Visitor:   visitors.Alias(event.Fingerprint),
			Browser:   ua.Browser,
			OS:        ua.OS,
		}
	}
	return &ViewEventsResponse{
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Events:   rows,
	}
}

func parseViewEventFilter(ctx *cartridge.Context, postID uint) (pageviews.ViewEventFilter, error) {
	filter := pageviews.ViewEventFilter{
		PostID:            postID,
		UserAgentContains: strings.TrimSpace(ctx.Query("ua")),
		RefererContains:   strings.TrimSpace(ctx.Query("referer")),
	}

	if raw := strings.TrimSpace(ctx.Query("since")); raw != "" {
		since, err := parseTimeParam(raw, false)
		if err != nil {
			return filter, errors.New("invalid since: expected RFC3339 or YYYY-MM-DD")
		}
		filter.Since = &since
	}

	if raw := strings.TrimSpace(ctx.Query("until")); raw != "" {
		until, err := parseTimeParam(raw, true)
		if err != nil {
			return filter, errors.New("invalid until: expected RFC3339 or YYYY-MM-DD")
		}
		filter.Until = &until
	}

	if raw := strings.TrimSpace(ctx.Query("device")); raw != "" {
		device, err := user_agent.ParseDeviceType(strings.ToUpper(raw))
		if err != nil {
			return filter, fmt.Errorf("invalid device: expected one of %s", deviceTypeList())
		}
		filter.DeviceType = device
	}

	if raw := strings.TrimSpace(ctx.Query("ip")); raw != "" {
		filter.IP = &pageviews.IPFilter{
			Mode:  pageviews.IPMatchMode(ctx.Query("ip_mode", string(pageviews.IPMatchContains))),
			Value: raw,
		}
	}

	return filter, nil
}

func deviceTypeList() string {
	types := user_agent.AllDeviceTypes()
	names := make([]string, len(types))
	for i, d := range types {
		names[i] = strings.ToLower(d.String())
	}
	return strings.Join(names, ", ")
}

// parseTimeParam accepts RFC3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func parseTimeParam(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}

	day, err := time.Parse(timeframe.DayFormat, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return day, nil
}

// parseDays reads ?days=, falling back to a week when absent or not a number.
// Numbers outside the lookback range, however large, are clamped.
func parseDays(ctx *cartridge.Context) int {
	raw := strings.TrimSpace(ctx.Query("days"))
	if raw == "" {
		return defaultDashboardDays
	}

	// ParseInt saturates on overflow and reports ErrRange
	days, err := strconv.ParseInt(raw, 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return defaultDashboardDays
	}

	switch {
	case days < int64(timeframe.MinLookbackDays):
		return timeframe.MinLookbackDays
	case days > int64(timeframe.MaxLookbackDays):
		return timeframe.MaxLookbackDays
	}
	return int(days)
}

func jsonError(ctx *cartridge.Context, status int, message, code string) error {
	return ctx.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

func buildDashboardResponse(stats *analytics.DashboardStats) *DashboardResponse {
	return &DashboardResponse{
		Days:         stats.Days,
		Since:        stats.Since,
		Until:        stats.Until,
		TotalViews:   stats.TotalViews,
		PageViews:    convertToTimeSeries(stats.Trend),
		TopPosts:     stats.TopPosts,
		TopDevices:   convertDeviceStats(stats.Devices),
		TopBrowsers:  stats.Browsers,
		TopOS:        stats.OS,
		TopReferrers: stats.Referrers,
		TopCountries: convertCountryStats(stats.Countries),
		// every event lands with an empty country when no GeoLite database is installed
		CountriesEnabled: !onlyUnknownCountries(stats.Countries),
	}
}

func convertToTimeSeries(stats []timeframe.DateStat) []TimeSeriesPoint {
	result := make([]TimeSeriesPoint, len(stats))
	for i, stat := range stats {
		result[i] = TimeSeriesPoint{
			Date:  stat.Date,
			Count: int(stat.Count),
		}
	}
	return result
}

func convertDeviceStats(items []pageviews.DeviceCount) []analytics.MetricCountResult {
	caser := cases.Title(language.AmericanEnglish)

	result := make([]analytics.MetricCountResult, len(items))
	for i, item := range items {
		result[i] = analytics.MetricCountResult{
			Name:  caser.String(strings.ToLower(item.DeviceType.String())),
			Count: item.Count,
		}
	}
	return result
}

func convertCountryStats(items []analytics.MetricCountResult) []analytics.MetricCountResult {
	caser := cases.Upper(language.AmericanEnglish)
	countries := gountries.New()

	result := make([]analytics.MetricCountResult, len(items))
	for i, item := range items {
		if item.Name == analytics.UnknownCountry {
			result[i] = item
			continue
		}

		country, err := countries.FindCountryByAlpha(item.Name)
		if err != nil {
			result[i] = analytics.MetricCountResult{Name: caser.String(item.Name), Count: item.Count}
			continue
		}
		result[i] = analytics.MetricCountResult{Name: country.Name.Common, Count: item.Count}
	}
	return result
}

func onlyUnknownCountries(items []analytics.MetricCountResult) bool {
	for _, item := range items {
		if item.Name != analytics.UnknownCountry {
			return false
		}
	}
	return true
}
