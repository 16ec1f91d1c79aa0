package http_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linblog/internal/analytics"
	handlers "linblog/internal/http"
	"linblog/internal/pageviews"
	"linblog/internal/posts"
	"linblog/internal/testsupport"
	"linblog/internal/visitors"
)

func getJSON(t *testing.T, app *fiber.App, path string, out any) int {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest("GET", path, nil), 30000)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), "body: %s", string(body))
	}
	return resp.StatusCode
}

func TestDashboardAction(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	now := time.Now().UTC()
	first := testsupport.CreateTestPost(t, db, "first", posts.StatusPublished)
	second := testsupport.CreateTestPost(t, db, "second", posts.StatusPublished)

	testsupport.CreateViewEvent(t, db, first.ID, now.Add(-1*time.Hour), testsupport.WithCountry("US"))
	testsupport.CreateViewEvent(t, db, first.ID, now.Add(-2*time.Hour), testsupport.WithUserAgent(testsupport.IPhoneSafariUA))
	testsupport.CreateViewEvent(t, db, second.ID, now.Add(-3*time.Hour), testsupport.WithReferer("https://www.google.com/search?q=go"))
	// outside the default week
	testsupport.CreateViewEvent(t, db, second.ID, now.Add(-10*24*time.Hour))

	app := testsupport.CreateMinimalTestApp(t, db)

	t.Run("defaults to a week", func(t *testing.T) {
		var resp handlers.DashboardResponse
		status := getJSON(t, app, "/admin/api/analytics/dashboard", &resp)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, 7, resp.Days)
		assert.Equal(t, int64(3), resp.TotalViews)
		require.Len(t, resp.TopPosts, 2)
		assert.Equal(t, "first", resp.TopPosts[0].Slug)
		assert.Equal(t, int64(2), resp.TopPosts[0].Count)
		assert.Contains(t, resp.TopDevices, analytics.MetricCountResult{Name: "Desktop", Count: 2})
		assert.Contains(t, resp.TopDevices, analytics.MetricCountResult{Name: "Mobile", Count: 1})
		assert.Contains(t, resp.TopCountries, analytics.MetricCountResult{Name: "United States", Count: 1})
		assert.Contains(t, resp.TopReferrers, analytics.MetricCountResult{Name: "Google", Count: 1})
		assert.True(t, resp.CountriesEnabled)
	})

	t.Run("malformed days falls back to a week", func(t *testing.T) {
		var resp handlers.DashboardResponse
		getJSON(t, app, "/admin/api/analytics/dashboard?days=abc", &resp)
		assert.Equal(t, 7, resp.Days)
	})

	t.Run("days are clamped", func(t *testing.T) {
		var resp handlers.DashboardResponse
		getJSON(t, app, "/admin/api/analytics/dashboard?days=365", &resp)
		assert.Equal(t, 90, resp.Days)
		assert.Equal(t, int64(4), resp.TotalViews)

		getJSON(t, app, "/admin/api/analytics/dashboard?days=0", &resp)
		assert.Equal(t, 1, resp.Days)

		getJSON(t, app, "/admin/api/analytics/dashboard?days=99999999999999999999", &resp)
		assert.Equal(t, 90, resp.Days)

		getJSON(t, app, "/admin/api/analytics/dashboard?days=-99999999999999999999", &resp)
		assert.Equal(t, 1, resp.Days)
	})
}

func TestPostsSummaryAndCountActions(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	now := time.Now().UTC()
	post := testsupport.CreateTestPost(t, db, "summary", posts.StatusPublished)
	testsupport.CreateViewEvent(t, db, post.ID, now.Add(-time.Hour), testsupport.WithIP("203.0.113.1"))
	testsupport.CreateViewEvent(t, db, post.ID, now.Add(-2*time.Hour), testsupport.WithIP("203.0.113.1"))
	testsupport.CreateViewEvent(t, db, post.ID, now.Add(-3*time.Hour), testsupport.WithIP("203.0.113.2"))

	app := testsupport.CreateMinimalTestApp(t, db)

	var summary analytics.PostAnalyticsSummary
	status := getJSON(t, app, "/admin/api/analytics/posts?days=30", &summary)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 30, summary.Days)
	require.Len(t, summary.Posts, 1)
	assert.Equal(t, int64(3), summary.Posts[0].Views)
	assert.Equal(t, int64(2), summary.Posts[0].UniqueVisitors)
	assert.False(t, summary.Truncated)

	var count struct {
		Days  int   `json:"days"`
		Views int64 `json:"views"`
	}
	status = getJSON(t, app, "/admin/api/analytics/count?days=1", &count)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, count.Days)
	assert.Equal(t, int64(3), count.Views)

	getJSON(t, app, "/admin/api/analytics/count?days=18446744073709551616", &count)
	assert.Equal(t, 90, count.Days)
}

func TestPostShowAction(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	post := testsupport.CreateTestPost(t, db, "shown", posts.StatusPublished)
	gone := testsupport.CreateTestPost(t, db, "gone", posts.StatusPublished)
	require.NoError(t, db.Delete(gone).Error)

	app := testsupport.CreateMinimalTestApp(t, db)

	var summary posts.PostSummary
	assert.Equal(t, http.StatusOK, getJSON(t, app, fmt.Sprintf("/admin/api/posts/%d", post.ID), &summary))
	assert.Equal(t, "shown", summary.Slug)
	assert.Nil(t, summary.DeletedAt)

	var deleted posts.PostSummary
	assert.Equal(t, http.StatusOK, getJSON(t, app, fmt.Sprintf("/admin/api/posts/%d", gone.ID), &deleted))
	assert.NotNil(t, deleted.DeletedAt)

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, app, "/admin/api/posts/424242", &errBody))
	assert.Equal(t, "POST_NOT_FOUND", errBody["code"])

	assert.Equal(t, http.StatusBadRequest, getJSON(t, app, "/admin/api/posts/nope", &errBody))
	assert.Equal(t, "INVALID_POST_ID", errBody["code"])
}

func TestPostViewEventsAction(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	base := time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)
	post := testsupport.CreateTestPost(t, db, "drill", posts.StatusPublished)
	other := testsupport.CreateTestPost(t, db, "other", posts.StatusPublished)

	for i := 0; i < 30; i++ {
		testsupport.CreateViewEvent(t, db, post.ID, base.Add(-time.Duration(i)*time.Hour), testsupport.WithIP(fmt.Sprintf("198.51.100.%d", i)))
	}
	testsupport.CreateViewEvent(t, db, post.ID, base.Add(time.Hour), testsupport.WithUserAgent(testsupport.IPhoneSafariUA), testsupport.WithIP("203.0.113.77"))
	testsupport.CreateViewEvent(t, db, other.ID, base)

	app := testsupport.CreateMinimalTestApp(t, db)

	t.Run("paginates newest first", func(t *testing.T) {
		var page handlers.ViewEventsResponse
		status := getJSON(t, app, fmt.Sprintf("/admin/api/posts/%d/views?page=2&page_size=10", post.ID), &page)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, int64(31), page.Total)
		assert.Equal(t, 2, page.Page)
		assert.Equal(t, 10, page.PageSize)
		require.Len(t, page.Events, 10)
		assert.True(t, page.Events[0].ViewedAt.After(page.Events[9].ViewedAt))
	})

	t.Run("labels each row with a visitor alias", func(t *testing.T) {
		var page handlers.ViewEventsResponse
		getJSON(t, app, fmt.Sprintf("/admin/api/posts/%d/views?ip=203.0.113.77&ip_mode=equals", post.ID), &page)

		require.Len(t, page.Events, 1)
		row := page.Events[0]
		assert.Equal(t, visitors.Alias(visitors.Fingerprint("203.0.113.77", testsupport.IPhoneSafariUA)), row.Visitor)
		assert.Equal(t, row.Fingerprint, visitors.Fingerprint(row.IP, row.UserAgent))
		assert.Equal(t, "Safari", row.Browser)
		assert.Equal(t, "iOS", row.OS)
	})

	t.Run("filters by device and ip", func(t *testing.T) {
		var page handlers.ViewEventsResponse
		getJSON(t, app, fmt.Sprintf("/admin/api/posts/%d/views?device=mobile", post.ID), &page)
		require.Len(t, page.Events, 1)
		assert.Equal(t, "203.0.113.77", page.Events[0].IP)
		assert.Equal(t, pageviews.DeviceMobile, page.Events[0].DeviceType)

		getJSON(t, app, fmt.Sprintf("/admin/api/posts/%d/views?ip=198.51.100.1&ip_mode=equals", post.ID), &page)
		assert.Equal(t, int64(1), page.Total)

		getJSON(t, app, fmt.Sprintf("/admin/api/posts/%d/views?ip=198.51.100.1", post.ID), &page)
		// .1 and .10 through .19
		assert.Equal(t, int64(11), page.Total)
	})

	t.Run("filters by day range", func(t *testing.T) {
		var page handlers.ViewEventsResponse
		getJSON(t, app, fmt.Sprintf("/admin/api/posts/%d/views?since=2024-09-10&until=2024-09-10", post.ID), &page)
		// 00:00 through 13:00 on the tenth
		assert.Equal(t, int64(14), page.Total)
	})

	t.Run("rejects bad filters", func(t *testing.T) {
		var errBody map[string]string
		status := getJSON(t, app, fmt.Sprintf("/admin/api/posts/%d/views?device=phablet", post.ID), &errBody)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "INVALID_FILTER", errBody["code"])
		assert.Contains(t, errBody["error"], "desktop, mobile, tablet, bot, other")

		status = getJSON(t, app, fmt.Sprintf("/admin/api/posts/%d/views?since=last-week", post.ID), &errBody)
		assert.Equal(t, http.StatusBadRequest, status)

		status = getJSON(t, app, fmt.Sprintf("/admin/api/posts/%d/views?ip=1.2&ip_mode=regex", post.ID), &errBody)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestHealthIndexAction(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	var health handlers.HealthStatus
	status := getJSON(t, app, "/_health", &health)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.DBStatus)
	assert.Equal(t, "disabled", health.GeoIP)
}

func TestDashboardCache(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	post := testsupport.CreateTestPost(t, db, "cached", posts.StatusPublished)
	testsupport.CreateViewEvent(t, db, post.ID, time.Now().UTC().Add(-time.Hour))

	app := testsupport.CreateMinimalTestApp(t, db)
	handlers.SetupDashboardCache(db, testsupport.GetLogger(), time.Minute)
	t.Cleanup(func() { handlers.SetupDashboardCache(db, testsupport.GetLogger(), 0) })

	var resp handlers.DashboardResponse
	getJSON(t, app, "/admin/api/analytics/dashboard?days=7", &resp)
	assert.Equal(t, int64(1), resp.TotalViews)

	testsupport.CreateViewEvent(t, db, post.ID, time.Now().UTC().Add(-2*time.Hour))

	getJSON(t, app, "/admin/api/analytics/dashboard?days=7", &resp)
	assert.Equal(t, int64(1), resp.TotalViews)
	// 500 clamps to 90, a different key
	getJSON(t, app, "/admin/api/analytics/dashboard?days=500", &resp)
	assert.Equal(t, int64(2), resp.TotalViews)

	handlers.PurgeDashboardCache()
	getJSON(t, app, "/admin/api/analytics/dashboard?days=7", &resp)
	assert.Equal(t, int64(2), resp.TotalViews)
}
