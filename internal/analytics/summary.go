package analytics

import (
	"context"
	"sort"
	"time"

	"linblog/internal/pageviews"
)

// PostAnalytics is the per-post rollup inside a PostAnalyticsSummary.
type PostAnalytics struct {
	PostID         uint                           `json:"post_id"`
	Slug           string                         `json:"slug"`
	Title          string                         `json:"title"`
	Views          int64                          `json:"views"`
	UniqueVisitors int64                          `json:"unique_visitors"`
	Devices        map[pageviews.DeviceType]int64 `json:"devices"`
	LastViewedAt   time.Time                      `json:"last_viewed_at"`
}

// PostAnalyticsSummary groups the most recent events in a window per post.
// It is built from at most Cap events; Truncated is set when the window held
// more, in which case the oldest events are not counted.
type PostAnalyticsSummary struct {
	Days      int             `json:"days"`
	Since     time.Time       `json:"since"`
	Until     time.Time       `json:"until"`
	Posts     []PostAnalytics `json:"posts"`
	Scanned   int             `json:"scanned"`
	Cap       int             `json:"cap"`
	Truncated bool            `json:"truncated"`
}

// ListPostAnalyticsSummary rolls up the newest SummaryScanCap events in the
// last days days (clamped to [1, 90]) per post, most viewed first.
func (e *Engine) ListPostAnalyticsSummary(ctx context.Context, days int) (*PostAnalyticsSummary, error) {
	window := e.lookback(days)

	// one extra row tells us whether the cap cut anything off
	rows, err := e.store.ListSinceWithPosts(ctx, window.From, SummaryScanCap+1)
	if err != nil {
		return nil, err
	}
	truncated := len(rows) > SummaryScanCap
	if truncated {
		rows = rows[:SummaryScanCap]
	}

	byPost := map[uint]*PostAnalytics{}
	visitors := map[uint]map[string]struct{}{}
	for _, row := range rows {
		p, ok := byPost[row.PostID]
		if !ok {
			p = &PostAnalytics{
				PostID:  row.PostID,
				Slug:    row.Slug,
				Title:   row.Title,
				Devices: map[pageviews.DeviceType]int64{},
			}
			byPost[row.PostID] = p
			visitors[row.PostID] = map[string]struct{}{}
		}
		p.Views++
		p.Devices[row.DeviceType]++
		visitors[row.PostID][row.Fingerprint] = struct{}{}
		if row.ViewedAt.After(p.LastViewedAt) {
			p.LastViewedAt = row.ViewedAt.UTC()
		}
	}

	result := make([]PostAnalytics, 0, len(byPost))
	for id, p := range byPost {
		p.UniqueVisitors = int64(len(visitors[id]))
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Views != result[j].Views {
			return result[i].Views > result[j].Views
		}
		return result[i].PostID < result[j].PostID
	})

	return &PostAnalyticsSummary{
		Days:      window.Days,
		Since:     window.From,
		Until:     window.To,
		Posts:     result,
		Scanned:   len(rows),
		Cap:       SummaryScanCap,
		Truncated: truncated,
	}, nil
}
