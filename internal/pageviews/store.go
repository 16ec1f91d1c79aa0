package pageviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"linblog/internal/timeframe"
)

// Store is the persistence surface used by the recorder, the query service and
// the aggregation engine. Every read excludes soft-deleted rows.
type Store interface {
	Insert(ctx context.Context, event *ViewEvent) error
	FindRecent(ctx context.Context, postID uint, fingerprint string, since time.Time) (*ViewEvent, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	ListSinceWithPosts(ctx context.Context, since time.Time, limit int) ([]EventWithPost, error)
	CountByDay(ctx context.Context, since time.Time) ([]timeframe.DateStat, error)
	CountByPost(ctx context.Context, since time.Time, limit int) ([]PostCount, error)
	CountByDeviceType(ctx context.Context, since time.Time) ([]DeviceCount, error)
	CountByUserAgent(ctx context.Context, since time.Time) ([]ValueCount, error)
	CountByReferer(ctx context.Context, since time.Time) ([]ValueCount, error)
	CountByCountry(ctx context.Context, since time.Time) ([]ValueCount, error)
	ListFiltered(ctx context.Context, filter ViewEventFilter, limit, offset int) ([]ViewEvent, int64, error)
}

// GormStore implements Store over gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a Store backed by db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// live scopes a query to non-deleted view events.
func (s *GormStore) live(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&ViewEvent{})
}

// joined is the raw view_events/posts join; soft-delete filtering is explicit here.
func (s *GormStore) joined(ctx context.Context, since time.Time) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("view_events AS v").
		Joins("LEFT JOIN posts p ON p.id = v.post_id").
		Where("v.deleted_at IS NULL AND v.viewed_at >= ?", since.UTC())
}

func (s *GormStore) Insert(ctx context.Context, event *ViewEvent) error {
	event.ViewedAt = event.ViewedAt.UTC()
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("insert view event: %w", err)
	}
	return nil
}

// FindRecent returns the newest event for (postID, fingerprint) at or after since, or nil.
func (s *GormStore) FindRecent(ctx context.Context, postID uint, fingerprint string, since time.Time) (*ViewEvent, error) {
	var event ViewEvent
	err := s.live(ctx).
		Where("post_id = ? AND fingerprint = ? AND viewed_at >= ?", postID, fingerprint, since.UTC()).
		Order("viewed_at DESC").
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recent view event: %w", err)
	}
	return &event, nil
}

func (s *GormStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := s.live(ctx).Where("viewed_at >= ?", since.UTC()).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count view events: %w", err)
	}
	return count, nil
}

// ListSinceWithPosts returns at most limit events, newest first, labelled with their post.
func (s *GormStore) ListSinceWithPosts(ctx context.Context, since time.Time, limit int) ([]EventWithPost, error) {
	var rows []struct {
		ViewEvent
		PostSlug  *string
		PostTitle *string
	}
	err := s.joined(ctx, since).
		Select("v.id, v.post_id, v.viewed_at, v.ip, v.user_agent, v.referer, v.accept_language, v.device_type, v.fingerprint, v.country, p.slug AS post_slug, p.title AS post_title").
		Order("v.viewed_at DESC, v.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list view events with posts: %w", err)
	}

	result := make([]EventWithPost, 0, len(rows))
	for _, r := range rows {
		e := EventWithPost{ViewEvent: r.ViewEvent}
		if r.PostSlug != nil {
			e.Slug = *r.PostSlug
		}
		if r.PostTitle != nil {
			e.Title = *r.PostTitle
		}
		result = append(result, e)
	}
	return result, nil
}

// CountByDay buckets events by UTC calendar day, ascending. Empty days are absent.
func (s *GormStore) CountByDay(ctx context.Context, since time.Time) ([]timeframe.DateStat, error) {
	day := timeframe.SQLiteDayExpression("viewed_at")

	var stats []timeframe.DateStat
	err := s.live(ctx).
		Select(day+" AS date, COUNT(*) AS count").
		Where("viewed_at >= ?", since.UTC()).
		Group(day).
		Order("date ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("count view events by day: %w", err)
	}
	return stats, nil
}

// CountByPost returns the most viewed posts. Ties are broken by post id ascending.
func (s *GormStore) CountByPost(ctx context.Context, since time.Time, limit int) ([]PostCount, error) {
	var rows []PostCount
	err := s.joined(ctx, since).
		Select("v.post_id AS post_id, COALESCE(p.slug, '') AS slug, COALESCE(p.title, '') AS title, COUNT(*) AS count").
		Group("v.post_id, p.slug, p.title").
		Order("count DESC, v.post_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count view events by post: %w", err)
	}
	return rows, nil
}

// CountByDeviceType groups by the stored device code. Unknown codes fail the scan.
func (s *GormStore) CountByDeviceType(ctx context.Context, since time.Time) ([]DeviceCount, error) {
	var rows []DeviceCount
	err := s.live(ctx).
		Select("device_type, COUNT(*) AS count").
		Where("viewed_at >= ?", since.UTC()).
		Group("device_type").
		Order("count DESC, device_type ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count view events by device type: %w", err)
	}
	return rows, nil
}

func (s *GormStore) CountByUserAgent(ctx context.Context, since time.Time) ([]ValueCount, error) {
	return s.countByColumn(ctx, since, "user_agent")
}

func (s *GormStore) CountByReferer(ctx context.Context, since time.Time) ([]ValueCount, error) {
	return s.countByColumn(ctx, since, "referer")
}

func (s *GormStore) CountByCountry(ctx context.Context, since time.Time) ([]ValueCount, error) {
	return s.countByColumn(ctx, since, "country")
}

func (s *GormStore) countByColumn(ctx context.Context, since time.Time, column string) ([]ValueCount, error) {
	var rows []ValueCount
	err := s.live(ctx).
		Select(fmt.Sprintf("COALESCE(%s, '') AS value, COUNT(*) AS count", column)).
		Where("viewed_at >= ?", since.UTC()).
		Group(fmt.Sprintf("COALESCE(%s, '')", column)).
		Order("count DESC, value ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count view events by %s: %w", column, err)
	}
	return rows, nil
}

// ListFiltered returns one page of matching events plus the pre-pagination total.
func (s *GormStore) ListFiltered(ctx context.Context, filter ViewEventFilter, limit, offset int) ([]ViewEvent, int64, error) {
	scoped := func() *gorm.DB {
		return applyFilter(s.live(ctx), filter)
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count filtered view events: %w", err)
	}

	var events []ViewEvent
	err := scoped().
		Order("viewed_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list filtered view events: %w", err)
	}
	return events, total, nil
}

func applyFilter(query *gorm.DB, filter ViewEventFilter) *gorm.DB {
	query = query.Where("post_id = ?", filter.PostID)

	if filter.Since != nil {
		query = query.Where("viewed_at >= ?", filter.Since.UTC())
	}
	if filter.Until != nil {
		query = query.Where("viewed_at <= ?", filter.Until.UTC())
	}
	if filter.DeviceType != "" {
		query = query.Where("device_type = ?", string(filter.DeviceType))
	}
	if filter.IP != nil && filter.IP.Value != "" {
		switch filter.IP.Mode {
		case IPMatchEquals:
			query = query.Where("ip = ?", filter.IP.Value)
		default:
			query = query.Where(`ip LIKE ? ESCAPE '\'`, likeContains(filter.IP.Value))
		}
	}
	if filter.UserAgentContains != "" {
		query = query.Where(`user_agent LIKE ? ESCAPE '\'`, likeContains(filter.UserAgentContains))
	}
	if filter.RefererContains != "" {
		query = query.Where(`referer LIKE ? ESCAPE '\'`, likeContains(filter.RefererContains))
	}
	return query
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeContains wraps s for a substring LIKE match with wildcards escaped.
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
