// Package posts owns the read-only post projection consumed by page-view analytics.
package posts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Status is the publication state of a post.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

// ErrPostNotFound is returned when a post id does not resolve.
var ErrPostNotFound = errors.New("post not found")

// Post is the blog post row. Only the fields analytics needs are modelled here.
type Post struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	Title       string         `gorm:"not null" json:"title"`
	Status      Status         `gorm:"type:varchar(16);not null;default:'DRAFT';index" json:"status"`
	PublishedAt *time.Time     `json:"published_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// PostSummary is the projection used to validate view targets and label aggregates.
type PostSummary struct {
	ID        uint       `json:"id"`
	Slug      string     `json:"slug"`
	Title     string     `json:"title"`
	Status    Status     `json:"status"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the post has been soft-deleted.
func (p *PostSummary) Deleted() bool {
	return p.DeletedAt != nil
}

// Published reports whether the post is live.
func (p *PostSummary) Published() bool {
	return p.Status == StatusPublished && !p.Deleted()
}

// Summary projects a Post.
func (p *Post) Summary() *PostSummary {
	s := &PostSummary{ID: p.ID, Slug: p.Slug, Title: p.Title, Status: p.Status}
	if p.DeletedAt.Valid {
		deletedAt := p.DeletedAt.Time.UTC()
		s.DeletedAt = &deletedAt
	}
	return s
}

// Lookup resolves post summaries.
type Lookup interface {
	GetPostSummary(ctx context.Context, id uint) (*PostSummary, error)
}

// GormLookup reads posts through gorm.
type GormLookup struct {
	db *gorm.DB
}

// NewGormLookup creates a Lookup backed by db.
func NewGormLookup(db *gorm.DB) *GormLookup {
	return &GormLookup{db: db}
}

// GetPostSummary returns the post with the given id, or nil when no such row exists.
// Soft-deleted posts are returned with DeletedAt set so callers can reject them.
func (l *GormLookup) GetPostSummary(ctx context.Context, id uint) (*PostSummary, error) {
	if id == 0 {
		return nil, nil
	}

	var post Post
	err := l.db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return post.Summary(), nil
}

// CreatePost inserts a post, stamping PublishedAt for published posts.
func CreatePost(db *gorm.DB, post *Post) error {
	if post.Status == "" {
		post.Status = StatusDraft
	}
	if post.Status == StatusPublished && post.PublishedAt == nil {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}
	if err := db.Create(post).Error; err != nil {
		return fmt.Errorf("create post %q: %w", post.Slug, err)
	}
	return nil
}

// CountByStatus returns the number of live posts per status.
func CountByStatus(ctx context.Context, db *gorm.DB) (map[Status]int64, error) {
	var rows []struct {
		Status Status
		Count  int64
	}
	err := db.WithContext(ctx).Model(&Post{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count posts by status: %w", err)
	}

	result := make(map[Status]int64, len(rows))
	for _, r := range rows {
		result[r.Status] = r.Count
	}
	return result, nil
}
