// Package pageviews records post views and serves them back for drill-down.
//
// The Recorder decides whether a view attempt counts and the QueryService lists
// stored events for a single post. Both reach storage only through Store.
package pageviews

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"linblog/internal/pkg/user_agent"
)

// DeviceType is the coarse device category frozen on each event at write time.
type DeviceType = user_agent.DeviceType

const (
	DeviceDesktop = user_agent.DeviceDesktop
	DeviceMobile  = user_agent.DeviceMobile
	DeviceTablet  = user_agent.DeviceTablet
	DeviceBot     = user_agent.DeviceBot
	DeviceOther   = user_agent.DeviceOther
)

var (
	// ErrUnknownDeviceType surfaces when the store returns a device code this build does not know.
	ErrUnknownDeviceType = user_agent.ErrUnknownDeviceType
	// ErrPostIDRequired is returned by event listing without a post id.
	ErrPostIDRequired = errors.New("post id is required")
	// ErrInvalidFilter is returned for malformed drill-down filters.
	ErrInvalidFilter = errors.New("invalid view event filter")
)

// ViewEvent is one counted page view. Rows are append-only; the only mutation
// is soft deletion by the retention job.
type ViewEvent struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID         uint           `gorm:"not null;index:idx_view_events_dedup,priority:1;index:idx_view_events_post_time,priority:1" json:"post_id"`
	ViewedAt       time.Time      `gorm:"not null;index;index:idx_view_events_dedup,priority:3;index:idx_view_events_post_time,priority:2" json:"viewed_at"`
	IP             string         `gorm:"type:varchar(64);not null" json:"ip"`
	UserAgent      string         `gorm:"type:text;not null;default:''" json:"user_agent"`
	Referer        *string        `gorm:"type:text" json:"referer"`
	AcceptLanguage *string        `gorm:"type:varchar(255)" json:"accept_language"`
	DeviceType     DeviceType     `gorm:"type:varchar(16);not null;index" json:"device_type"`
	Fingerprint    string         `gorm:"type:char(64);not null;index:idx_view_events_dedup,priority:2" json:"fingerprint"`
	Country        string         `gorm:"type:varchar(2);not null;default:''" json:"country"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// EventWithPost is a ViewEvent joined with the labels of its post.
// Slug and Title are empty when the post row no longer exists.
type EventWithPost struct {
	ViewEvent
	Slug  string
	Title string
}

// PostCount is a per-post grouped count.
type PostCount struct {
	PostID uint   `json:"post_id"`
	Slug   string `json:"slug"`
	Title  string `json:"title"`
	Count  int64  `json:"count"`
}

// DeviceCount is a per-device grouped count.
type DeviceCount struct {
	DeviceType DeviceType `json:"device_type"`
	Count      int64      `json:"count"`
}

// ValueCount is a grouped count keyed by a raw column value (user agent, referer, country).
type ValueCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}
