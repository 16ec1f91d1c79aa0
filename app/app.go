// Package app is the public entry point for embedding the blog analytics
// service in another program.
package app

import (
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"linblog/internal"
	"linblog/internal/analytics"
	"linblog/internal/config"
	"linblog/internal/database"
	"linblog/internal/pageviews"
	"linblog/internal/pkg/user_agent"
	"linblog/internal/posts"
	"linblog/internal/visitors"
)

// Re-export core types
type (
	Application = internal.Application
	Config      = config.Config
	DBManager   = database.DBManager
)

// Re-export analytics types
type (
	Service              = analytics.Service
	RecordPostViewInput  = analytics.RecordPostViewInput
	DashboardStats       = analytics.DashboardStats
	PostAnalyticsSummary = analytics.PostAnalyticsSummary
	MetricCountResult    = analytics.MetricCountResult
	ViewEvent            = pageviews.ViewEvent
	ViewEventFilter      = pageviews.ViewEventFilter
	ViewEventPage        = pageviews.ViewEventPage
	IPFilter             = pageviews.IPFilter
	RecordResult         = pageviews.RecordResult
	Source               = pageviews.Source
	DeviceType           = pageviews.DeviceType
	PostSummary          = posts.PostSummary
)

// Re-export enum values
const (
	SourceFrontend = pageviews.SourceFrontend
	SourcePreview  = pageviews.SourcePreview

	DeviceDesktop = pageviews.DeviceDesktop
	DeviceMobile  = pageviews.DeviceMobile
	DeviceTablet  = pageviews.DeviceTablet
	DeviceBot     = pageviews.DeviceBot
	DeviceOther   = pageviews.DeviceOther

	IPMatchContains = pageviews.IPMatchContains
	IPMatchEquals   = pageviews.IPMatchEquals
)

// Classifier and fingerprint helpers
var (
	IsBot          = user_agent.IsBot
	ClassifyDevice = user_agent.ClassifyDevice
	Fingerprint    = visitors.Fingerprint
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	return config.GetConfig()
}

// NewApp creates a new application with default routes
func NewApp() (*Application, error) {
	return internal.NewApp()
}

// NewService builds an analytics service over an existing gorm connection
// whose schema already holds the posts and view_events tables.
func NewService(db *gorm.DB) *Service {
	return analytics.NewGormService(db, nil)
}

// MountAppRoutes mounts the ingestion, admin and health routes on srv.
func MountAppRoutes(srv *cartridge.Server) {
	internal.MountAppRoutes(srv)
}

// Migrate creates or updates the analytics schema on db.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(database.Models()...)
}
