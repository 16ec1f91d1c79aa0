package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linblog/internal"
	"linblog/internal/config"
	"linblog/internal/database"
	"linblog/internal/pageviews"
	"linblog/internal/pkg/user_agent"
	"linblog/internal/posts"
	"linblog/internal/visitors"
)

// Common user agents for fixtures.
const (
	DesktopChromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	IPhoneSafariUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	IPadSafariUA    = "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	GooglebotUA     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

// testDBCache caches test databases by root test name so setup helpers called
// from subtests share one database.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager.
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a migrated in-memory database shared by every call within
// the same root test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager returns a DB manager over a fresh test database plus a quiet logger.
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()
	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanAllTables clears every application table.
func CleanAllTables(db *gorm.DB) {
	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"view_events", "posts"} {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateTestPost inserts a post with the given slug and status.
func CreateTestPost(t *testing.T, db *gorm.DB, slug string, status posts.Status) *posts.Post {
	t.Helper()

	post := &posts.Post{
		Slug:   slug,
		Title:  strings.ReplaceAll(slug, "-", " "),
		Status: status,
	}
	require.NoError(t, posts.CreatePost(db, post))
	return post
}

// ViewEventOption adjusts a fixture event before insertion.
type ViewEventOption func(*pageviews.ViewEvent)

// WithUserAgent sets the user agent and the device type derived from it.
func WithUserAgent(ua string) ViewEventOption {
	return func(e *pageviews.ViewEvent) {
		e.UserAgent = ua
		e.DeviceType = user_agent.ClassifyDevice(ua)
	}
}

// WithIP sets the client address.
func WithIP(ip string) ViewEventOption {
	return func(e *pageviews.ViewEvent) { e.IP = ip }
}

// WithReferer sets the referer header.
func WithReferer(referer string) ViewEventOption {
	return func(e *pageviews.ViewEvent) { e.Referer = &referer }
}

// WithCountry sets the ISO country code.
func WithCountry(code string) ViewEventOption {
	return func(e *pageviews.ViewEvent) { e.Country = code }
}

// WithDeviceType overrides the stored device code.
func WithDeviceType(d pageviews.DeviceType) ViewEventOption {
	return func(e *pageviews.ViewEvent) { e.DeviceType = d }
}

var fixtureSeq struct {
	sync.Mutex
	n int
}

// CreateViewEvent inserts a view event for postID at viewedAt directly, bypassing the recorder.
func CreateViewEvent(t *testing.T, db *gorm.DB, postID uint, viewedAt time.Time, opts ...ViewEventOption) *pageviews.ViewEvent {
	t.Helper()

	fixtureSeq.Lock()
	fixtureSeq.n++
	seq := fixtureSeq.n
	fixtureSeq.Unlock()

	event := &pageviews.ViewEvent{
		ID:         fmt.Sprintf("evt-%06d", seq),
		PostID:     postID,
		ViewedAt:   viewedAt.UTC(),
		IP:         fmt.Sprintf("10.0.%d.%d", seq/256%256, seq%256),
		UserAgent:  DesktopChromeUA,
		DeviceType: pageviews.DeviceDesktop,
	}
	for _, opt := range opts {
		opt(event)
	}
	event.Fingerprint = visitors.Fingerprint(event.IP, event.UserAgent)

	require.NoError(t, db.Create(event).Error)
	return event
}

// CreateMinimalTestApp creates a Fiber app with every route mounted over db.
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	appConfig := config.GetConfig()
	appConfig.Environment = config.Test
	appConfig.DashboardCacheSeconds = 0

	cfg := internal.NewServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = NewTestDBManager(db)

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
