package app_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linblog/app"
	"linblog/internal/posts"
	"linblog/internal/testsupport"
)

func TestServiceFacade(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, app.Migrate(db))

	post := testsupport.CreateTestPost(t, db, "facade", posts.StatusPublished)
	svc := app.NewService(db)
	ctx := context.Background()

	result, err := svc.RecordPostView(ctx, app.RecordPostViewInput{
		PostID:    post.ID,
		Source:    app.SourceFrontend,
		IP:        "203.0.113.9",
		UserAgent: testsupport.IPadSafariUA,
	})
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, app.DeviceTablet, result.DeviceType)

	count, err := svc.CountViews(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	page, err := svc.ListPostViewEvents(ctx, app.ViewEventFilter{
		PostID: post.ID,
		IP:     &app.IPFilter{Mode: app.IPMatchEquals, Value: "203.0.113.9"},
	}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, app.Fingerprint("203.0.113.9", testsupport.IPadSafariUA), page.Events[0].Fingerprint)

	assert.True(t, app.IsBot(testsupport.GooglebotUA))
	assert.Equal(t, app.DeviceMobile, app.ClassifyDevice(testsupport.IPhoneSafariUA))
}
