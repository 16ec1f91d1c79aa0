package jobs_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"linblog/internal/jobs"
	"linblog/internal/pkg/geoip"
	"linblog/internal/testsupport"
)

func TestGeoIPReloadJob(t *testing.T) {
	logger := testsupport.GetLogger()

	assert.False(t, jobs.NewGeoIPReloadJob(nil, logger).Run())

	resolver := geoip.Open(filepath.Join(t.TempDir(), "GeoLite2-Country.mmdb"), logger)
	assert.False(t, jobs.NewGeoIPReloadJob(resolver, logger).Run(), "nothing on disk to load")
}
