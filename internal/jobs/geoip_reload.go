package jobs

import (
	"log/slog"

	"linblog/internal/pkg/geoip"
)

// GeoIPReloadJob picks up a GeoLite database that was replaced on disk, for
// example by geoipupdate, without a restart.
type GeoIPReloadJob struct {
	resolver *geoip.Resolver
	logger   *slog.Logger
}

func NewGeoIPReloadJob(resolver *geoip.Resolver, logger *slog.Logger) *GeoIPReloadJob {
	return &GeoIPReloadJob{resolver: resolver, logger: logger}
}

// Run reloads the database when the file changed. It never fails: a broken
// file keeps the previously loaded copy.
func (j *GeoIPReloadJob) Run() bool {
	if j.resolver == nil {
		return false
	}
	reloaded := j.resolver.ReloadIfChanged()
	if !reloaded {
		j.logger.Debug("GeoLite database unchanged")
	}
	return reloaded
}
