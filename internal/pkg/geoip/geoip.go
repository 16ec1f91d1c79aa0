// Package geoip resolves client addresses to ISO country codes using an optional
// GeoLite2 Country database.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oschwald/geoip2-golang"
)

// Resolver looks up countries. A Resolver without a database answers "" for every address.
type Resolver struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	reader  *geoip2.Reader
	modTime time.Time
}

var defaultResolver atomic.Pointer[Resolver]

// SetDefault installs the resolver used by request handlers.
func SetDefault(r *Resolver) {
	defaultResolver.Store(r)
}

// Default returns the installed resolver, or nil when none was set.
func Default() *Resolver {
	return defaultResolver.Load()
}

// Open loads the database at path. A missing or unreadable file is not an error:
// GeoIP is optional and the returned Resolver simply resolves nothing.
func Open(path string, logger *slog.Logger) *Resolver {
	r := &Resolver{path: path, logger: logger}
	r.mu.Lock()
	r.reader, r.modTime = r.load()
	r.mu.Unlock()
	return r
}

func (r *Resolver) load() (*geoip2.Reader, time.Time) {
	if r.path == "" {
		r.logger.Debug("GeoIP database path not configured - country lookup disabled")
		return nil, time.Time{}
	}

	info, err := os.Stat(r.path)
	if os.IsNotExist(err) {
		r.logger.Info("GeoLite2 database not found - country lookup disabled",
			slog.String("path", r.path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil, time.Time{}
	} else if err != nil {
		r.logger.Warn("Error checking GeoLite2 database file",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil, time.Time{}
	}

	db, err := geoip2.Open(r.path)
	if err != nil {
		r.logger.Error("Failed to open GeoLite2 database",
			slog.String("path", r.path),
			slog.Any("error", err))
		return nil, time.Time{}
	}

	r.logger.Info("GeoLite2 database loaded",
		slog.String("path", r.path),
		slog.Int64("size_bytes", info.Size()))
	return db, info.ModTime()
}

// Enabled reports whether a database is loaded.
func (r *Resolver) Enabled() bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reader != nil
}

// CountryCode returns the ISO 3166-1 alpha-2 code for ip, or "" when unknown.
func (r *Resolver) CountryCode(ip string) string {
	if r == nil {
		return ""
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return ""
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.reader == nil {
		return ""
	}

	country, err := r.reader.Country(parsed)
	if err != nil {
		return ""
	}
	return country.Country.IsoCode
}

// ReloadIfChanged reopens the database when the file on disk is newer than the
// loaded copy, or appeared since startup. It reports whether a reload happened.
func (r *Resolver) ReloadIfChanged() bool {
	if r == nil || r.path == "" {
		return false
	}
	info, err := os.Stat(r.path)
	if err != nil {
		return false
	}

	r.mu.RLock()
	current := r.modTime
	loaded := r.reader != nil
	r.mu.RUnlock()
	if loaded && !info.ModTime().After(current) {
		return false
	}

	reader, modTime := r.load()
	if reader == nil {
		return false
	}

	r.mu.Lock()
	old := r.reader
	r.reader, r.modTime = reader, modTime
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	r.logger.Info("GeoLite2 database reloaded", slog.String("path", r.path))
	return true
}

// Close releases the database.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reader == nil {
		return nil
	}
	err := r.reader.Close()
	r.reader = nil
	return err
}
