package geoip_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linblog/internal/pkg/geoip"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolverWithoutDatabase(t *testing.T) {
	r := geoip.Open(filepath.Join(t.TempDir(), "missing.mmdb"), quietLogger())

	assert.False(t, r.Enabled())
	assert.Equal(t, "", r.CountryCode("8.8.8.8"))
	assert.False(t, r.ReloadIfChanged())
	assert.NoError(t, r.Close())
}

func TestResolverEmptyPath(t *testing.T) {
	r := geoip.Open("", quietLogger())
	assert.False(t, r.Enabled())
	assert.False(t, r.ReloadIfChanged())
}

func TestResolverCorruptDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("not a maxmind database"), 0o644))

	r := geoip.Open(path, quietLogger())
	assert.False(t, r.Enabled())
	assert.Equal(t, "", r.CountryCode("1.1.1.1"))
}

func TestNilResolver(t *testing.T) {
	var r *geoip.Resolver
	assert.False(t, r.Enabled())
	assert.Equal(t, "", r.CountryCode("8.8.8.8"))
	assert.NoError(t, r.Close())
}

func TestDefaultResolver(t *testing.T) {
	t.Cleanup(func() { geoip.SetDefault(nil) })

	assert.Nil(t, geoip.Default())
	assert.Equal(t, "", geoip.Default().CountryCode("8.8.8.8"))

	r := geoip.Open("", quietLogger())
	geoip.SetDefault(r)
	assert.Same(t, r, geoip.Default())
}
