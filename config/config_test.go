package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentscout/extract"
	"rentscout/models"
)

func TestLoadProfile_Missing(t *testing.T) {
	p, err := LoadProfile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, extract.DefaultLabels, p.Types)
	assert.Equal(t, 100000.0, p.PriceRange.Max)
	assert.Empty(t, p.SavedSearches)
}

func TestLoadProfile_Bundled(t *testing.T) {
	p, err := LoadProfile("profile.yaml")
	require.NoError(t, err)

	assert.Equal(t, "pg", p.Types["Paying Guest"])
	require.Len(t, p.SavedSearches, 2)

	first := p.SavedSearches[0]
	assert.Equal(t, "two-bhk-flats", first.ID)
	assert.True(t, first.Enabled)
	assert.Equal(t, []string{"Flats"}, first.Criteria.Types)
	assert.Equal(t, models.BedroomFilter("2"), first.Criteria.Bedrooms)
	assert.Equal(t, 25000.0, first.Criteria.Price.Max)
	assert.Equal(t, models.BedroomsFivePlus, p.SavedSearches[1].Criteria.Bedrooms)
}

func TestLoadProfile_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("price_range:\n  min: 1000\n  max: 50000\n"), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, models.Range{Min: 1000, Max: 50000}, p.PriceRange)
	assert.Equal(t, 10000.0, p.AreaRange.Max)
	assert.Equal(t, extract.DefaultLabels, p.Types)
}

func TestLoadProfile_DuplicateID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	body := "saved_searches:\n  - id: a\n  - id: a\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := LoadProfile(path)
	assert.ErrorContains(t, err, "duplicate saved search id")
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RENTSCOUT_API_BASE", "https://rent.example/api")
	t.Setenv("RENTSCOUT_ADMIN", "true")
	t.Setenv("RENTSCOUT_SEARCH_TIMEOUT", "10s")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://rent.example/api", cfg.API.BaseURL)
	assert.True(t, cfg.API.Admin)
	assert.Equal(t, 10*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 100, cfg.Search.PageSize)
	assert.Equal(t, 50, cfg.Search.MaxPages)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.S3.Enabled())
	require.NotNil(t, cfg.Profile)
}
