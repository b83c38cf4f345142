package profile

import (
	"context"
	"net/http"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/plexbridge/plexbridge/internal/repository"
)

func setupRepo(t *testing.T) repository.ProfileRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.FFmpegProfile{}))

	return repository.NewProfileRepository(db)
}

func request(t *testing.T, headers map[string]string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://localhost/stream/1", nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestDetectClientKind(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    models.ClientKind
	}{
		{
			name:    "no headers means web browser",
			headers: nil,
			want:    models.ClientWebBrowser,
		},
		{
			name: "generic browser",
			headers: map[string]string{
				"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0",
			},
			want: models.ClientWebBrowser,
		},
		{
			name: "plex android tv",
			headers: map[string]string{
				"User-Agent":      "Plex/10.2 (Linux;Android 12)",
				"X-Plex-Platform": "Android",
				"X-Plex-Product":  "Plex for Android (TV)",
			},
			want: models.ClientAndroidTV,
		},
		{
			name: "android tv device name",
			headers: map[string]string{
				"User-Agent":         "Plex/10.2",
				"X-Plex-Device-Name": "AndroidTV",
			},
			want: models.ClientAndroidTV,
		},
		{
			name: "plex android mobile",
			headers: map[string]string{
				"User-Agent":      "Plex/10.2 (Linux;Android 14) Pixel 8",
				"X-Plex-Platform": "Android",
			},
			want: models.ClientAndroidMobile,
		},
		{
			name: "plex ios",
			headers: map[string]string{
				"User-Agent":     "PlexMobile/8.0 (iPhone; iOS 17.1)",
				"X-Plex-Product": "Plex for iOS",
			},
			want: models.ClientIOSMobile,
		},
		{
			name: "plex apple tv",
			headers: map[string]string{
				"User-Agent":      "Plex/8.0 (tvOS 17.0)",
				"X-Plex-Platform": "tvOS",
			},
			want: models.ClientAppleTV,
		},
		{
			name: "plex web falls back to browser",
			headers: map[string]string{
				"User-Agent":     "Mozilla/5.0 Chrome/120.0",
				"X-Plex-Product": "Plex Web",
			},
			want: models.ClientWebBrowser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectClientKind(request(t, tt.headers)))
		})
	}
}

func TestResolver_PinnedProfileWins(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	def := &models.FFmpegProfile{
		Name:      "default",
		IsDefault: true,
		Clients: models.ProfileClients{
			models.ClientWebBrowser: {FFmpegArgs: "-i [URL] -c copy -f mpegts pipe:1"},
		},
	}
	pinned := &models.FFmpegProfile{
		Name: "pinned",
		Clients: models.ProfileClients{
			models.ClientWebBrowser: {FFmpegArgs: "-i [URL] -c:v libx264 -f mpegts pipe:1"},
		},
	}
	require.NoError(t, repo.Create(ctx, def))
	require.NoError(t, repo.Create(ctx, pinned))

	r := NewResolver(repo)
	stream := &models.Stream{ProfileID: &pinned.ID}

	args, err := r.Resolve(ctx, stream, models.ClientWebBrowser)
	require.NoError(t, err)
	assert.Contains(t, args.FFmpegArgs, "libx264")
}

func TestResolver_PinnedProfileMissingKindFallsThrough(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	def := &models.FFmpegProfile{
		Name:      "default",
		IsDefault: true,
		Clients: models.ProfileClients{
			models.ClientAndroidTV:  {FFmpegArgs: "-i [URL] -c copy -f mpegts pipe:1"},
			models.ClientWebBrowser: {FFmpegArgs: "-i [URL] -c:a aac -f mpegts pipe:1"},
		},
	}
	pinned := &models.FFmpegProfile{
		Name: "pinned",
		Clients: models.ProfileClients{
			models.ClientIOSMobile: {FFmpegArgs: "-i [URL] -c copy -f mpegts pipe:1"},
		},
	}
	require.NoError(t, repo.Create(ctx, def))
	require.NoError(t, repo.Create(ctx, pinned))

	r := NewResolver(repo)
	stream := &models.Stream{ProfileID: &pinned.ID}

	// The pinned profile has no android_tv entry, so the default's entry
	// for the same kind applies.
	args, err := r.Resolve(ctx, stream, models.ClientAndroidTV)
	require.NoError(t, err)
	assert.Contains(t, args.FFmpegArgs, "-c copy")

	// No entry for apple_tv anywhere: the default's web_browser entry is
	// the last resort.
	args, err = r.Resolve(ctx, stream, models.ClientAppleTV)
	require.NoError(t, err)
	assert.Contains(t, args.FFmpegArgs, "aac")
}

func TestResolver_NoDefaultProfile(t *testing.T) {
	repo := setupRepo(t)
	r := NewResolver(repo)

	_, err := r.Resolve(context.Background(), &models.Stream{}, models.ClientWebBrowser)
	assert.ErrorIs(t, err, ErrNoTemplate)
}

func TestResolver_SystemProfilesCoverAllKinds(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	for _, p := range models.SystemProfiles() {
		require.NoError(t, repo.Create(ctx, &p))
	}

	r := NewResolver(repo)
	for _, kind := range []models.ClientKind{
		models.ClientWebBrowser, models.ClientAndroidMobile,
		models.ClientAndroidTV, models.ClientIOSMobile, models.ClientAppleTV,
	} {
		args, err := r.Resolve(ctx, &models.Stream{}, kind)
		require.NoError(t, err, kind)
		assert.Contains(t, args.FFmpegArgs, "[URL]", kind)
	}
}
