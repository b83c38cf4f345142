package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/plexbridge/plexbridge/internal/config"
	"github.com/plexbridge/plexbridge/internal/events"
	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/plexbridge/plexbridge/internal/repository"
)

func setupRepos(t *testing.T) (*gorm.DB, *repository.Repositories) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.FFmpegProfile{}, &models.EpgSource{}))

	return db, repository.New(db)
}

type fakeController struct {
	snapshots  []events.SessionSnapshot
	terminated []string
}

func (f *fakeController) List() []events.SessionSnapshot { return f.snapshots }

func (f *fakeController) Terminate(sessionID string) error {
	f.terminated = append(f.terminated, sessionID)
	return nil
}

func TestStreamsHandler_ListActive(t *testing.T) {
	ctrl := &fakeController{}
	h := NewStreamsHandler(ctrl)

	out, err := h.ListActive(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Body.Count)
	assert.NotNil(t, out.Body.Sessions)

	ctrl.snapshots = []events.SessionSnapshot{
		{SessionID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", State: "running"},
	}
	out, err = h.ListActive(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Body.Count)
	assert.Equal(t, "running", out.Body.Sessions[0].State)
}

func TestStreamsHandler_TerminateIsAlwaysSuccess(t *testing.T) {
	ctrl := &fakeController{}
	h := NewStreamsHandler(ctrl)

	// Terminating an unknown (or already closed) session still succeeds.
	out, err := h.Terminate(context.Background(), &TerminateInput{SessionID: "gone"})
	require.NoError(t, err)
	assert.True(t, out.Body.Success)
	assert.Equal(t, []string{"gone"}, ctrl.terminated)
}

func TestProfilesHandler_CRUD(t *testing.T) {
	_, repos := setupRepos(t)
	ctx := context.Background()
	h := NewProfilesHandler(repos.Profiles)

	createInput := &CreateProfileInput{}
	createInput.Body.Name = "custom"
	createInput.Body.Clients = models.ProfileClients{
		models.ClientWebBrowser: {FFmpegArgs: "-i [URL] -c copy -f mpegts pipe:1"},
	}
	created, err := h.Create(ctx, createInput)
	require.NoError(t, err)
	require.NotNil(t, created.Body)

	got, err := h.Get(ctx, &ProfileInput{ID: created.Body.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "custom", got.Body.Name)

	list, err := h.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list.Body.Profiles, 1)

	_, err = h.Get(ctx, &ProfileInput{ID: models.NewULID().String()})
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.GetStatus())
}

func TestProfilesHandler_SetDefaultAndDeleteRules(t *testing.T) {
	_, repos := setupRepos(t)
	ctx := context.Background()
	h := NewProfilesHandler(repos.Profiles)

	clients := models.ProfileClients{
		models.ClientWebBrowser: {FFmpegArgs: "-i [URL] -c copy -f mpegts pipe:1"},
	}
	first := &models.FFmpegProfile{Name: "first", IsDefault: true, Clients: clients}
	require.NoError(t, repos.Profiles.Create(ctx, first))
	second := &models.FFmpegProfile{Name: "second", Clients: clients}
	require.NoError(t, repos.Profiles.Create(ctx, second))

	out, err := h.SetDefault(ctx, &ProfileInput{ID: second.ID.String()})
	require.NoError(t, err)
	assert.True(t, out.Body.Success)

	def, err := repos.Profiles.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, def.ID)

	// The new default cannot be deleted; the old one can.
	_, err = h.Delete(ctx, &ProfileInput{ID: second.ID.String()})
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 409, statusErr.GetStatus())

	_, err = h.Delete(ctx, &ProfileInput{ID: first.ID.String()})
	require.NoError(t, err)
}

func TestProfilesHandler_SystemProfileUndeletable(t *testing.T) {
	_, repos := setupRepos(t)
	ctx := context.Background()
	h := NewProfilesHandler(repos.Profiles)

	system := &models.FFmpegProfile{
		Name:     "builtin",
		IsSystem: true,
		Clients: models.ProfileClients{
			models.ClientWebBrowser: {FFmpegArgs: "-i [URL] -c copy -f mpegts pipe:1"},
		},
	}
	require.NoError(t, repos.Profiles.Create(ctx, system))

	_, err := h.Delete(ctx, &ProfileInput{ID: system.ID.String()})
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 409, statusErr.GetStatus())
}

type fakeRefresher struct {
	refreshed []string
	err       error
}

func (f *fakeRefresher) IngestSource(ctx context.Context, source *models.EpgSource) error {
	f.refreshed = append(f.refreshed, source.Name)
	return f.err
}

func TestEpgHandler_ListAndRefresh(t *testing.T) {
	_, repos := setupRepos(t)
	ctx := context.Background()

	source := &models.EpgSource{Name: "guide", URL: "http://guide.local/xmltv", RefreshInterval: time.Hour}
	require.NoError(t, repos.EpgSources.Create(ctx, source))

	refresher := &fakeRefresher{}
	h := NewEpgHandler(repos.EpgSources, refresher)

	list, err := h.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list.Body.Sources, 1)

	out, err := h.Refresh(ctx, &RefreshInput{ID: source.ID.String()})
	require.NoError(t, err)
	assert.True(t, out.Body.Success)
	assert.Equal(t, []string{"guide"}, refresher.refreshed)

	_, err = h.Refresh(ctx, &RefreshInput{ID: models.NewULID().String()})
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.GetStatus())
}

func TestEpgHandler_RefreshFailure(t *testing.T) {
	_, repos := setupRepos(t)
	ctx := context.Background()

	source := &models.EpgSource{Name: "guide", URL: "http://guide.local/xmltv", RefreshInterval: time.Hour}
	require.NoError(t, repos.EpgSources.Create(ctx, source))

	refresher := &fakeRefresher{err: errors.New("upstream down")}
	h := NewEpgHandler(repos.EpgSources, refresher)

	_, err := h.Refresh(ctx, &RefreshInput{ID: source.ID.String()})
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 502, statusErr.GetStatus())
}

type fakeLimiter struct {
	maxConcurrent int
	maxPerChannel int
}

func (f *fakeLimiter) SetLimits(maxConcurrent, maxPerChannel int) {
	f.maxConcurrent = maxConcurrent
	f.maxPerChannel = maxPerChannel
}

func TestSettingsHandler_Update(t *testing.T) {
	limiter := &fakeLimiter{}
	bus := events.New()
	defer bus.Close()

	changed := make(chan events.SettingsChangedEvent, 1)
	defer bus.Subscribe(func(e events.SettingsChangedEvent) { changed <- e })()

	h := NewSettingsHandler(config.StreamsConfig{
		MaxConcurrent:           5,
		MaxConcurrentPerChannel: 3,
		StreamTimeout:           30 * time.Second,
		GracePeriod:             10 * time.Second,
	}, limiter, bus)

	got, err := h.Get(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Body.MaxConcurrent)

	input := &UpdateSettingsInput{}
	input.Body.MaxConcurrent = 8
	input.Body.MaxConcurrentPerChannel = 2
	updated, err := h.Update(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Body.MaxConcurrent)
	assert.Equal(t, 8, limiter.maxConcurrent)
	assert.Equal(t, 2, limiter.maxPerChannel)

	select {
	case e := <-changed:
		assert.Contains(t, e.Keys, "streams.max_concurrent")
	case <-time.After(2 * time.Second):
		t.Fatal("settings change was not published")
	}
}

func TestHealthHandler(t *testing.T) {
	db, _ := setupRepos(t)
	h := NewHealthHandler(db)

	out, err := h.GetHealth(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "healthy", out.Body.Status)
	assert.Equal(t, "ok", out.Body.Checks["database"])
}
