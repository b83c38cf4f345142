package epg

import (
	"bytes"
	"compress/gzip"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/plexbridge/plexbridge/internal/metrics"
	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/plexbridge/plexbridge/internal/repository"
	"github.com/plexbridge/plexbridge/pkg/xmltv"
)

const guideDoc = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="bbc1">
    <display-name>BBC One</display-name>
  </channel>
  <channel id="itv">
    <display-name>ITV</display-name>
  </channel>
  <programme start="20240101000000 +0000" stop="20240101010000 +0000" channel="bbc1">
    <title>News</title>
  </programme>
  <programme start="20240101010000 +0000" stop="20240101020000 +0000" channel="bbc1">
    <title>Weather</title>
  </programme>
  <programme start="20240101000000 +0000" stop="20240101020000 +0000" channel="itv">
    <title>Film</title>
  </programme>
</tv>
`

func setupDB(t *testing.T) (*gorm.DB, *repository.Repositories) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Channel{}, &models.EpgSource{},
		&models.EpgChannel{}, &models.EpgProgram{}))

	return db, repository.New(db)
}

func newIngester(t *testing.T, repos *repository.Repositories) *Ingester {
	t.Helper()
	return NewIngester(repos, 5*time.Second, 1000, metrics.New(), slog.New(slog.DiscardHandler))
}

func createSource(t *testing.T, repos *repository.Repositories, url string) *models.EpgSource {
	t.Helper()
	source := &models.EpgSource{
		Name:            "guide",
		URL:             url,
		RefreshInterval: time.Hour,
	}
	require.NoError(t, repos.EpgSources.Create(context.Background(), source))
	return source
}

func TestIngester_IngestSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(guideDoc))
	}))
	defer srv.Close()

	_, repos := setupDB(t)
	ctx := context.Background()
	source := createSource(t, repos, srv.URL)

	require.NoError(t, newIngester(t, repos).IngestSource(ctx, source))

	chans, err := repos.EpgChannels.ListForSource(ctx, source.ID)
	require.NoError(t, err)
	assert.Len(t, chans, 2)

	count, err := repos.EpgPrograms.CountForSource(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	updated, err := repos.EpgSources.GetByID(ctx, source.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastSuccess)
	assert.Empty(t, updated.LastError)
}

func TestIngester_Idempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(guideDoc))
	}))
	defer srv.Close()

	_, repos := setupDB(t)
	ctx := context.Background()
	source := createSource(t, repos, srv.URL)
	ing := newIngester(t, repos)

	require.NoError(t, ing.IngestSource(ctx, source))
	require.NoError(t, ing.IngestSource(ctx, source))

	count, err := repos.EpgPrograms.CountForSource(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestIngester_GzipDocument(t *testing.T) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	_, err := gzw.Write([]byte(guideDoc))
	require.NoError(t, err)
	require.NoError(t, gzw.Close())
	body := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Raw gzip payload regardless of negotiation; the parser detects
		// compression from the magic bytes.
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	_, repos := setupDB(t)
	ctx := context.Background()
	source := createSource(t, repos, srv.URL)

	require.NoError(t, newIngester(t, repos).IngestSource(ctx, source))

	count, err := repos.EpgPrograms.CountForSource(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestIngester_RecordsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, repos := setupDB(t)
	ctx := context.Background()
	source := createSource(t, repos, srv.URL)

	err := newIngester(t, repos).IngestSource(ctx, source)
	require.Error(t, err)

	updated, getErr := repos.EpgSources.GetByID(ctx, source.ID)
	require.NoError(t, getErr)
	assert.Contains(t, updated.LastError, "HTTP 500")
	assert.Nil(t, updated.LastSuccess)
}

func TestEmitter_WriteXMLTV(t *testing.T) {
	_, repos := setupDB(t)
	ctx := context.Background()

	source := createSource(t, repos, "http://guide.local/xmltv")

	// Two configured channels; only one has guide data. A third epg_id
	// exists in storage but no configured channel references it.
	require.NoError(t, repos.Channels.Create(ctx, &models.Channel{
		Number: 1, Name: "BBC One", EpgID: "bbc1",
	}))
	require.NoError(t, repos.Channels.Create(ctx, &models.Channel{
		Number: 2, Name: "No Guide",
	}))

	now := time.Now().UTC().Truncate(time.Second)
	for _, prog := range []*models.EpgProgram{
		{SourceID: source.ID, EpgID: "bbc1", Start: now, Stop: now.Add(time.Hour), Title: "News"},
		{SourceID: source.ID, EpgID: "orphan", Start: now, Stop: now.Add(time.Hour), Title: "Hidden"},
		// Outside the emission window.
		{SourceID: source.ID, EpgID: "bbc1", Start: now.Add(-30 * time.Hour), Stop: now.Add(-29 * time.Hour), Title: "Old"},
	} {
		require.NoError(t, repos.EpgPrograms.ReplaceWindow(ctx, prog.SourceID, prog.EpgID,
			repository.TimeWindow{Start: prog.Start, Stop: prog.Stop},
			[]*models.EpgProgram{prog}, 100))
	}

	var buf bytes.Buffer
	emitter := NewEmitter(repos.Channels, repos.EpgPrograms, 2*time.Hour, 7*24*time.Hour)
	require.NoError(t, emitter.WriteXMLTV(ctx, &buf))

	out := buf.String()
	assert.Contains(t, out, `source-info-name="PlexBridge"`)
	assert.Contains(t, out, `<channel id="bbc1">`)
	assert.Contains(t, out, "<title>News</title>")
	assert.NotContains(t, out, "orphan")
	assert.NotContains(t, out, "Hidden")
	assert.NotContains(t, out, "Old")

	// Every emitted programme references a configured channel.
	var programmes []*xmltv.Programme
	p := &xmltv.Parser{OnProgramme: func(prog *xmltv.Programme) error {
		programmes = append(programmes, prog)
		return nil
	}}
	require.NoError(t, p.Parse(strings.NewReader(out)))
	require.Len(t, programmes, 1)
	assert.Equal(t, "bbc1", programmes[0].Channel)
	assert.True(t, programmes[0].Start.Equal(now))
}

func TestEmitter_RoundTripThroughIngest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(guideDoc))
	}))
	defer srv.Close()

	_, repos := setupDB(t)
	ctx := context.Background()
	source := createSource(t, repos, srv.URL)
	require.NoError(t, newIngester(t, repos).IngestSource(ctx, source))

	require.NoError(t, repos.Channels.Create(ctx, &models.Channel{
		Number: 1, Name: "BBC One", EpgID: "bbc1",
	}))

	// A window spanning the stored 2024 data.
	past := time.Since(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) + time.Hour
	emitter := NewEmitter(repos.Channels, repos.EpgPrograms, past, time.Hour)

	var buf bytes.Buffer
	require.NoError(t, emitter.WriteXMLTV(ctx, &buf))

	out := buf.String()
	assert.Contains(t, out, `<programme start="20240101000000 +0000" stop="20240101010000 +0000" channel="bbc1">`)
	assert.Contains(t, out, "<title>News</title>")
	assert.NotContains(t, out, "Film")
}
