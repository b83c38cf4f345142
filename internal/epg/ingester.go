// Package epg fetches XMLTV guide data on a schedule, stores it through the
// repository, and re-emits it as a single XMLTV document.
package epg

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/plexbridge/plexbridge/internal/httpclient"
	"github.com/plexbridge/plexbridge/internal/metrics"
	"github.com/plexbridge/plexbridge/internal/models"
	"github.com/plexbridge/plexbridge/internal/observability"
	"github.com/plexbridge/plexbridge/internal/repository"
	"github.com/plexbridge/plexbridge/pkg/xmltv"
)

// DefaultFetchTimeout bounds one XMLTV download including body read.
const DefaultFetchTimeout = 60 * time.Second

// DefaultBatchSize is the insert batch size for program rows.
const DefaultBatchSize = 1000

// Ingester runs EPG fetch cycles. A cycle either fully succeeds and updates
// last_success, or fails and records last_error; there are no in-cycle
// retries, the next schedule tick is the retry.
type Ingester struct {
	sources   repository.EpgSourceRepository
	channels  repository.EpgChannelRepository
	programs  repository.EpgProgramRepository
	client    *http.Client
	batchSize int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewIngester creates an Ingester over the EPG repositories.
func NewIngester(repos *repository.Repositories, fetchTimeout time.Duration, batchSize int, m *metrics.Metrics, logger *slog.Logger) *Ingester {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Ingester{
		sources:   repos.EpgSources,
		channels:  repos.EpgChannels,
		programs:  repos.EpgPrograms,
		client:    httpclient.New(httpclient.Options{Timeout: fetchTimeout}),
		batchSize: batchSize,
		metrics:   m,
		logger:    observability.WithComponent(logger, "epg"),
	}
}

// IngestAll runs one cycle for every enabled source. Failures are recorded
// per source and do not stop the remaining sources.
func (i *Ingester) IngestAll(ctx context.Context) {
	sources, err := i.sources.ListEnabled(ctx)
	if err != nil {
		i.logger.Error("listing EPG sources", "error", err)
		return
	}
	for _, source := range sources {
		if err := i.IngestSource(ctx, source); err != nil {
			i.logger.Warn("EPG ingest failed",
				"source", source.Name, "error", err)
		}
	}
}

// IngestSource runs one fetch cycle for a single source. Each cycle gets a
// correlation ID so interleaved cycles can be told apart in the logs.
func (i *Ingester) IngestSource(ctx context.Context, source *models.EpgSource) error {
	log := i.logger.With("source", source.Name, "ingest_id", uuid.NewString())
	started := time.Now()

	channels, programs, err := i.fetch(ctx, source)
	if err == nil {
		err = i.store(ctx, source, channels, programs)
	}

	if err != nil {
		i.metrics.RecordEpgIngest("failure")
		if recErr := i.sources.RecordError(ctx, source.ID, err.Error()); recErr != nil {
			log.Error("recording ingest error", "error", recErr)
		}
		return err
	}

	i.metrics.RecordEpgIngest("success")
	if err := i.sources.RecordSuccess(ctx, source.ID, time.Now().UTC()); err != nil {
		log.Error("recording ingest success", "error", err)
	}
	if count, err := i.programs.CountForSource(ctx, source.ID); err == nil {
		i.metrics.EpgProgramsStored.Set(float64(count))
	}

	log.Info("EPG ingest complete",
		"channels", len(channels),
		"programs", len(programs),
		"duration", time.Since(started))
	return nil
}

// fetch downloads and stream-parses the source document. Nothing is written
// to the database until the whole document has parsed.
func (i *Ingester) fetch(ctx context.Context, source *models.EpgSource) ([]*models.EpgChannel, []*models.EpgProgram, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	// Explicit so the transport hands us the raw body; the parser detects
	// compression from magic bytes.
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching %s: %w", source.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetching %s: HTTP %d", source.URL, resp.StatusCode)
	}

	var channels []*models.EpgChannel
	var programs []*models.EpgProgram

	parser := &xmltv.Parser{
		OnChannel: func(ch *xmltv.Channel) error {
			channels = append(channels, &models.EpgChannel{
				SourceID:    source.ID,
				EpgID:       ch.ID,
				DisplayName: ch.DisplayName,
				IconURL:     ch.Icon,
			})
			return nil
		},
		OnProgramme: func(prog *xmltv.Programme) error {
			programs = append(programs, &models.EpgProgram{
				SourceID:    source.ID,
				EpgID:       prog.Channel,
				Start:       prog.Start.UTC(),
				Stop:        prog.Stop.UTC(),
				Title:       prog.Title,
				Description: prog.Description,
				Category:    prog.Category,
			})
			return nil
		},
		OnError: func(err error) {
			i.logger.Debug("skipping malformed XMLTV element",
				"source", source.Name, "error", err)
		},
	}

	if err := parser.ParseCompressed(resp.Body); err != nil {
		return nil, nil, fmt.Errorf("parsing XMLTV: %w", err)
	}
	return channels, programs, nil
}

// store upserts channels and replaces each channel's program window.
func (i *Ingester) store(ctx context.Context, source *models.EpgSource, channels []*models.EpgChannel, programs []*models.EpgProgram) error {
	for _, ch := range channels {
		if err := i.channels.Upsert(ctx, ch); err != nil {
			return fmt.Errorf("upserting channel %s: %w", ch.EpgID, err)
		}
	}

	byChannel := make(map[string][]*models.EpgProgram)
	for _, prog := range programs {
		byChannel[prog.EpgID] = append(byChannel[prog.EpgID], prog)
	}

	for epgID, progs := range byChannel {
		window := ingestedWindow(progs)
		if err := i.programs.ReplaceWindow(ctx, source.ID, epgID, window, progs, i.batchSize); err != nil {
			return fmt.Errorf("replacing programs for %s: %w", epgID, err)
		}
	}
	return nil
}

// ingestedWindow is the half-open hull of the ingested programs.
func ingestedWindow(programs []*models.EpgProgram) repository.TimeWindow {
	w := repository.TimeWindow{Start: programs[0].Start, Stop: programs[0].Stop}
	for _, p := range programs[1:] {
		if p.Start.Before(w.Start) {
			w.Start = p.Start
		}
		if p.Stop.After(w.Stop) {
			w.Stop = p.Stop
		}
	}
	return w
}
