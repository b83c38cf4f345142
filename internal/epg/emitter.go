package epg

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/plexbridge/plexbridge/internal/repository"
	"github.com/plexbridge/plexbridge/pkg/xmltv"
)

// sourceInfoName fills the tv element's source-info-name attribute.
const sourceInfoName = "PlexBridge"

// Default emission window bounds relative to now.
const (
	DefaultEmissionPast   = 2 * time.Hour
	DefaultEmissionFuture = 7 * 24 * time.Hour
)

// Emitter assembles the XMLTV document served to Plex. Only channels that
// are enabled and carry an epg_id appear; programs are joined on epg_id
// over a bounded window around now.
type Emitter struct {
	channels repository.ChannelRepository
	programs repository.EpgProgramRepository
	past     time.Duration
	future   time.Duration
}

// NewEmitter creates an Emitter. Non-positive window bounds fall back to
// the defaults.
func NewEmitter(channels repository.ChannelRepository, programs repository.EpgProgramRepository, past, future time.Duration) *Emitter {
	if past <= 0 {
		past = DefaultEmissionPast
	}
	if future <= 0 {
		future = DefaultEmissionFuture
	}
	return &Emitter{
		channels: channels,
		programs: programs,
		past:     past,
		future:   future,
	}
}

// WriteXMLTV streams the guide document to w.
func (e *Emitter) WriteXMLTV(ctx context.Context, w io.Writer) error {
	channels, err := e.channels.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("listing channels: %w", err)
	}

	out := xmltv.NewWriter(w, sourceInfoName)

	var epgIDs []string
	seen := make(map[string]bool)
	for _, ch := range channels {
		if ch.EpgID == "" || seen[ch.EpgID] {
			continue
		}
		seen[ch.EpgID] = true
		epgIDs = append(epgIDs, ch.EpgID)

		if err := out.WriteChannel(&xmltv.Channel{
			ID:          ch.EpgID,
			DisplayName: ch.Name,
			Icon:        ch.LogoURL,
		}); err != nil {
			return fmt.Errorf("writing channel %s: %w", ch.EpgID, err)
		}
	}

	now := time.Now().UTC()
	window := repository.TimeWindow{
		Start: now.Add(-e.past),
		Stop:  now.Add(e.future),
	}
	programs, err := e.programs.QueryForEmission(ctx, epgIDs, window)
	if err != nil {
		return fmt.Errorf("querying programs: %w", err)
	}

	for _, prog := range programs {
		if err := out.WriteProgramme(&xmltv.Programme{
			Start:       prog.Start,
			Stop:        prog.Stop,
			Channel:     prog.EpgID,
			Title:       prog.Title,
			Description: prog.Description,
			Category:    prog.Category,
		}); err != nil {
			return fmt.Errorf("writing programme: %w", err)
		}
	}

	return out.WriteFooter()
}
